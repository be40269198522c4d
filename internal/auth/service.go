package auth

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidKey is returned for a key that does not match the
// configured one.
var ErrInvalidKey = errors.New("invalid api key")

// Service verifies the configured API key. The plaintext never
// sticks around after startup; requests compare against a bcrypt
// hash computed here.
type Service struct {
	hash    []byte
	enabled bool
}

// NewService hashes apiKey for later comparison. An empty key
// disables authentication entirely.
func NewService(apiKey string) (*Service, error) {
	if apiKey == "" {
		return &Service{}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash api key")
	}
	return &Service{hash: hash, enabled: true}, nil
}

// Enabled reports whether the API requires authentication.
func (s *Service) Enabled() bool { return s.enabled }

// Verify compares key against the configured hash.
func (s *Service) Verify(key string) error {
	if !s.enabled {
		return errors.New("authentication is not configured")
	}
	if err := bcrypt.CompareHashAndPassword(s.hash, []byte(key)); err != nil {
		return ErrInvalidKey
	}
	return nil
}

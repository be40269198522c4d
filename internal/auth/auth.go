// Package auth guards the recording API with a single configured API
// key exchanged for short-lived JWTs. With no key configured the
// whole layer switches off, which is the expected setup for a
// recorder bound to localhost.
package auth

import "time"

type TokenRequest struct {
	APIKey string `json:"api_key"`
}

type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

package recordings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when no recording matches the requested
// name, in the history or on disk.
var ErrNotFound = errors.New("recording not found")

// Finish carries the terminal state of a run into its history
// document.
type Finish struct {
	EndedAt time.Time
	Frames  int64
	Tracks  []TrackReport
	Media   *MediaInfo
	Error   string
}

// Service persists recording history in Mongo and owns the recordings
// directory on disk.
type Service struct {
	col *mongo.Collection
	dir string
	log *logrus.Entry
}

func NewService(db *mongo.Database, dir string, log *logrus.Entry) *Service {
	return &Service{
		col: db.Collection("recordings"),
		dir: dir,
		log: log,
	}
}

// Create inserts the history document for a session that just
// started. Status is RECORDING until MarkCompleted or MarkFailed.
func (s *Service) Create(ctx context.Context, rec *Recording) error {
	rec.Status = StatusRecording
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := s.col.InsertOne(ctx, rec)
	if err != nil {
		return errors.Wrap(err, "insert recording")
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		rec.ID = id
	}
	s.log.WithField("name", rec.Name).Debug("recording registered")
	return nil
}

// MarkCompleted closes the run's document as COMPLETED.
func (s *Service) MarkCompleted(ctx context.Context, base string, fin Finish) error {
	return s.finalize(ctx, base, StatusCompleted, fin)
}

// MarkFailed closes the run's document as FAILED.
func (s *Service) MarkFailed(ctx context.Context, base string, fin Finish) error {
	return s.finalize(ctx, base, StatusFailed, fin)
}

func (s *Service) finalize(ctx context.Context, base string, status Status, fin Finish) error {
	set := bson.M{
		"status":   status,
		"ended_at": fin.EndedAt,
		"frames":   fin.Frames,
	}
	if len(fin.Tracks) > 0 {
		set["tracks"] = fin.Tracks
	}
	if fin.Media != nil {
		set["media"] = fin.Media
	}
	if fin.Error != "" {
		set["error"] = fin.Error
	}

	res, err := s.col.UpdateOne(ctx, bson.M{"base": base}, bson.M{"$set": set})
	if err != nil {
		return errors.Wrap(err, "update recording")
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the history newest-first, each entry joined with the
// file's presence on disk. A completed document whose file was
// removed out of band still lists, flagged absent.
func (s *Service) List(ctx context.Context) ([]*Recording, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "list recordings")
	}
	defer cursor.Close(ctx)

	recs := []*Recording{}
	if err := cursor.All(ctx, &recs); err != nil {
		return nil, errors.Wrap(err, "decode recordings")
	}
	for _, rec := range recs {
		if _, err := os.Stat(rec.FilePath); err == nil {
			rec.FileExists = true
		}
	}
	return recs, nil
}

// Get looks a recording up by its final file name.
func (s *Service) Get(ctx context.Context, name string) (*Recording, error) {
	var rec Recording
	err := s.col.FindOne(ctx, bson.M{"name": name}).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "find recording")
	}
	if _, err := os.Stat(rec.FilePath); err == nil {
		rec.FileExists = true
	}
	return &rec, nil
}

// Delete removes the file and its history document. Deleting a
// recording whose file already vanished still drops the document;
// a file with no document is still removed.
func (s *Service) Delete(ctx context.Context, name string) error {
	path, err := s.ResolvePath(name)
	if err != nil {
		return err
	}

	fileErr := os.Remove(path)
	if fileErr != nil && !os.IsNotExist(fileErr) {
		return errors.Wrap(fileErr, "remove recording file")
	}

	res, err := s.col.DeleteOne(ctx, bson.M{"name": name})
	if err != nil {
		return errors.Wrap(err, "delete recording document")
	}
	if res.DeletedCount == 0 && os.IsNotExist(fileErr) {
		return ErrNotFound
	}
	s.log.WithField("name", name).Info("recording deleted")
	return nil
}

// ResolvePath maps a client-supplied file name to a path inside the
// recordings directory. Names carrying separators or parent
// references are rejected so the API cannot reach outside it.
func (s *Service) ResolvePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) ||
		strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", errors.Errorf("invalid recording name %q", name)
	}
	return filepath.Join(s.dir, name), nil
}

// Dir returns the recordings directory the service owns.
func (s *Service) Dir() string { return s.dir }

// EnsureIndexes creates the indexes the history queries rely on:
// newest-first listing, status filtering, lookup by file name and the
// finalize update by base.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("recordings").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "base", Value: 1}}},
	})
	return errors.Wrap(err, "create recording indexes")
}

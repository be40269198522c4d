package server

import (
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"

	"screenrec/internal/recordings"
)

func (s *FiberServer) listRecordings(c *fiber.Ctx) error {
	recs, err := s.history.List(c.Context())
	if err != nil {
		s.log.WithError(err).Error("listing recordings failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list recordings",
		})
	}
	return c.JSON(fiber.Map{
		"recordings": recs,
		"count":      len(recs),
	})
}

func (s *FiberServer) downloadRecording(c *fiber.Ctx) error {
	path, err := s.history.ResolvePath(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recording name",
		})
	}
	if _, err := os.Stat(path); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Recording file not found",
		})
	}
	return c.Download(path)
}

// sweepRecordings clears temp artifacts orphaned by crashed sessions.
// Refused while recording, which makes a zero cutoff safe: with no
// session running, anything matching the temp pattern is an orphan.
func (s *FiberServer) sweepRecordings(c *fiber.Ctx) error {
	if s.manager.Status().Recording {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Cannot sweep while a recording is in progress",
		})
	}
	rc := s.cfg.Recording
	removed := recordings.SweepOrphans([]string{rc.TempDir, rc.RecordingsDir}, 0, s.log)
	return c.JSON(fiber.Map{"removed": removed})
}

func (s *FiberServer) deleteRecording(c *fiber.Ctx) error {
	name := c.Params("name")
	if _, err := s.history.ResolvePath(name); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid recording name",
		})
	}

	err := s.history.Delete(c.Context(), name)
	switch {
	case errors.Is(err, recordings.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Recording not found",
		})
	case err != nil:
		s.log.WithError(err).Error("deleting recording failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete recording",
		})
	}
	return c.JSON(fiber.Map{"message": "Recording deleted"})
}

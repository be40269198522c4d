package recordings

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// tempExts are the intermediate artifact types a crashed session can
// leave behind. Final containers are never swept.
var tempExts = []string{".avi", ".wav", ".mp3"}

// SweepOrphans removes leftover temp artifacts from dirs: files named
// screen_recording_* with an intermediate extension whose mtime is
// older than cutoff. The cutoff keeps a live session's temps safe when
// the sweep runs while recording. Returns how many files went away.
func SweepOrphans(dirs []string, cutoff time.Duration, log *logrus.Entry) int {
	deadline := time.Now().Add(-cutoff)
	removed := 0

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WithField("dir", dir).Warn("sweep: cannot read directory")
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !isOrphanName(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(deadline) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.WithError(err).WithField("file", path).Warn("sweep: remove failed")
				continue
			}
			log.WithField("file", path).Info("removed leftover temp file")
			removed++
		}
	}
	return removed
}

func isOrphanName(name string) bool {
	if !strings.HasPrefix(name, "screen_recording_") {
		return false
	}
	lower := strings.ToLower(name)
	for _, ext := range tempExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

package cleanup

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/italolelis/d4sign_downloader/internal/filestore"
	"github.com/italolelis/d4sign_downloader/internal/logctx"
)

// Sweeper removes temporary transfer files left behind by interrupted runs.
type Sweeper struct {
	root   string
	maxAge time.Duration
	now    func() time.Time
}

func NewSweeper(root string, maxAge time.Duration) *Sweeper {
	return &Sweeper{root: root, maxAge: maxAge, now: time.Now}
}

// Sweep deletes partial files under the root older than maxAge and returns how many were
// removed. A missing root is not an error.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	logger := logctx.LoggerFromContext(ctx)
	now := s.now()
	removed := 0

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.root {
				return fs.SkipAll
			}

			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() || !filestore.IsPartial(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			if os.IsNotExist(err) {
				return nil // already deleted
			}

			return err
		}

		if now.Sub(info.ModTime()) <= s.maxAge {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Error("failed to delete stale partial file", "file", path, "err", err)

			return err
		}

		removed++

		logger.Info("deleted stale partial file", "file", path, "age", now.Sub(info.ModTime()).String())

		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to sweep partial files: %w", err)
	}

	return removed, nil
}

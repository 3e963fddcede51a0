package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog/log"
)

// Cleaner empties the output dir before the first build and, when stale cleaning is
// enabled, prunes files later builds no longer emit.
type Cleaner struct {
	dir      string
	stale    bool
	prepared bool
}

func NewCleaner(dir string, stale bool) *Cleaner {
	return &Cleaner{dir: dir, stale: stale}
}

// Prepare removes the previous output on its first call and is a no-op afterwards.
// It reports whether anything was cleaned.
func (c *Cleaner) Prepare() (bool, error) {
	if c.prepared {
		return false, nil
	}

	entries, err := os.ReadDir(c.dir)
	if errors.Is(err, fs.ErrNotExist) {
		c.prepared = true
		return false, os.MkdirAll(c.dir, 0o755)
	}
	if err != nil {
		return false, fmt.Errorf("failed to read output dir: %w", err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(c.dir, entry.Name())); err != nil {
			return false, fmt.Errorf("failed to clean %s: %w", entry.Name(), err)
		}
	}

	log.Debug().Str("dir", c.dir).Int("removed", len(entries)).Msg("Cleaned output dir")
	c.prepared = true
	return true, nil
}

// Prune removes files under the output dir that are not in keep (slash separated,
// relative to the output dir). It does nothing unless stale cleaning is enabled.
func (c *Cleaner) Prune(keep []string) ([]string, error) {
	if !c.stale {
		return nil, nil
	}

	var pruned []string
	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(c.dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if slices.Contains(keep, rel) {
			return nil
		}

		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to prune %s: %w", rel, err)
		}
		pruned = append(pruned, rel)
		return nil
	})
	if err != nil {
		return pruned, err
	}

	if len(pruned) > 0 {
		log.Info().Strs("files", pruned).Msg("Pruned stale assets")
	}
	return pruned, nil
}

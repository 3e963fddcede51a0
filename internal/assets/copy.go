package assets

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

// CopyStatic copies the static tree described by opts into outDir and returns the
// copied paths relative to outDir.
func CopyStatic(opts *buildconfig.CopyOptions, outDir string) ([]string, error) {
	if opts == nil {
		return nil, nil
	}

	ignores := make([]glob.Glob, 0, len(opts.Ignore))
	for _, pattern := range opts.Ignore {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", pattern, err)
		}
		ignores = append(ignores, g)
	}

	info, err := os.Stat(opts.From)
	if errors.Is(err, fs.ErrNotExist) && opts.NoErrorOnMissing {
		log.Debug().Str("from", opts.From).Msg("Static source dir missing, skipping copy")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat static source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static source %s is not a directory", opts.From)
	}

	var copied []string
	err = filepath.WalkDir(opts.From, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(opts.From, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		if !opts.Dot && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		slashed := filepath.ToSlash(path)
		for _, g := range ignores {
			if g.Match(slashed) {
				return nil
			}
		}

		dst := filepath.Join(opts.To, rel)
		if err := copyFile(path, filepath.Join(outDir, dst)); err != nil {
			return err
		}
		copied = append(copied, filepath.ToSlash(dst))
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("failed to copy static files: %w", err)
	}

	log.Debug().Int("files", len(copied)).Str("to", opts.To).Msg("Copied static files")
	return copied, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // G304: walking a configured source tree
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	out, err := os.Create(dst) //nolint:gosec // G304: destination under the output dir
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

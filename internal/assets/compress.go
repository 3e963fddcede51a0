package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

var compressibleExts = []string{".js", ".css", ".html", ".svg", ".json", ".map"}

func compressible(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range compressibleExts {
		if ext == e {
			return true
		}
	}
	return false
}

// Precompress writes .gz and .zst siblings for every compressible file in files
// (slash separated, relative to dir) and returns the paths it created.
func Precompress(dir string, files []string) ([]string, error) {
	var created []string
	for _, f := range files {
		if !compressible(f) {
			continue
		}
		src := filepath.Join(dir, filepath.FromSlash(f))

		if err := compressFile(src, src+".gz", func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestCompression)
		}); err != nil {
			return created, fmt.Errorf("failed to gzip %s: %w", f, err)
		}
		created = append(created, f+".gz")

		if err := compressFile(src, src+".zst", func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		}); err != nil {
			return created, fmt.Errorf("failed to zstd %s: %w", f, err)
		}
		created = append(created, f+".zst")
	}

	log.Debug().Int("files", len(created)).Msg("Precompressed assets")
	return created, nil
}

func compressFile(srcPath, dstPath string, newWriter func(io.Writer) (io.WriteCloser, error)) error {
	src, err := os.Open(srcPath) //nolint:gosec // G304: build output
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(dstPath) //nolint:gosec // G304: build output
	if err != nil {
		return err
	}

	enc, err := newWriter(dst)
	if err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}

	if _, err := io.Copy(enc, src); err != nil {
		// Ensure proper cleanup order
		if closeErr := enc.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("Failed to close encoder during error cleanup")
		}
		dst.Close()
		os.Remove(dstPath) // Clean up partial file
		return err
	}

	if err := enc.Close(); err != nil {
		dst.Close()
		os.Remove(dstPath)
		return err
	}
	return dst.Close()
}

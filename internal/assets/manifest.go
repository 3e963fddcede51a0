package assets

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/sitepack/internal/util"
)

// Manifest records what a build emitted
type Manifest struct {
	BuildID string              `json:"buildId"`
	Mode    string              `json:"mode"`
	BuiltAt time.Time           `json:"builtAt"`
	Entries map[string][]string `json:"entries"`
	Files   map[string]FileInfo `json:"files"`
}

type FileInfo struct {
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Paths returns every file in the manifest, sorted
func (m *Manifest) Paths() []string {
	return slices.Sorted(maps.Keys(m.Files))
}

func newManifest(mode string) (*Manifest, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate build ID: %w", err)
	}
	return &Manifest{
		BuildID: id.String(),
		Mode:    mode,
		BuiltAt: time.Now().UTC(),
		Entries: map[string][]string{},
		Files:   map[string]FileInfo{},
	}, nil
}

// addFiles checksums files (slash separated, relative to dir) into the manifest
func (m *Manifest) addFiles(dir string, files []string) error {
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(f))) //nolint:gosec // G304: build output
		if err != nil {
			return fmt.Errorf("failed to checksum %s: %w", f, err)
		}
		m.Files[f] = FileInfo{Size: int64(len(data)), Checksum: util.Checksum(data)}
	}
	return nil
}

func (m *Manifest) write(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadManifest reads a manifest written by a previous build
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: manifest path from configuration
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

package buildconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadProject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitepack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
title: Landing
outputDir: public
libraryGlobals: ["$"]
`), 0o600))

	p, err := LoadProject(path)
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)

	require.Equal(t, abs, p.Root)
	require.Equal(t, "Landing", p.Title)
	require.Equal(t, "public", p.OutputDir)
	require.Equal(t, []string{"$"}, p.LibraryGlobals)
	// untouched fields keep their defaults
	require.Equal(t, "src/js/main.js", p.ScriptEntry)
	require.Equal(t, filepath.Join(abs, "public"), p.Abs(p.OutputDir))
}

func TestLoadProject_relativeRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sitepack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("root: web\n"), 0o600))

	p, err := LoadProject(path)
	require.NoError(t, err)

	abs, err := filepath.Abs(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(abs, "web"), p.Root)
}

func TestLoadProject_errors(t *testing.T) {
	_, err := LoadProject(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("title: [unterminated"), 0o600))
	_, err = LoadProject(path)
	require.Error(t, err)
}

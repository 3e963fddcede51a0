package buildconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Project describes the filesystem inputs of a site build. Relative paths are
// relative to Root.
type Project struct {
	Root           string   `yaml:"root" json:"root"`
	StyleEntry     string   `yaml:"styleEntry" json:"styleEntry"`
	ScriptEntry    string   `yaml:"scriptEntry" json:"scriptEntry"`
	OutputDir      string   `yaml:"outputDir" json:"outputDir"`
	Template       string   `yaml:"template" json:"template"`
	Title          string   `yaml:"title" json:"title"`
	HTMLPublic     string   `yaml:"htmlPublicPath" json:"htmlPublicPath"`
	ImageDir       string   `yaml:"imageDir" json:"imageDir"`
	DependencyDir  string   `yaml:"dependencyDir" json:"dependencyDir"`
	SharedLibrary  string   `yaml:"sharedLibrary" json:"sharedLibrary"`
	LibraryGlobals []string `yaml:"libraryGlobals" json:"libraryGlobals"`
}

// DefaultProject returns the conventional project layout rooted at root.
func DefaultProject(root string) Project {
	return Project{
		Root:           root,
		StyleEntry:     "src/sass/main.scss",
		ScriptEntry:    "src/js/main.js",
		OutputDir:      "dist",
		Template:       "src/templates/index.html",
		Title:          "Home Pages",
		HTMLPublic:     "./",
		ImageDir:       "src/images",
		DependencyDir:  "node_modules",
		SharedLibrary:  "jquery",
		LibraryGlobals: []string{"$", "jQuery", "window.jQuery"},
	}
}

// LoadProject reads a YAML project file and overlays it on the defaults. A relative
// root in the file is resolved against the file's directory; an empty root means
// the file's directory.
func LoadProject(path string) (Project, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: project file path comes from the operator
	if err != nil {
		return Project{}, fmt.Errorf("failed to read project file: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return Project{}, fmt.Errorf("failed to resolve project dir: %w", err)
	}

	p := DefaultProject(dir)
	p.Root = ""
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Project{}, fmt.Errorf("failed to parse project file %s: %w", path, err)
	}

	switch {
	case p.Root == "":
		p.Root = dir
	case !filepath.IsAbs(p.Root):
		p.Root = filepath.Join(dir, p.Root)
	}

	return p, nil
}

// Abs resolves a project relative path against Root.
func (p Project) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(p.Root, rel)
}

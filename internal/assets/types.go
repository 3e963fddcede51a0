package assets

import (
	"bytes"
	"encoding/json"
	"errors"
	"html/template"
	"maps"
	"sync"

	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint,omitempty"`
	CSSBundle  string       `json:"cssBundle,omitempty"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int          `json:"bytes"`
}

type ImportInfo struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	External bool   `json:"external,omitempty"`
}

// Result summarises one build
type Result struct {
	BuildID    string
	Mode       buildconfig.Mode
	Scripts    []string
	Styles     []string
	Assets     []string
	Copied     []string
	Transpiled []string
	HTML       string
	Pruned     []string
	Manifest   *Manifest
}

// Pipeline manages the asset build process and script loading
type Pipeline struct {
	build    *buildconfig.Configuration
	config   Config
	compiler StyleCompiler
	funcs    template.FuncMap
	cleaner  *Cleaner
	metadata *BuildMetadata
	manifest *Manifest
	mu       sync.RWMutex
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithStyleCompiler replaces the dart-sass compiler used by the style pipeline
func WithStyleCompiler(c StyleCompiler) Option {
	return func(p *Pipeline) {
		p.compiler = c
	}
}

// WithTemplateFuncs merges custom functions into the HTML shell template
func WithTemplateFuncs(funcs template.FuncMap) Option {
	return func(p *Pipeline) {
		maps.Copy(p.funcs, funcs)
	}
}

// New creates a new asset pipeline executing the resolved build configuration
func New(build *buildconfig.Configuration, config Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		build:  build,
		config: config,
		funcs: template.FuncMap{
			"marshal": marshal,
			"safe": func(s string) template.HTML {
				return template.HTML(s) //nolint:gosec
			},
		},
	}

	if clean, ok := build.Plugin(buildconfig.PluginClean); ok {
		p.cleaner = NewCleaner(build.Output.Dir, clean.Clean.CleanStale)
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.compiler == nil {
		p.compiler = NewDartSass(config.SassBinary)
	}

	return p
}

// Configuration returns the build configuration the pipeline executes
func (p *Pipeline) Configuration() *buildconfig.Configuration {
	return p.build
}

// Close releases the style compiler
func (p *Pipeline) Close() error {
	return p.compiler.Close()
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}

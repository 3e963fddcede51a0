package buildconfig

import (
	"fmt"
	"slices"
)

// PluginKind names a post-processing step.
type PluginKind string

const (
	PluginClean          PluginKind = "clean"
	PluginExtractCSS     PluginKind = "extract-css"
	PluginOptimizeCSS    PluginKind = "optimize-css"
	PluginCopyStatic     PluginKind = "copy-static"
	PluginProvideGlobals PluginKind = "provide-globals"
	PluginHTMLShell      PluginKind = "html-shell"
)

// Plugin is one post-processing step. Exactly one of the option pointers matching Kind
// is set.
type Plugin struct {
	Kind           PluginKind          `json:"kind" yaml:"kind"`
	Clean          *CleanOptions       `json:"clean,omitempty" yaml:"clean,omitempty"`
	ExtractCSS     *ExtractOptions     `json:"extractCss,omitempty" yaml:"extractCss,omitempty"`
	OptimizeCSS    *CSSOptimizeOptions `json:"optimizeCss,omitempty" yaml:"optimizeCss,omitempty"`
	CopyStatic     *CopyOptions        `json:"copyStatic,omitempty" yaml:"copyStatic,omitempty"`
	ProvideGlobals *GlobalsOptions     `json:"provideGlobals,omitempty" yaml:"provideGlobals,omitempty"`
	HTMLShell      *HTMLOptions        `json:"htmlShell,omitempty" yaml:"htmlShell,omitempty"`
}

type CleanOptions struct {
	// CleanStale also removes files a rebuild no longer emits.
	CleanStale bool `json:"cleanStale" yaml:"cleanStale"`
}

type ExtractOptions struct {
	Filename string `json:"filename" yaml:"filename"`
}

type CSSOptimizeOptions struct {
	// InlineMap keeps an existing source map inline in the optimized output.
	InlineMap bool `json:"inlineMap" yaml:"inlineMap"`
}

type CopyOptions struct {
	From             string   `json:"from" yaml:"from"`
	To               string   `json:"to" yaml:"to"`
	NoErrorOnMissing bool     `json:"noErrorOnMissing" yaml:"noErrorOnMissing"`
	Dot              bool     `json:"dot" yaml:"dot"`
	Ignore           []string `json:"ignore" yaml:"ignore"`
}

// GlobalsOptions maps identifiers to the module they resolve to.
type GlobalsOptions struct {
	Symbols map[string]string `json:"symbols" yaml:"symbols"`
}

// Names returns the symbol names in sorted order.
func (g GlobalsOptions) Names() []string {
	names := make([]string, 0, len(g.Symbols))
	for name := range g.Symbols {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

type HTMLOptions struct {
	Title      string `json:"title" yaml:"title"`
	Template   string `json:"template" yaml:"template"`
	PublicPath string `json:"publicPath" yaml:"publicPath"`
	Filename   string `json:"filename" yaml:"filename"`
}

// pluginOrder lists kinds that must appear in this relative order.
var pluginOrder = []PluginKind{PluginClean, PluginExtractCSS, PluginOptimizeCSS}

// validatePluginOrder checks clean precedes extraction and extraction precedes
// optimization. Missing kinds are not an error.
func validatePluginOrder(plugins []Plugin) error {
	last, lastKind := -1, PluginKind("")
	for _, kind := range pluginOrder {
		i := slices.IndexFunc(plugins, func(p Plugin) bool { return p.Kind == kind })
		if i < 0 {
			continue
		}
		if i < last {
			return fmt.Errorf("%w: %s at %d must follow %s at %d", ErrPluginOrder, kind, i, lastKind, last)
		}
		last, lastKind = i, kind
	}
	return nil
}

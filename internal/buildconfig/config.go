// Package buildconfig resolves the site build configuration from a build mode.
//
// Resolution is pure: it performs no I/O and describes the work the asset engine
// carries out. Every naming, source map and minimization decision is a function of
// the single Mode passed to Resolve.
package buildconfig

import (
	"errors"
	"slices"
)

// Devtool is the script source map style, used in every mode.
const Devtool = "inline-source-map"

// HTMLFilename is the generated HTML shell, relative to the output dir.
const HTMLFilename = "index.html"

// Entries holds the two entry points, style root first.
type Entries struct {
	Style  string `json:"style" yaml:"style"`
	Script string `json:"script" yaml:"script"`
}

// List returns the entries in build order.
func (e Entries) List() []string {
	return []string{e.Style, e.Script}
}

type Output struct {
	Dir           string `json:"dir" yaml:"dir"`
	PublicPath    string `json:"publicPath" yaml:"publicPath"`
	Filename      string `json:"filename" yaml:"filename"`
	ChunkFilename string `json:"chunkFilename" yaml:"chunkFilename"`
}

// Minimizer kinds.
const (
	MinimizerCSS    = "css"
	MinimizerScript = "script"
)

type Minimizer struct {
	Kind      string `json:"kind" yaml:"kind"`
	SourceMap bool   `json:"sourceMap" yaml:"sourceMap"`
}

// Optimization configures the final bundle minimization phase.
type Optimization struct {
	Minimize   bool        `json:"minimize" yaml:"minimize"`
	Minimizers []Minimizer `json:"minimizers" yaml:"minimizers"`
}

// Minimizer returns the minimizer of the given kind.
func (o Optimization) Minimizer(kind string) (Minimizer, bool) {
	i := slices.IndexFunc(o.Minimizers, func(m Minimizer) bool { return m.Kind == kind })
	if i < 0 {
		return Minimizer{}, false
	}
	return o.Minimizers[i], true
}

// Configuration is the fully resolved description of one build.
type Configuration struct {
	Mode          Mode         `json:"mode" yaml:"mode"`
	Context       string       `json:"context" yaml:"context"`
	Entries       Entries      `json:"entries" yaml:"entries"`
	Devtool       string       `json:"devtool" yaml:"devtool"`
	Output        Output       `json:"output" yaml:"output"`
	Rules         []Rule       `json:"rules" yaml:"rules"`
	Plugins       []Plugin     `json:"plugins" yaml:"plugins"`
	Optimization  Optimization `json:"optimization" yaml:"optimization"`
	DependencyDir string       `json:"dependencyDir" yaml:"dependencyDir"`
	Library       string       `json:"library" yaml:"library"`
}

// Resolve builds the configuration for mode. The result is rebuilt from scratch on
// every call and never shared.
func Resolve(mode Mode, project Project) *Configuration {
	prod := mode.IsProduction()
	dependencyDir := project.Abs(project.DependencyDir)

	symbols := make(map[string]string, len(project.LibraryGlobals))
	for _, name := range project.LibraryGlobals {
		symbols[name] = project.SharedLibrary
	}

	return &Configuration{
		Mode:    mode,
		Context: project.Root,
		Entries: Entries{
			Style:  project.Abs(project.StyleEntry),
			Script: project.Abs(project.ScriptEntry),
		},
		Devtool: Devtool,
		Output: Output{
			Dir:           project.Abs(project.OutputDir),
			PublicPath:    project.Abs(project.OutputDir),
			Filename:      NamingRule(CategoryScript, "js", mode),
			ChunkFilename: NamingRule(CategoryScript, "js", mode),
		},
		Rules: []Rule{
			styleRule(mode, []string{dependencyDir}),
			assetRule(),
			scriptRule(project.DependencyDir),
		},
		Plugins: []Plugin{
			{Kind: PluginClean, Clean: &CleanOptions{CleanStale: prod}},
			{Kind: PluginExtractCSS, ExtractCSS: &ExtractOptions{Filename: NamingRule(CategoryStyle, "css", mode)}},
			{Kind: PluginOptimizeCSS, OptimizeCSS: &CSSOptimizeOptions{InlineMap: true}},
			{Kind: PluginCopyStatic, CopyStatic: &CopyOptions{
				From:             project.Abs(project.ImageDir),
				To:               AssetDirImages,
				NoErrorOnMissing: true,
				Dot:              true,
				Ignore:           []string{"**/.gitkeep"},
			}},
			{Kind: PluginProvideGlobals, ProvideGlobals: &GlobalsOptions{Symbols: symbols}},
			{Kind: PluginHTMLShell, HTMLShell: &HTMLOptions{
				Title:      project.Title,
				Template:   project.Abs(project.Template),
				PublicPath: project.HTMLPublic,
				Filename:   HTMLFilename,
			}},
		},
		Optimization: Optimization{
			Minimize: prod,
			Minimizers: []Minimizer{
				{Kind: MinimizerCSS},
				{Kind: MinimizerScript, SourceMap: true},
			},
		},
		DependencyDir: dependencyDir,
		Library:       project.SharedLibrary,
	}
}

// Validate checks every rule's stage contracts and the plugin ordering.
func (c *Configuration) Validate() error {
	var errs []error
	for _, r := range c.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validatePluginOrder(c.Plugins); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RuleFor returns the first rule matching path.
func (c *Configuration) RuleFor(path string) (Rule, bool) {
	i := slices.IndexFunc(c.Rules, func(r Rule) bool { return r.Matches(path) })
	if i < 0 {
		return Rule{}, false
	}
	return c.Rules[i], true
}

// Rule returns the rule with the given name.
func (c *Configuration) Rule(name string) (Rule, bool) {
	i := slices.IndexFunc(c.Rules, func(r Rule) bool { return r.Name == name })
	if i < 0 {
		return Rule{}, false
	}
	return c.Rules[i], true
}

// Plugin returns the plugin of the given kind.
func (c *Configuration) Plugin(kind PluginKind) (Plugin, bool) {
	i := slices.IndexFunc(c.Plugins, func(p Plugin) bool { return p.Kind == kind })
	if i < 0 {
		return Plugin{}, false
	}
	return c.Plugins[i], true
}

// StyleSourceMaps reports whether the style pipeline emits source maps.
func (c *Configuration) StyleSourceMaps() bool {
	r, ok := c.Rule(RuleStyles)
	if !ok {
		return false
	}
	s, ok := r.Stage(LoaderSass)
	if !ok {
		return false
	}
	v, _ := s.Option("sourceMap")
	b, _ := v.(bool)
	return b
}

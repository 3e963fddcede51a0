package buildconfig

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
)

// Format tags the data a stage consumes or produces.
type Format string

const (
	FormatSCSS      Format = "scss"
	FormatCSS       Format = "css"
	FormatCSSModule Format = "css-module"
	FormatCSSFile   Format = "css-file"
	FormatJS        Format = "js"
	FormatJSLegacy  Format = "js-legacy"
	FormatBinary    Format = "binary"
)

// Loader names.
const (
	LoaderSass      = "sass"
	LoaderPostCSS   = "postcss"
	LoaderCSS       = "css"
	LoaderExtract   = "extract-css"
	LoaderFile      = "file"
	LoaderTranspile = "transpile"
)

// Rule names.
const (
	RuleStyles  = "styles"
	RuleAssets  = "assets"
	RuleScripts = "scripts"
)

// Stage is one named transformation step.
type Stage struct {
	Loader   string         `json:"loader" yaml:"loader"`
	Consumes Format         `json:"consumes" yaml:"consumes"`
	Produces Format         `json:"produces" yaml:"produces"`
	Options  map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Option returns a stage option and whether it was set.
func (s Stage) Option(key string) (any, bool) {
	v, ok := s.Options[key]
	return v, ok
}

// Rule routes matching files through an ordered list of stages. Stages are stored in
// execution order, first stage runs first.
type Rule struct {
	Name    string         `json:"name" yaml:"name"`
	Test    *regexp.Regexp `json:"test" yaml:"-"`
	Exclude *regexp.Regexp `json:"exclude,omitempty" yaml:"-"`
	Stages  []Stage        `json:"stages" yaml:"stages"`
}

// Matches reports whether path is handled by the rule. Paths are matched with forward
// slashes on every platform.
func (r Rule) Matches(path string) bool {
	p := filepath.ToSlash(path)
	if r.Test == nil || !r.Test.MatchString(p) {
		return false
	}
	return r.Exclude == nil || !r.Exclude.MatchString(p)
}

// Stage returns the stage with the given loader name.
func (r Rule) Stage(loader string) (Stage, bool) {
	i := slices.IndexFunc(r.Stages, func(s Stage) bool { return s.Loader == loader })
	if i < 0 {
		return Stage{}, false
	}
	return r.Stages[i], true
}

// LoaderChain returns the loader names in declaration order, last stage first, which is
// how bundler loader lists are conventionally written.
func (r Rule) LoaderChain() []string {
	chain := make([]string, 0, len(r.Stages))
	for i := len(r.Stages) - 1; i >= 0; i-- {
		chain = append(chain, r.Stages[i].Loader)
	}
	return chain
}

// Validate checks that each stage consumes the format its predecessor produces.
func (r Rule) Validate() error {
	for i := 1; i < len(r.Stages); i++ {
		prev, cur := r.Stages[i-1], r.Stages[i]
		if prev.Produces != cur.Consumes {
			return fmt.Errorf("%w: rule %s: %s produces %s but %s consumes %s",
				ErrStageContract, r.Name, prev.Loader, prev.Produces, cur.Loader, cur.Consumes)
		}
	}
	return nil
}

// Patterns for the built-in rules.
var (
	stylePattern  = regexp.MustCompile(`(?i)\.scss$`)
	assetPattern  = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|ttf|otf|eot|woff2?)(\?[=.a-z0-9]+)?$`)
	scriptPattern = regexp.MustCompile(`\.m?js$`)
)

// dependencyPattern matches any path with a segment named dir.
func dependencyPattern(dir string) *regexp.Regexp {
	return regexp.MustCompile(`(^|/)` + regexp.QuoteMeta(filepath.ToSlash(dir)) + `(/|$)`)
}

func styleRule(mode Mode, includePaths []string) Rule {
	sourceMap := !mode.IsProduction()
	return Rule{
		Name: RuleStyles,
		Test: stylePattern,
		Stages: []Stage{
			{
				Loader:   LoaderSass,
				Consumes: FormatSCSS,
				Produces: FormatCSS,
				Options: map[string]any{
					"sourceMap":    sourceMap,
					"includePaths": includePaths,
				},
			},
			{
				Loader:   LoaderPostCSS,
				Consumes: FormatCSS,
				Produces: FormatCSS,
				Options:  map[string]any{"sourceMap": sourceMap},
			},
			{
				Loader:   LoaderCSS,
				Consumes: FormatCSS,
				Produces: FormatCSSModule,
				Options:  map[string]any{"sourceMap": sourceMap},
			},
			{
				Loader:   LoaderExtract,
				Consumes: FormatCSSModule,
				Produces: FormatCSSFile,
			},
		},
	}
}

func assetRule() Rule {
	return Rule{
		Name: RuleAssets,
		Test: assetPattern,
		Stages: []Stage{
			{
				Loader:   LoaderFile,
				Consumes: FormatBinary,
				Produces: FormatBinary,
				Options:  map[string]any{"name": "[name].[ext]"},
			},
		},
	}
}

func scriptRule(dependencyDir string) Rule {
	return Rule{
		Name:    RuleScripts,
		Test:    scriptPattern,
		Exclude: dependencyPattern(dependencyDir),
		Stages: []Stage{
			{
				Loader:   LoaderTranspile,
				Consumes: FormatJS,
				Produces: FormatJSLegacy,
				Options:  map[string]any{"presets": []string{"env"}},
			},
		},
	}
}

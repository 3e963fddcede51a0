package assets

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bep/godartsass/v2"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

// StyleRequest is one stylesheet to compile
type StyleRequest struct {
	Path         string
	Source       string
	IncludePaths []string
	SourceMap    bool
}

// StyleOutput is compiled CSS and its optional source map
type StyleOutput struct {
	CSS       string
	SourceMap string
}

// StyleCompiler compiles Sass sources to CSS
type StyleCompiler interface {
	Compile(req StyleRequest) (StyleOutput, error)
	Close() error
}

// DartSass compiles through the dart-sass embedded protocol. The compiler process is
// started on first use and shared by every build of the pipeline.
type DartSass struct {
	binary     string
	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

func NewDartSass(binary string) *DartSass {
	return &DartSass{binary: binary}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transpiler != nil {
		return d.transpiler, nil
	}

	t, err := godartsass.Start(godartsass.Options{
		DartSassEmbeddedFilename: d.binary,
		Timeout:                  30 * time.Second,
		LogEventHandler: func(e godartsass.LogEvent) {
			log.Warn().Str("compiler", "sass").Msg(e.Message)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start dart-sass %q: %w", d.binary, err)
	}

	d.transpiler = t
	return t, nil
}

func (d *DartSass) Compile(req StyleRequest) (StyleOutput, error) {
	t, err := d.start()
	if err != nil {
		return StyleOutput{}, err
	}

	res, err := t.Execute(godartsass.Args{
		Source:          req.Source,
		URL:             (&url.URL{Scheme: "file", Path: filepath.ToSlash(req.Path)}).String(),
		SourceSyntax:    godartsass.SourceSyntaxSCSS,
		OutputStyle:     godartsass.OutputStyleExpanded,
		IncludePaths:    req.IncludePaths,
		EnableSourceMap: req.SourceMap,
	})
	if err != nil {
		return StyleOutput{}, err
	}

	return StyleOutput{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transpiler == nil {
		return nil
	}
	err := d.transpiler.Close()
	d.transpiler = nil
	return err
}

// sassPlugin runs the style rule: sass, then the post-CSS lowering stage. esbuild's CSS
// loader and the extraction into a separate file cover the remaining stages.
func (p *Pipeline) sassPlugin(rule buildconfig.Rule) api.Plugin {
	sourceMap := p.build.StyleSourceMaps()

	var includePaths []string
	if stage, ok := rule.Stage(buildconfig.LoaderSass); ok {
		includePaths, _ = stage.Options["includePaths"].([]string)
	}

	return api.Plugin{
		Name: rule.Name,
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: rule.Test.String()}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				if !rule.Matches(args.Path) {
					return api.OnLoadResult{}, nil
				}

				src, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}

				out, err := p.compiler.Compile(StyleRequest{
					Path:         args.Path,
					Source:       string(src),
					IncludePaths: append([]string{filepath.Dir(args.Path)}, includePaths...),
					SourceMap:    sourceMap,
				})
				if err != nil {
					return api.OnLoadResult{}, fmt.Errorf("sass: %w", err)
				}

				css, err := p.postCSS(args.Path, out, sourceMap)
				if err != nil {
					return api.OnLoadResult{}, err
				}

				return api.OnLoadResult{
					Contents:   &css,
					Loader:     api.LoaderCSS,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}
}

// postCSS lowers compiled CSS for the configured engines, carrying the sass source map
// through when source maps are enabled.
func (p *Pipeline) postCSS(path string, out StyleOutput, sourceMap bool) (string, error) {
	input := out.CSS
	if sourceMap && out.SourceMap != "" {
		input += "\n/*# sourceMappingURL=data:application/json;base64," +
			base64.StdEncoding.EncodeToString([]byte(out.SourceMap)) + " */\n"
	}

	opts := api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    p.config.Engines,
		Sourcefile: path,
		Sourcemap:  api.SourceMapNone,
		LogLevel:   p.config.LogLevel,
	}
	if sourceMap {
		opts.Sourcemap = api.SourceMapInline
	}

	result := api.Transform(input, opts)
	if len(result.Errors) > 0 {
		return "", &BuildError{Step: "postcss", Messages: result.Errors}
	}
	return string(result.Code), nil
}

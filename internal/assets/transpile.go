package assets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

// transpilePlugin lowers project scripts to the broad engine baseline. Scripts under the
// dependency dir fail the rule's exclude and load untouched.
func (p *Pipeline) transpilePlugin(rule buildconfig.Rule, out *emitted) api.Plugin {
	return api.Plugin{
		Name: rule.Name,
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: rule.Test.String(), Namespace: "file"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				if !rule.Matches(args.Path) {
					return api.OnLoadResult{}, nil
				}

				src, err := os.ReadFile(args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}

				result := api.Transform(string(src), api.TransformOptions{
					Loader:     api.LoaderJS,
					Engines:    p.config.Engines,
					Sourcefile: args.Path,
					Sourcemap:  api.SourceMapInline,
					LogLevel:   p.config.LogLevel,
				})
				if len(result.Errors) > 0 {
					return api.OnLoadResult{Errors: result.Errors}, nil
				}

				if rel, err := filepath.Rel(p.build.Context, args.Path); err == nil && !strings.HasPrefix(rel, "..") {
					out.add(rel)
				}

				code := string(result.Code)
				return api.OnLoadResult{
					Contents:   &code,
					Loader:     api.LoaderJS,
					ResolveDir: filepath.Dir(args.Path),
				}, nil
			})
		},
	}
}

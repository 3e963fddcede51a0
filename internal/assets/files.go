package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

const assetURLNamespace = "asset-url"

// emitted tracks files written outside esbuild's own output list. esbuild runs
// plugin callbacks concurrently.
type emitted struct {
	mu    sync.Mutex
	files map[string]struct{}
}

func newEmitted() *emitted {
	return &emitted{files: make(map[string]struct{})}
}

func (e *emitted) add(rel string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.files[filepath.ToSlash(rel)] = struct{}{}
}

func (e *emitted) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.files))
	for f := range e.files {
		out = append(out, f)
	}
	return out
}

// splitSuffix separates a "?query" or "#fragment" suffix from an import path.
func splitSuffix(path string) (string, string) {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		return path[:i], path[i:]
	}
	return path, ""
}

// resolveAssetPath finds the file an asset import refers to. Relative and absolute
// paths resolve against the importer's directory; bare paths against the dependency dir.
func (p *Pipeline) resolveAssetPath(importPath, resolveDir string) string {
	switch {
	case filepath.IsAbs(importPath):
		return filepath.Clean(importPath)
	case strings.HasPrefix(importPath, "./"), strings.HasPrefix(importPath, "../"):
		return filepath.Join(resolveDir, importPath)
	default:
		return filepath.Join(p.build.DependencyDir, strings.TrimPrefix(importPath, "~"))
	}
}

// filesPlugin emits images and fonts into their routed directory and rewrites
// references to the routed public path.
func (p *Pipeline) filesPlugin(rule buildconfig.Rule, out *emitted) api.Plugin {
	return api.Plugin{
		Name: rule.Name,
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: rule.Test.String()}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				importPath, suffix := splitSuffix(args.Path)
				if strings.HasPrefix(importPath, "data:") || strings.Contains(importPath, "://") {
					return api.OnResolveResult{}, nil
				}

				src := p.resolveAssetPath(importPath, args.ResolveDir)
				if !rule.Matches(src) {
					return api.OnResolveResult{}, nil
				}

				route, err := p.emitAsset(src)
				if err != nil {
					return api.OnResolveResult{}, err
				}
				out.add(route.OutputPath)

				switch args.Kind {
				case api.ResolveCSSURLToken, api.ResolveCSSImportRule:
					return api.OnResolveResult{Path: route.PublicPath + suffix, External: true}, nil
				default:
					return api.OnResolveResult{
						Path:       src,
						Namespace:  assetURLNamespace,
						PluginData: route.PublicPath + suffix,
					}, nil
				}
			})

			build.OnLoad(api.OnLoadOptions{Filter: ".*", Namespace: assetURLNamespace}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				publicPath, _ := args.PluginData.(string)
				contents := fmt.Sprintf("export default %q;\n", publicPath)
				return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
			})
		},
	}
}

// emitAsset copies src to its routed location under the output dir.
func (p *Pipeline) emitAsset(src string) (buildconfig.AssetRoute, error) {
	route := buildconfig.RouteAsset(p.build.Context, src, filepath.Base(src))

	data, err := os.ReadFile(src) //nolint:gosec // G304: path comes from the module graph
	if err != nil {
		return route, fmt.Errorf("failed to read asset: %w", err)
	}

	dst := filepath.Join(p.build.Output.Dir, filepath.FromSlash(route.OutputPath))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return route, fmt.Errorf("failed to create asset dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil { //nolint:gosec // G306: public build output
		return route, fmt.Errorf("failed to write asset: %w", err)
	}

	log.Debug().Str("src", src).Str("dst", route.OutputPath).Msg("Emitted asset")
	return route, nil
}

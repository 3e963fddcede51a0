package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
	"github.com/wolfeidau/sitepack/internal/telemetry"
	"github.com/wolfeidau/sitepack/internal/util"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Build runs the configured steps in plugin order: clean, styles, scripts, static
// copy, HTML shell, then metadata.
func (p *Pipeline) Build(ctx context.Context) (*Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "assets.build",
		trace.WithAttributes(attribute.String("mode", p.build.Mode.String())))
	defer span.End()

	started := time.Now()
	res, err := p.run(ctx)
	elapsed := time.Since(started)

	var size int64
	if res != nil && res.Manifest != nil {
		for _, f := range res.Manifest.Files {
			size += f.Size
		}
	}
	telemetry.GetMetrics().RecordBuild(ctx, p.build.Mode.String(), elapsed, size, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	log.Info().
		Str("build_id", res.BuildID).
		Str("mode", p.build.Mode.String()).
		Strs("scripts", res.Scripts).
		Strs("styles", res.Styles).
		Int("assets", len(res.Assets)).
		Int("copied", len(res.Copied)).
		Dur("duration", elapsed).
		Msg("Build complete")

	return res, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	if err := p.build.Validate(); err != nil {
		return nil, err
	}

	for _, entry := range p.build.Entries.List() {
		if _, err := os.Stat(entry); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, entry)
		}
	}

	if p.cleaner != nil {
		if _, err := p.cleaner.Prepare(); err != nil {
			return nil, err
		}
	} else if err := os.MkdirAll(p.build.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	styles, _ := p.build.Rule(buildconfig.RuleStyles)
	assetRule, _ := p.build.Rule(buildconfig.RuleAssets)
	scripts, _ := p.build.Rule(buildconfig.RuleScripts)

	emittedAssets := newEmitted()
	transpiled := newEmitted()

	log.Info().Strs("entrypoints", p.build.Entries.List()).Msg("Building assets")

	styleResult := api.Build(p.styleOptions(styles, assetRule, emittedAssets))
	if len(styleResult.Errors) > 0 {
		logMessages(styleResult.Errors)
		return nil, &BuildError{Step: "styles", Messages: styleResult.Errors}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scriptOpts, err := p.scriptOptions(styles, assetRule, scripts, emittedAssets, transpiled)
	if err != nil {
		return nil, err
	}

	scriptResult := api.Build(scriptOpts)
	if len(scriptResult.Errors) > 0 {
		logMessages(scriptResult.Errors)
		return nil, &BuildError{Step: "scripts", Messages: scriptResult.Errors}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scriptOutputs, moved, err := p.relocateStyles(styleResult.OutputFiles, scriptResult.OutputFiles)
	if err != nil {
		return nil, err
	}

	metadata, err := p.mergeMetadata(styleResult.Metafile, scriptResult.Metafile)
	if err != nil {
		return nil, err
	}
	metadata.rename(moved)

	res := &Result{
		Mode:       p.build.Mode,
		Assets:     emittedAssets.list(),
		Transpiled: transpiled.list(),
	}
	slices.Sort(res.Assets)
	slices.Sort(res.Transpiled)

	res.Styles = metadata.entryOutputs(p.relEntry(p.build.Entries.Style), ".css")
	res.Scripts, err = metadata.scripts(p.relEntry(p.build.Entries.Script))
	if err != nil {
		return nil, err
	}
	res.Styles = append(res.Styles, metadata.entryOutputs(p.relEntry(p.build.Entries.Script), ".css")...)
	slices.Sort(res.Styles)
	res.Styles = slices.Compact(res.Styles)

	var files []string
	for _, out := range [][]api.OutputFile{styleResult.OutputFiles, scriptOutputs} {
		for _, f := range out {
			rel, err := filepath.Rel(p.build.Output.Dir, f.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, filepath.ToSlash(rel))
		}
	}
	files = append(files, res.Assets...)

	if plugin, ok := p.build.Plugin(buildconfig.PluginCopyStatic); ok {
		res.Copied, err = CopyStatic(plugin.CopyStatic, p.build.Output.Dir)
		if err != nil {
			return nil, err
		}
		files = append(files, res.Copied...)
	}

	if plugin, ok := p.build.Plugin(buildconfig.PluginHTMLShell); ok {
		res.HTML, err = p.writeShell(plugin.HTMLShell, res.Scripts, res.Styles)
		if err != nil {
			return nil, err
		}
		files = append(files, res.HTML)
	}

	if err := p.writeMetadata(metadata); err != nil {
		return nil, err
	}

	manifest, err := newManifest(p.build.Mode.String())
	if err != nil {
		return nil, err
	}
	manifest.Entries[buildconfig.CategoryStyle] = res.Styles
	manifest.Entries[buildconfig.CategoryScript] = res.Scripts
	if err := manifest.addFiles(p.build.Output.Dir, files); err != nil {
		return nil, err
	}
	res.BuildID = manifest.BuildID
	res.Manifest = manifest

	keep := append(slices.Clone(files), p.config.MetafilePath, p.config.ManifestPath)
	if p.config.Precompress {
		created, err := Precompress(p.build.Output.Dir, files)
		if err != nil {
			return nil, err
		}
		keep = append(keep, created...)
	}

	if err := manifest.write(filepath.Join(p.build.Output.Dir, p.config.ManifestPath)); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	if p.cleaner != nil {
		res.Pruned, err = p.cleaner.Prune(keep)
		if err != nil {
			return nil, err
		}
	}

	p.metadata = metadata
	p.manifest = manifest
	return res, nil
}

// styleOptions builds the style entry: sass, post-CSS, CSS loading and extraction into
// its own file.
func (p *Pipeline) styleOptions(styles, assetRule buildconfig.Rule, out *emitted) api.BuildOptions {
	_, optimize := p.build.Plugin(buildconfig.PluginOptimizeCSS)
	_, cssMinimizer := p.build.Optimization.Minimizer(buildconfig.MinimizerCSS)
	minify := optimize || (p.build.Optimization.Minimize && cssMinimizer)

	return api.BuildOptions{
		EntryPoints:      []string{p.build.Entries.Style},
		Bundle:           true,
		Write:            true,
		AbsWorkingDir:    p.build.Context,
		Outdir:           p.build.Output.Dir,
		EntryNames:       esbuildNames(p.styleFilename(), false),
		NodePaths:        []string{p.build.DependencyDir},
		Engines:          p.config.Engines,
		MinifyWhitespace: minify,
		MinifySyntax:     minify,
		Sourcemap:        util.Cond(p.build.StyleSourceMaps(), api.SourceMapInline, api.SourceMapNone),
		Metafile:         true,
		LogLevel:         p.config.LogLevel,
		Plugins: []api.Plugin{
			p.sassPlugin(styles),
			p.filesPlugin(assetRule, out),
		},
	}
}

// styleFilename is the naming rule for every extracted stylesheet.
func (p *Pipeline) styleFilename() string {
	if plugin, ok := p.build.Plugin(buildconfig.PluginExtractCSS); ok {
		return plugin.ExtractCSS.Filename
	}
	return buildconfig.NamingRule(buildconfig.CategoryStyle, "css", p.build.Mode)
}

// scriptOptions builds the script entry.
func (p *Pipeline) scriptOptions(styles, assetRule, scripts buildconfig.Rule, out, transpiled *emitted) (api.BuildOptions, error) {
	_, scriptMinimizer := p.build.Optimization.Minimizer(buildconfig.MinimizerScript)
	minify := p.build.Optimization.Minimize && scriptMinimizer

	opts := api.BuildOptions{
		EntryPoints:       []string{p.build.Entries.Script},
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		AbsWorkingDir:     p.build.Context,
		Outdir:            p.build.Output.Dir,
		EntryNames:        esbuildNames(p.build.Output.Filename, false),
		ChunkNames:        esbuildNames(p.build.Output.ChunkFilename, true),
		Format:            api.FormatESModule,
		Platform:          api.PlatformBrowser,
		Target:            api.ESNext,
		NodePaths:         []string{p.build.DependencyDir},
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         api.SourceMapInline,
		Metafile:          true,
		LogLevel:          p.config.LogLevel,
		Plugins: []api.Plugin{
			p.transpilePlugin(scripts, transpiled),
			p.sassPlugin(styles),
			p.filesPlugin(assetRule, out),
		},
	}

	plugin, ok := p.build.Plugin(buildconfig.PluginProvideGlobals)
	if !ok {
		return opts, nil
	}

	shim, err := newGlobalsShim(plugin.ProvideGlobals)
	if err != nil || shim == nil {
		return opts, err
	}

	// a stable location keeps hashed script names stable across builds
	dir := filepath.Join(os.TempDir(), "sitepack-globals-"+util.Checksum([]byte(p.build.Context)))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return opts, fmt.Errorf("failed to create shim dir: %w", err)
	}

	path, err := shim.write(dir)
	if err != nil {
		return opts, err
	}

	opts.Inject = []string{path}
	opts.Define = shim.Defines
	return opts, nil
}

// relocateStyles moves stylesheets the script build extracted next to its scripts
// into the stylesheet dir. One landing on a style build output is appended to it, so
// an entry name shared by both builds still yields a single stylesheet. The returned
// map holds old to new paths relative to the output dir.
func (p *Pipeline) relocateStyles(styles, scripts []api.OutputFile) ([]api.OutputFile, map[string]string, error) {
	dir, _, _ := buildconfig.SplitNamingRule(p.styleFilename())
	moved := map[string]string{}
	kept := make([]api.OutputFile, 0, len(scripts))

	for _, f := range scripts {
		if filepath.Ext(f.Path) != ".css" {
			kept = append(kept, f)
			continue
		}
		rel, err := filepath.Rel(p.build.Output.Dir, f.Path)
		if err != nil {
			return nil, nil, err
		}
		rel = filepath.ToSlash(rel)
		target := dir + "/" + filepath.Base(f.Path)
		if rel == target {
			kept = append(kept, f)
			continue
		}

		abs := filepath.Join(p.build.Output.Dir, filepath.FromSlash(target))
		contents := f.Contents
		shared := slices.IndexFunc(styles, func(o api.OutputFile) bool { return o.Path == abs })
		if shared >= 0 {
			contents = append(slices.Clone(styles[shared].Contents), f.Contents...)
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create style dir: %w", err)
		}
		if err := os.WriteFile(abs, contents, 0o644); err != nil {
			return nil, nil, fmt.Errorf("failed to move %s: %w", rel, err)
		}
		if err := os.Remove(f.Path); err != nil {
			return nil, nil, fmt.Errorf("failed to move %s: %w", rel, err)
		}
		moved[rel] = target

		if shared >= 0 {
			styles[shared].Contents = contents
			continue
		}
		f.Path = abs
		f.Contents = contents
		kept = append(kept, f)
	}
	return kept, moved, nil
}

// esbuildNames converts a naming rule such as "js/[hash].js" to an esbuild output name
// template. esbuild names every chunk "chunk", so development chunk names become
// "js/[name]-[hash]" to stay unique; this is the one hashed name in development.
func esbuildNames(rule string, chunk bool) string {
	dir, token, _ := buildconfig.SplitNamingRule(rule)
	if token == "" {
		return "[name]"
	}
	name := dir + "/[" + token + "]"
	if chunk && token == buildconfig.TokenName {
		name += "-[hash]"
	}
	return name
}

// relEntry converts an absolute entry to the form esbuild uses in the metafile.
func (p *Pipeline) relEntry(entry string) string {
	rel, err := filepath.Rel(p.build.Context, entry)
	if err != nil {
		return filepath.ToSlash(entry)
	}
	return filepath.ToSlash(rel)
}

// mergeMetadata combines metafiles and rekeys outputs relative to the output dir.
func (p *Pipeline) mergeMetadata(metafiles ...string) (*BuildMetadata, error) {
	merged := &BuildMetadata{Outputs: map[string]OutputInfo{}}
	outDir, err := filepath.Rel(p.build.Context, p.build.Output.Dir)
	if err != nil {
		return nil, err
	}
	prefix := filepath.ToSlash(outDir) + "/"

	for _, raw := range metafiles {
		var metadata BuildMetadata
		if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metafile: %w", err)
		}
		for path, info := range metadata.Outputs {
			info.CSSBundle = strings.TrimPrefix(info.CSSBundle, prefix)
			for i := range info.Imports {
				info.Imports[i].Path = strings.TrimPrefix(info.Imports[i].Path, prefix)
			}
			merged.Outputs[strings.TrimPrefix(path, prefix)] = info
		}
	}
	return merged, nil
}

// rename moves outputs to their relocated paths. An output moved onto an existing one
// is merged into it.
func (m *BuildMetadata) rename(moved map[string]string) {
	for from, to := range moved {
		info, ok := m.Outputs[from]
		if !ok {
			continue
		}
		delete(m.Outputs, from)
		if existing, ok := m.Outputs[to]; ok {
			existing.Bytes += info.Bytes
			m.Outputs[to] = existing
			continue
		}
		m.Outputs[to] = info
	}
	for key, info := range m.Outputs {
		if to, ok := moved[info.CSSBundle]; ok {
			info.CSSBundle = to
			m.Outputs[key] = info
		}
	}
}

func (p *Pipeline) writeMetadata(metadata *BuildMetadata) error {
	data, err := json.Marshal(metadata)
	if err != nil {
		return err
	}
	// Write metafile
	return os.WriteFile(filepath.Join(p.build.Output.Dir, p.config.MetafilePath), data, 0o600)
}

// entryOutputs lists outputs produced for entry with the given extension, sorted.
func (m *BuildMetadata) entryOutputs(entry, ext string) []string {
	var outs []string
	for path, info := range m.Outputs {
		if info.EntryPoint == entry && strings.HasSuffix(path, ext) {
			outs = append(outs, path)
		}
	}
	// stylesheets imported from a script entry are recorded as its css bundle
	if ext == ".css" {
		for _, info := range m.Outputs {
			if info.EntryPoint == entry && info.CSSBundle != "" && !slices.Contains(outs, info.CSSBundle) {
				outs = append(outs, info.CSSBundle)
			}
		}
	}
	slices.Sort(outs)
	return outs
}

// scripts returns the ordered list of script paths needed for the entry point: the
// entry output first, then the chunks it imports.
func (m *BuildMetadata) scripts(entry string) ([]string, error) {
	scripts := []string{}
	visited := make(map[string]bool)

	// Find the output file for this entrypoint
	for outputPath, info := range m.Outputs {
		if info.EntryPoint == entry && strings.HasSuffix(outputPath, ".js") {
			scripts = append(scripts, outputPath)
			visited[outputPath] = true
			m.addDependencies(info, &scripts, visited)
			return scripts, nil
		}
	}

	return nil, fmt.Errorf("entrypoint %s not found in metadata", entry)
}

func (m *BuildMetadata) addDependencies(output OutputInfo, scripts *[]string, visited map[string]bool) {
	for _, imp := range output.Imports {
		if imp.External || visited[imp.Path] || !strings.HasSuffix(imp.Path, ".js") {
			continue
		}
		visited[imp.Path] = true
		*scripts = append(*scripts, imp.Path)

		if chunkInfo, exists := m.Outputs[imp.Path]; exists {
			m.addDependencies(chunkInfo, scripts, visited)
		}
	}
}

// LoadScripts returns the ordered list of script paths needed for the given entrypoint.
// The entrypoint may be absolute or relative to the project root.
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, ErrNotBuilt
	}

	entry := filepath.ToSlash(entryPointPath)
	if filepath.IsAbs(entryPointPath) {
		entry = p.relEntry(entryPointPath)
	}
	return p.metadata.scripts(entry)
}

// Manifest returns the manifest of the last successful build
func (p *Pipeline) Manifest() (*Manifest, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.manifest == nil {
		return nil, ErrNotBuilt
	}
	return p.manifest, nil
}

func logMessages(msgs []api.Message) {
	for _, msg := range msgs {
		log.Error().Str("error", formatMessage(msg)).Msg("Build error")
	}
}

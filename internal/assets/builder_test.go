package assets

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

// passthroughSass treats scss sources as plain CSS.
type passthroughSass struct {
	mu   sync.Mutex
	reqs []StyleRequest
}

func (c *passthroughSass) Compile(req StyleRequest) (StyleOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs = append(c.reqs, req)
	return StyleOutput{CSS: req.Source}, nil
}

func (c *passthroughSass) Close() error { return nil }

const siteTemplate = `<!doctype html>
<html>
<head><title>{{ .Title }}</title></head>
<body><main></main></body>
</html>
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// newSite lays out a project in the conventional structure and returns its root.
func newSite(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, filepath.Join(root, "src/sass/main.scss"), `body {
  background: url("../images/logo.png");
}
@font-face {
  font-family: site;
  src: url("../fonts/site.woff2?v=1");
}
`)
	writeFile(t, filepath.Join(root, "src/js/main.js"), `import logo from "../images/logo.png";

const settings = { title: "home" };

$(function () {
  document.title = settings?.title + logo;
  window.jQuery.ready();
});
`)
	writeFile(t, filepath.Join(root, "node_modules/jquery/index.js"), `module.exports = function jQuery(opts) {
  return opts?.debug;
};
module.exports.ready = function () {};
`)
	writeFile(t, filepath.Join(root, "src/templates/index.html"), siteTemplate)
	writeFile(t, filepath.Join(root, "src/images/logo.png"), "\x89PNG fake")
	writeFile(t, filepath.Join(root, "src/images/.gitkeep"), "")
	writeFile(t, filepath.Join(root, "src/images/icons/star.svg"), `<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	writeFile(t, filepath.Join(root, "src/fonts/site.woff2"), "wOF2 fake")

	return root
}

func newPipeline(t *testing.T, root string, mode buildconfig.Mode) (*Pipeline, *passthroughSass) {
	t.Helper()
	compiler := &passthroughSass{}
	build := buildconfig.Resolve(mode, buildconfig.DefaultProject(root))
	return New(build, DefaultConfig(), WithStyleCompiler(compiler)), compiler
}

func readOutput(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, "dist", filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestBuild_development(t *testing.T) {
	root := newSite(t)
	p, compiler := newPipeline(t, root, buildconfig.Development)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	require.Equal(t, buildconfig.Development, res.Mode)
	require.Equal(t, []string{"js/main.js"}, res.Scripts)
	require.Equal(t, []string{"css/main.css"}, res.Styles)
	require.Equal(t, []string{"fonts/site.woff2", "images/logo.png"}, res.Assets)
	require.Equal(t, []string{"src/js/main.js"}, res.Transpiled)
	require.ElementsMatch(t, []string{"images/icons/star.svg", "images/logo.png"}, res.Copied)
	require.Equal(t, "index.html", res.HTML)
	require.NotEmpty(t, res.BuildID)

	// sass sees the importing file's dir and the dependency dir
	require.Len(t, compiler.reqs, 1)
	require.Equal(t, []string{filepath.Join(root, "src/sass"), filepath.Join(root, "node_modules")}, compiler.reqs[0].IncludePaths)
	require.True(t, compiler.reqs[0].SourceMap)

	css := readOutput(t, root, "css/main.css")
	require.Contains(t, css, "../images/logo.png")
	require.Contains(t, css, "../fonts/site.woff2?v=1")
	require.Contains(t, css, "sourceMappingURL=data:application/json")

	js := readOutput(t, root, "js/main.js")
	require.Contains(t, js, `"../images/logo.png"`)
	require.Contains(t, js, "sourceMappingURL=data:application/json")
	// dependencies are bundled as written, project code is lowered
	require.Contains(t, js, "opts?.debug")
	require.NotContains(t, js, "settings?.title")

	require.Equal(t, "\x89PNG fake", readOutput(t, root, "images/logo.png"))
	require.Equal(t, "wOF2 fake", readOutput(t, root, "fonts/site.woff2"))
	require.NoFileExists(t, filepath.Join(root, "dist/images/.gitkeep"))

	html := readOutput(t, root, "index.html")
	require.Contains(t, html, "<title>Home Pages</title>")
	require.Contains(t, html, `<link href="./css/main.css" rel="stylesheet"></head>`)
	require.Contains(t, html, `<script type="module" src="./js/main.js"></script></body>`)

	require.FileExists(t, filepath.Join(root, "dist/meta.json"))
	manifest, err := LoadManifest(filepath.Join(root, "dist/manifest.json"))
	require.NoError(t, err)
	require.Equal(t, res.BuildID, manifest.BuildID)
	require.Equal(t, "development", manifest.Mode)
	require.Equal(t, []string{"js/main.js"}, manifest.Entries["js"])
	require.Equal(t, []string{"css/main.css"}, manifest.Entries["css"])
	require.Subset(t, manifest.Paths(), []string{
		"css/main.css", "fonts/site.woff2", "images/icons/star.svg", "images/logo.png", "index.html", "js/main.js",
	})
}

var hashedName = regexp.MustCompile(`^(js|css)/[A-Z0-9]{8}\.(js|css)$`)

func TestBuild_production(t *testing.T) {
	root := newSite(t)
	p, compiler := newPipeline(t, root, buildconfig.Production)

	res, err := p.Build(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Scripts, 1)
	require.Regexp(t, hashedName, res.Scripts[0])
	require.Len(t, res.Styles, 1)
	require.Regexp(t, hashedName, res.Styles[0])
	require.True(t, strings.HasPrefix(res.Styles[0], "css/"))

	require.False(t, compiler.reqs[0].SourceMap)

	css := readOutput(t, root, res.Styles[0])
	require.NotContains(t, css, "sourceMappingURL")
	require.NotContains(t, css, "\n  ")

	// minified scripts keep their inline source map
	js := readOutput(t, root, res.Scripts[0])
	require.Contains(t, js, "sourceMappingURL=data:application/json")

	html := readOutput(t, root, "index.html")
	require.Contains(t, html, "./"+res.Scripts[0])
	require.Contains(t, html, "./"+res.Styles[0])
}

func TestBuild_scriptImportedStyles(t *testing.T) {
	tests := []struct {
		mode   buildconfig.Mode
		styles int
	}{
		{mode: buildconfig.Development, styles: 1},
		{mode: buildconfig.Production, styles: 2},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			root := newSite(t)
			writeFile(t, filepath.Join(root, "src/sass/widget.scss"), ".widget { color: red; }\n")
			writeFile(t, filepath.Join(root, "src/js/main.js"), `import "../sass/widget.scss";

$(function () {
  document.title = "widget";
});
`)
			p, _ := newPipeline(t, root, tt.mode)

			res, err := p.Build(context.Background())
			require.NoError(t, err)

			require.Len(t, res.Styles, tt.styles)
			var css strings.Builder
			for _, style := range res.Styles {
				require.True(t, strings.HasPrefix(style, "css/"), style)
				css.WriteString(readOutput(t, root, style))
			}
			require.Contains(t, css.String(), "widget")
			require.Contains(t, css.String(), "logo.png")

			stray, err := filepath.Glob(filepath.Join(root, "dist/js/*.css"))
			require.NoError(t, err)
			require.Empty(t, stray)

			require.Equal(t, res.Styles, res.Manifest.Entries["css"])
			require.Subset(t, res.Manifest.Paths(), res.Styles)

			html := readOutput(t, root, "index.html")
			for _, style := range res.Styles {
				require.Contains(t, html, "./"+style)
			}
		})
	}
}

func TestBuild_productionStableNames(t *testing.T) {
	root := newSite(t)
	p, _ := newPipeline(t, root, buildconfig.Production)

	first, err := p.Build(context.Background())
	require.NoError(t, err)
	second, err := p.Build(context.Background())
	require.NoError(t, err)

	require.Equal(t, first.Scripts, second.Scripts)
	require.Equal(t, first.Styles, second.Styles)
	require.Empty(t, second.Pruned)
}

func TestBuild_productionPrunesStaleOutputs(t *testing.T) {
	root := newSite(t)
	p, _ := newPipeline(t, root, buildconfig.Production)

	first, err := p.Build(context.Background())
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "src/js/main.js"), `$(function () { document.title = "changed"; });`)

	second, err := p.Build(context.Background())
	require.NoError(t, err)
	require.NotEqual(t, first.Scripts, second.Scripts)
	require.Contains(t, second.Pruned, first.Scripts[0])
	require.NoFileExists(t, filepath.Join(root, "dist", first.Scripts[0]))
	require.FileExists(t, filepath.Join(root, "dist", second.Scripts[0]))
}

func TestBuild_developmentKeepsStaleOutputs(t *testing.T) {
	root := newSite(t)
	p, _ := newPipeline(t, root, buildconfig.Development)

	_, err := p.Build(context.Background())
	require.NoError(t, err)

	writeFile(t, filepath.Join(root, "dist/js/old.js"), "stale")

	res, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Pruned)
	require.FileExists(t, filepath.Join(root, "dist/js/old.js"))
}

func TestBuild_cleansPreviousOutput(t *testing.T) {
	root := newSite(t)
	writeFile(t, filepath.Join(root, "dist/leftover.txt"), "old")

	p, _ := newPipeline(t, root, buildconfig.Development)
	_, err := p.Build(context.Background())
	require.NoError(t, err)
	require.NoFileExists(t, filepath.Join(root, "dist/leftover.txt"))
}

func TestBuild_precompress(t *testing.T) {
	root := newSite(t)
	compiler := &passthroughSass{}
	config := DefaultConfig()
	config.Precompress = true

	p := New(buildconfig.Resolve(buildconfig.Production, buildconfig.DefaultProject(root)), config, WithStyleCompiler(compiler))
	res, err := p.Build(context.Background())
	require.NoError(t, err)

	require.FileExists(t, filepath.Join(root, "dist", res.Scripts[0]+".gz"))
	require.FileExists(t, filepath.Join(root, "dist", res.Scripts[0]+".zst"))
	require.FileExists(t, filepath.Join(root, "dist/index.html.gz"))
	require.NoFileExists(t, filepath.Join(root, "dist/images/logo.png.gz"))
	require.Empty(t, res.Pruned)
}

func TestBuild_missingImageDir(t *testing.T) {
	root := newSite(t)
	writeFile(t, filepath.Join(root, "src/sass/main.scss"), `body { color: red; }`)
	writeFile(t, filepath.Join(root, "src/js/main.js"), `$(function () {});`)
	require.NoError(t, os.RemoveAll(filepath.Join(root, "src/images")))

	p, _ := newPipeline(t, root, buildconfig.Production)
	res, err := p.Build(context.Background())
	require.NoError(t, err)
	require.Empty(t, res.Copied)
}

func TestBuild_missingEntry(t *testing.T) {
	root := newSite(t)
	require.NoError(t, os.Remove(filepath.Join(root, "src/js/main.js")))

	p, _ := newPipeline(t, root, buildconfig.Development)
	_, err := p.Build(context.Background())
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestBuild_syntaxError(t *testing.T) {
	root := newSite(t)
	writeFile(t, filepath.Join(root, "src/js/main.js"), "export const = ;")

	p, _ := newPipeline(t, root, buildconfig.Development)
	_, err := p.Build(context.Background())
	require.ErrorIs(t, err, ErrBuildFailed)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	require.Equal(t, "scripts", buildErr.Step)
	require.NotEmpty(t, buildErr.Messages)
}

func TestBuild_templateError(t *testing.T) {
	root := newSite(t)
	writeFile(t, filepath.Join(root, "src/templates/index.html"), "<html>{{ .Missing </html>")

	p, _ := newPipeline(t, root, buildconfig.Development)
	_, err := p.Build(context.Background())
	require.ErrorIs(t, err, ErrTemplate)
}

func TestPipeline_notBuilt(t *testing.T) {
	p, _ := newPipeline(t, t.TempDir(), buildconfig.Development)

	_, err := p.Manifest()
	require.ErrorIs(t, err, ErrNotBuilt)

	_, err = p.LoadScripts("src/js/main.js")
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestPipeline_loadScripts(t *testing.T) {
	root := newSite(t)
	p, _ := newPipeline(t, root, buildconfig.Development)

	_, err := p.Build(context.Background())
	require.NoError(t, err)

	scripts, err := p.LoadScripts("src/js/main.js")
	require.NoError(t, err)
	require.Equal(t, []string{"js/main.js"}, scripts)

	scripts, err = p.LoadScripts(filepath.Join(root, "src/js/main.js"))
	require.NoError(t, err)
	require.Equal(t, []string{"js/main.js"}, scripts)

	_, err = p.LoadScripts("src/js/other.js")
	require.Error(t, err)
}

func TestBuildMetadata_scripts(t *testing.T) {
	m := &BuildMetadata{Outputs: map[string]OutputInfo{
		"js/main.js": {
			EntryPoint: "src/js/main.js",
			Imports: []ImportInfo{
				{Path: "js/chunk-ABC.js", Kind: "import-statement"},
				{Path: "jquery", Kind: "import-statement", External: true},
				{Path: "../images/logo.png", Kind: "url-token"},
			},
		},
		"js/chunk-ABC.js": {
			Imports: []ImportInfo{
				{Path: "js/chunk-DEF.js", Kind: "import-statement"},
				{Path: "js/main.js", Kind: "import-statement"},
			},
		},
		"js/chunk-DEF.js": {},
		"css/main.css":    {EntryPoint: "src/sass/main.scss"},
	}}

	scripts, err := m.scripts("src/js/main.js")
	require.NoError(t, err)
	require.Equal(t, []string{"js/main.js", "js/chunk-ABC.js", "js/chunk-DEF.js"}, scripts)

	require.Equal(t, []string{"css/main.css"}, m.entryOutputs("src/sass/main.scss", ".css"))
}

func TestBuildMetadata_cssBundle(t *testing.T) {
	m := &BuildMetadata{Outputs: map[string]OutputInfo{
		"js/main.js":   {EntryPoint: "src/js/main.js", CSSBundle: "js/main.css"},
	}}

	require.Equal(t, []string{"js/main.css"}, m.entryOutputs("src/js/main.js", ".css"))
}

func TestBuildMetadata_rename(t *testing.T) {
	m := &BuildMetadata{Outputs: map[string]OutputInfo{
		"js/main.js":   {EntryPoint: "src/js/main.js", CSSBundle: "js/main.css"},
		"js/main.css":  {EntryPoint: "src/js/main.js", Bytes: 10},
		"js/other.js":  {EntryPoint: "src/js/other.js", CSSBundle: "js/other.css"},
		"js/other.css": {EntryPoint: "src/js/other.js", Bytes: 5},
		"css/main.css": {EntryPoint: "src/sass/main.scss", Bytes: 20},
	}}

	m.rename(map[string]string{"js/main.css": "css/main.css", "js/other.css": "css/other.css"})

	require.NotContains(t, m.Outputs, "js/main.css")
	require.NotContains(t, m.Outputs, "js/other.css")
	require.Equal(t, 30, m.Outputs["css/main.css"].Bytes)
	require.Equal(t, "src/sass/main.scss", m.Outputs["css/main.css"].EntryPoint)
	require.Equal(t, "src/js/other.js", m.Outputs["css/other.css"].EntryPoint)
	require.Equal(t, "css/main.css", m.Outputs["js/main.js"].CSSBundle)
	require.Equal(t, []string{"css/main.css"}, m.entryOutputs("src/js/main.js", ".css"))
	require.Equal(t, []string{"css/other.css"}, m.entryOutputs("src/js/other.js", ".css"))
}

func TestEsbuildNames_resolvedChunks(t *testing.T) {
	tests := []struct {
		mode     buildconfig.Mode
		chunk    string
		expected string
	}{
		{mode: buildconfig.Development, chunk: "js/[name].js", expected: "js/[name]-[hash]"},
		{mode: buildconfig.Production, chunk: "js/[hash].js", expected: "js/[hash]"},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			build := buildconfig.Resolve(tt.mode, buildconfig.DefaultProject("/site"))
			require.Equal(t, tt.chunk, build.Output.ChunkFilename)
			require.Equal(t, tt.expected, esbuildNames(build.Output.ChunkFilename, true))
		})
	}
}

func TestEsbuildNames(t *testing.T) {
	tests := []struct {
		rule     string
		chunk    bool
		expected string
	}{
		{rule: "js/[hash].js", expected: "js/[hash]"},
		{rule: "js/[hash].js", chunk: true, expected: "js/[hash]"},
		{rule: "js/[name].js", expected: "js/[name]"},
		{rule: "js/[name].js", chunk: true, expected: "js/[name]-[hash]"},
		{rule: "css/[name].css", expected: "css/[name]"},
	}

	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			require.Equal(t, tt.expected, esbuildNames(tt.rule, tt.chunk))
		})
	}
}

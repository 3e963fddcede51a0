package assets

import (
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

func TestDartSass(t *testing.T) {
	binary, err := exec.LookPath("sass")
	if err != nil {
		t.Skip("sass not on PATH")
	}

	c := NewDartSass(binary)
	defer c.Close()

	out, err := c.Compile(StyleRequest{
		Path:      "/site/src/sass/main.scss",
		Source:    "$brand: #336699;\n.nav { a { color: $brand; } }\n",
		SourceMap: true,
	})
	if err != nil && strings.Contains(err.Error(), "failed to start dart-sass") {
		t.Skipf("sass on PATH does not support the embedded protocol: %v", err)
	}
	require.NoError(t, err)
	require.Contains(t, out.CSS, ".nav a")
	require.Contains(t, out.CSS, "#336699")
	require.NotEmpty(t, out.SourceMap)
}

func TestPostCSS(t *testing.T) {
	build := buildconfig.Resolve(buildconfig.Development, buildconfig.DefaultProject(t.TempDir()))
	p := New(build, DefaultConfig(), WithStyleCompiler(&passthroughSass{}))
	path := filepath.Join(build.Context, "src/sass/main.scss")

	css, err := p.postCSS(path, StyleOutput{CSS: ".a { color: red; }"}, false)
	require.NoError(t, err)
	require.Contains(t, css, ".a")
	require.NotContains(t, css, "sourceMappingURL")

	css, err = p.postCSS(path, StyleOutput{CSS: ".a { color: red; }"}, true)
	require.NoError(t, err)
	require.Contains(t, css, "sourceMappingURL=data:application/json;base64,")
}

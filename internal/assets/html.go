package assets

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/sitepack/internal/buildconfig"
)

// ShellData is passed to the HTML shell template
type ShellData struct {
	Title      string
	PublicPath string
	Scripts    []string
	Styles     []string
	Mode       string
}

// RenderShell renders the HTML shell template. Script and style tags the template does
// not reference itself are injected before </body> and </head>.
func (p *Pipeline) RenderShell(opts *buildconfig.HTMLOptions, scripts, styles []string) ([]byte, error) {
	tmpl, err := template.New(filepath.Base(opts.Template)).Funcs(p.funcs).ParseFiles(opts.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplate, opts.Template, err)
	}

	data := ShellData{
		Title:      opts.Title,
		PublicPath: opts.PublicPath,
		Scripts:    publicURLs(opts.PublicPath, scripts),
		Styles:     publicURLs(opts.PublicPath, styles),
		Mode:       p.build.Mode.String(),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTemplate, opts.Template, err)
	}

	html := buf.String()

	var links strings.Builder
	for _, href := range data.Styles {
		if !strings.Contains(html, href) {
			fmt.Fprintf(&links, "<link href=%q rel=\"stylesheet\">", template.HTMLEscapeString(href))
		}
	}
	html = injectBefore(html, "</head>", links.String())

	var tags strings.Builder
	for _, src := range data.Scripts {
		if !strings.Contains(html, src) {
			fmt.Fprintf(&tags, "<script type=\"module\" src=%q></script>", template.HTMLEscapeString(src))
		}
	}
	html = injectBefore(html, "</body>", tags.String())

	return []byte(html), nil
}

// writeShell renders the shell and writes it under the output dir.
func (p *Pipeline) writeShell(opts *buildconfig.HTMLOptions, scripts, styles []string) (string, error) {
	html, err := p.RenderShell(opts, scripts, styles)
	if err != nil {
		return "", err
	}

	name := opts.Filename
	if name == "" {
		name = buildconfig.HTMLFilename
	}
	if err := os.WriteFile(filepath.Join(p.build.Output.Dir, name), html, 0o644); err != nil { //nolint:gosec // G306: public build output
		return "", fmt.Errorf("failed to write html shell: %w", err)
	}
	return name, nil
}

func publicURLs(publicPath string, files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = strings.TrimPrefix(f, "/")
		if publicPath == "" || publicPath == "./" {
			out = append(out, "./"+f)
			continue
		}
		if strings.Contains(publicPath, "://") {
			out = append(out, strings.TrimSuffix(publicPath, "/")+"/"+f)
			continue
		}
		out = append(out, path.Join(publicPath, f))
	}
	return out
}

// injectBefore inserts s before the last occurrence of marker (case-insensitive) or
// appends it when the marker is missing.
func injectBefore(html, marker, s string) string {
	if s == "" {
		return html
	}
	i := strings.LastIndex(strings.ToLower(html), marker)
	if i < 0 {
		return html + s
	}
	return html[:i] + s + html[i:]
}

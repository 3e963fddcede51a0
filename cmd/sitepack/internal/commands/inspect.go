package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
	"gopkg.in/yaml.v3"
)

type InspectCmd struct {
	ProjectFlags

	Mode   string `help:"Build mode." enum:"development,production" default:"production" env:"SITEPACK_MODE"`
	Format string `help:"Output format." enum:"table,yaml,json" default:"table"`
}

func (i *InspectCmd) Run(ctx context.Context, globals *Globals) error {
	_, shutdown := globals.setup(ctx)
	defer shutdown()

	build, err := i.resolve(i.Mode)
	if err != nil {
		return err
	}
	return renderConfiguration(os.Stdout, i.Format, build)
}

type ruleView struct {
	Name    string   `json:"name" yaml:"name"`
	Test    string   `json:"test" yaml:"test"`
	Exclude string   `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	Loaders []string `json:"loaders" yaml:"loaders"`
}

type configView struct {
	Mode          string                   `json:"mode" yaml:"mode"`
	Context       string                   `json:"context" yaml:"context"`
	Entries       buildconfig.Entries      `json:"entries" yaml:"entries"`
	Devtool       string                   `json:"devtool" yaml:"devtool"`
	Output        buildconfig.Output       `json:"output" yaml:"output"`
	Rules         []ruleView               `json:"rules" yaml:"rules"`
	Plugins       []buildconfig.Plugin     `json:"plugins" yaml:"plugins"`
	Optimization  buildconfig.Optimization `json:"optimization" yaml:"optimization"`
	DependencyDir string                   `json:"dependencyDir" yaml:"dependencyDir"`
}

func newConfigView(c *buildconfig.Configuration) configView {
	view := configView{
		Mode:          c.Mode.String(),
		Context:       c.Context,
		Entries:       c.Entries,
		Devtool:       c.Devtool,
		Output:        c.Output,
		Plugins:       c.Plugins,
		Optimization:  c.Optimization,
		DependencyDir: c.DependencyDir,
	}
	for _, r := range c.Rules {
		rv := ruleView{Name: r.Name, Loaders: r.LoaderChain()}
		if r.Test != nil {
			rv.Test = r.Test.String()
		}
		if r.Exclude != nil {
			rv.Exclude = r.Exclude.String()
		}
		view.Rules = append(view.Rules, rv)
	}
	return view
}

func renderConfiguration(w io.Writer, format string, c *buildconfig.Configuration) error {
	view := newConfigView(c)

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(view); err != nil {
			return err
		}
		return enc.Close()
	case "table":
		renderTable(w, view)
		return nil
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func renderTable(w io.Writer, view configView) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle("sitepack " + view.Mode)

	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"context", view.Context},
		{"entry (style)", view.Entries.Style},
		{"entry (script)", view.Entries.Script},
		{"devtool", view.Devtool},
		{"output dir", view.Output.Dir},
		{"public path", view.Output.PublicPath},
		{"filename", view.Output.Filename},
		{"chunk filename", view.Output.ChunkFilename},
		{"minimize", view.Optimization.Minimize},
	})
	t.AppendSeparator()
	for _, r := range view.Rules {
		t.AppendRow(table.Row{"rule " + r.Name, r.Test + " -> " + strings.Join(r.Loaders, " <- ")})
	}
	t.AppendSeparator()
	for i, p := range view.Plugins {
		t.AppendRow(table.Row{fmt.Sprintf("plugin %d", i+1), pluginSummary(p)})
	}
	t.Render()
}

func pluginSummary(p buildconfig.Plugin) string {
	kind := string(p.Kind)
	switch {
	case p.Clean != nil:
		return fmt.Sprintf("%s (stale: %t)", kind, p.Clean.CleanStale)
	case p.ExtractCSS != nil:
		return kind + " " + p.ExtractCSS.Filename
	case p.OptimizeCSS != nil:
		return fmt.Sprintf("%s (inline map: %t)", kind, p.OptimizeCSS.InlineMap)
	case p.CopyStatic != nil:
		return kind + " " + p.CopyStatic.From + " -> " + p.CopyStatic.To
	case p.ProvideGlobals != nil:
		return kind + " " + strings.Join(p.ProvideGlobals.Names(), ", ")
	case p.HTMLShell != nil:
		return kind + " " + p.HTMLShell.Template
	default:
		return kind
	}
}

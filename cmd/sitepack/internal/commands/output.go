package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/wolfeidau/sitepack/internal/assets"
)

// printResult lists the emitted files with their sizes.
func printResult(w io.Writer, outDir string, res *assets.Result) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(fmt.Sprintf("%s build %s -> %s", res.Mode, res.BuildID, outDir))
	t.AppendHeader(table.Row{"File", "Size", "Checksum"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
	})

	var total int64
	for _, path := range res.Manifest.Paths() {
		info := res.Manifest.Files[path]
		total += info.Size
		t.AppendRow(table.Row{path, formatBytes(info.Size), info.Checksum})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d files", len(res.Manifest.Files)), formatBytes(total), ""})
	t.Render()

	if len(res.Pruned) > 0 {
		_, _ = fmt.Fprintf(w, "pruned %d stale files\n", len(res.Pruned))
	}
	return nil
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

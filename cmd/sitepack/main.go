package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/sitepack/cmd/sitepack/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool `help:"Enable debug mode." env:"SITEPACK_DEBUG"`
		Telemetry bool `help:"Export build traces and metrics over OTLP." env:"SITEPACK_TELEMETRY"`
		Version   kong.VersionFlag

		Build   commands.BuildCmd   `cmd:"" help:"Build the site"`
		Serve   commands.ServeCmd   `cmd:"" help:"Build in development mode, watch sources and serve the output"`
		Inspect commands.InspectCmd `cmd:"" help:"Print the resolved build configuration"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("sitepack"),
		kong.Description("Static site asset builder."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Telemetry: cli.Telemetry, Version: version})
	cmd.FatalIfErrorf(err)
}

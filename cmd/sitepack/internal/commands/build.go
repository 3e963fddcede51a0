package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/wolfeidau/sitepack/internal/assets"
)

type BuildCmd struct {
	ProjectFlags

	Mode        string `help:"Build mode." enum:"development,production" default:"production" env:"SITEPACK_MODE"`
	Precompress bool   `help:"Write .gz and .zst siblings for text outputs." env:"SITEPACK_PRECOMPRESS"`
	Sass        string `help:"dart-sass executable." default:"sass" env:"SITEPACK_SASS"`
}

func (b *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log, shutdown := globals.setup(ctx)
	defer shutdown()

	build, err := b.resolve(b.Mode)
	if err != nil {
		return err
	}

	config := assets.DefaultConfig()
	config.Precompress = b.Precompress
	config.SassBinary = b.Sass

	pipeline := assets.New(build, config)
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop sass compiler")
		}
	}()

	res, err := pipeline.Build(ctx)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	return printResult(os.Stdout, build.Output.Dir, res)
}

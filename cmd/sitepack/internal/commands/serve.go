package commands

import (
	"context"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/wolfeidau/sitepack/internal/assets"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
	"github.com/wolfeidau/sitepack/internal/devserver"
)

type ServeCmd struct {
	ProjectFlags

	Listen      string   `help:"Listen address." default:"localhost:8080" env:"SITEPACK_LISTEN"`
	CORSOrigins []string `help:"Origins allowed to fetch assets cross-origin." env:"SITEPACK_CORS_ORIGINS"`
	Watch       []string `help:"Directories to watch, relative to the root." default:"src"`
	Sass        string   `help:"dart-sass executable." default:"sass" env:"SITEPACK_SASS"`
}

func (s *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log, shutdown := globals.setup(ctx)
	defer shutdown()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	build, err := s.resolve(buildconfig.Development.String())
	if err != nil {
		return err
	}

	config := assets.DefaultConfig()
	config.SassBinary = s.Sass

	pipeline := assets.New(build, config)
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop sass compiler")
		}
	}()

	watch := make([]string, 0, len(s.Watch))
	for _, dir := range s.Watch {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(build.Context, dir)
		}
		watch = append(watch, dir)
	}

	server := devserver.New(pipeline, devserver.Config{
		Addr:        s.Listen,
		OutputDir:   build.Output.Dir,
		WatchDirs:   watch,
		SkipDirs:    []string{filepath.Base(build.DependencyDir), filepath.Base(build.Output.Dir)},
		CORSOrigins: s.CORSOrigins,
	})

	return server.ListenAndServe(ctx)
}

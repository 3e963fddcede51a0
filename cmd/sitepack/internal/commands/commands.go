package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
	"github.com/wolfeidau/sitepack/internal/logger"
	"github.com/wolfeidau/sitepack/internal/telemetry"
)

// ProjectFile is looked up in the project root when no --config is given.
const ProjectFile = "sitepack.yaml"

type Globals struct {
	Debug     bool
	Telemetry bool
	Version   string
}

// ProjectFlags locate the project shared by every command.
type ProjectFlags struct {
	Root   string `help:"Project root directory." default:"." env:"SITEPACK_ROOT" type:"path"`
	Config string `help:"Project file, defaults to sitepack.yaml in the root when present." env:"SITEPACK_CONFIG" type:"path"`
}

// setup installs the process logger and starts telemetry. The returned func flushes
// telemetry and must be deferred.
func (g *Globals) setup(ctx context.Context) (zerolog.Logger, func()) {
	l := logger.Setup(g.Debug)
	log.Logger = l

	l.Debug().Str("version", g.Version).Msg("Starting sitepack")

	shutdown, err := telemetry.InitTelemetry(ctx, g.Telemetry, "sitepack", g.Version)
	if err != nil {
		l.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		shutdown = telemetry.Noop
	}

	return l, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			l.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}

// loadProject reads the project file, or falls back to the default layout under root.
func (f ProjectFlags) loadProject() (buildconfig.Project, error) {
	if f.Config != "" {
		return buildconfig.LoadProject(f.Config)
	}

	root, err := filepath.Abs(f.Root)
	if err != nil {
		return buildconfig.Project{}, fmt.Errorf("failed to resolve root: %w", err)
	}

	path := filepath.Join(root, ProjectFile)
	if _, err := os.Stat(path); err == nil {
		return buildconfig.LoadProject(path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return buildconfig.Project{}, fmt.Errorf("failed to stat project file: %w", err)
	}

	return buildconfig.DefaultProject(root), nil
}

// resolve parses the mode strictly and resolves the configuration for the project.
func (f ProjectFlags) resolve(mode string) (*buildconfig.Configuration, error) {
	m, err := buildconfig.ParseMode(mode)
	if err != nil {
		return nil, err
	}
	project, err := f.loadProject()
	if err != nil {
		return nil, err
	}
	return buildconfig.Resolve(m, project), nil
}

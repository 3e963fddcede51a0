// Package devserver rebuilds the site when sources change and serves the output
// directory over HTTP.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/assets"
	"github.com/wolfeidau/sitepack/internal/buildconfig"
	sphttp "github.com/wolfeidau/sitepack/internal/http"
)

const (
	DefaultDebounce   = 100 * time.Millisecond
	DefaultMaxRetries = 3
	shutdownTimeout   = 5 * time.Second
)

// Builder is the part of the asset pipeline the dev server drives.
type Builder interface {
	Build(ctx context.Context) (*assets.Result, error)
	Manifest() (*assets.Manifest, error)
}

type Config struct {
	Addr        string
	OutputDir   string
	WatchDirs   []string
	SkipDirs    []string // directory names never watched, such as node_modules
	CORSOrigins []string
	Debounce    time.Duration
	MaxRetries  uint

	// OnRebuild is called after every rebuild triggered by the watcher.
	OnRebuild func(*assets.Result, error)
}

type Server struct {
	builder Builder
	cfg     Config
	logger  zerolog.Logger
}

func New(builder Builder, cfg Config) *Server {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &Server{
		builder: builder,
		cfg:     cfg,
		logger:  log.Logger,
	}
}

// Handler serves the output directory. Files listed in the manifest carry their
// checksum as ETag so unchanged files revalidate with 304 across rebuilds.
func (s *Server) Handler() http.Handler {
	files := http.FileServer(http.Dir(s.cfg.OutputDir))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" {
			name = buildconfig.HTMLFilename
		}
		if manifest, err := s.builder.Manifest(); err == nil {
			if info, ok := manifest.Files[name]; ok {
				w.Header().Set("ETag", `"`+info.Checksum+`"`)
			}
		}
		files.ServeHTTP(w, r)
	})

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead},
	})

	return sphttp.Chain(h,
		sphttp.ClientIPMiddleware(),
		sphttp.RequestLogger(s.logger),
		c.Handler,
		sphttp.NoStore(),
	)
}

// ListenAndServe builds once, then watches and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve builds once and registers the watch dirs before accepting connections on ln,
// so a failed build or an unwatchable dir is returned immediately.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	watcher, err := s.newWatcher()
	if err != nil {
		_ = ln.Close()
		return err
	}

	if _, err := s.rebuild(ctx); err != nil {
		_ = watcher.Close()
		_ = ln.Close()
		return fmt.Errorf("initial build failed: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- s.watch(ctx, watcher)
	}()

	server := configureHTTPServer(ln.Addr().String(), s.Handler())

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to shutdown dev server")
		}
	}()

	log.Info().
		Str("addr", ln.Addr().String()).
		Strs("watch", s.cfg.WatchDirs).
		Msg("Dev server running")

	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	cancel()
	return <-watchErr
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}

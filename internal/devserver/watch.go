package devserver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/sitepack/internal/assets"
	"github.com/wolfeidau/sitepack/internal/telemetry"
)

// Watch rebuilds after source changes settle for the debounce interval. It returns
// when ctx is cancelled, or straight away if a watch dir cannot be registered.
func (s *Server) Watch(ctx context.Context) error {
	watcher, err := s.newWatcher()
	if err != nil {
		return err
	}
	return s.watch(ctx, watcher)
}

func (s *Server) newWatcher() (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	for _, dir := range s.cfg.WatchDirs {
		if err := s.watchDir(watcher, dir); err != nil {
			_ = watcher.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	return watcher, nil
}

// watch runs the event loop and closes watcher on return.
func (s *Server) watch(ctx context.Context, watcher *fsnotify.Watcher) error {
	defer func() { _ = watcher.Close() }()

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if s.skipped(event.Name) {
				continue
			}

			// new directories are not covered by the existing watches
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := s.watchDir(watcher, event.Name); err != nil {
						log.Warn().Err(err).Str("dir", event.Name).Msg("Failed to watch new directory")
					}
				}
			}

			log.Debug().Str("file", event.Name).Str("op", event.Op.String()).Msg("Change detected")

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(s.cfg.Debounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case <-trigger:
			telemetry.GetMetrics().RebuildsTotal.Add(ctx, 1)
			res, err := s.rebuild(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Rebuild failed")
			}
			if s.cfg.OnRebuild != nil {
				s.cfg.OnRebuild(res, err)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// rebuild runs a build, retrying failures that may clear up once an editor finishes
// writing. Compilation errors are returned without retrying.
func (s *Server) rebuild(ctx context.Context) (*assets.Result, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = time.Second

	attempt := 0
	return backoff.Retry(ctx, func() (*assets.Result, error) {
		attempt++
		if attempt > 1 {
			telemetry.GetMetrics().RebuildRetries.Add(ctx, 1)
		}
		res, err := s.builder.Build(ctx)
		if err == nil {
			return res, nil
		}
		if permanent(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(s.cfg.MaxRetries),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("Build failed, retrying")
		}),
	)
}

func permanent(err error) bool {
	var buildErr *assets.BuildError
	return errors.As(err, &buildErr) ||
		errors.Is(err, assets.ErrTemplate) ||
		errors.Is(err, context.Canceled)
}

func (s *Server) watchDir(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && s.skipped(path) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// skipped reports whether path is a dot file or lies in a skipped directory.
func (s *Server) skipped(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if slices.Contains(s.cfg.SkipDirs, part) {
			return true
		}
	}
	return false
}

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eleven-am/dbhelper/internal/builtin"
	"github.com/eleven-am/dbhelper/internal/logger"
	"github.com/eleven-am/dbhelper/internal/metrics"
	"github.com/eleven-am/dbhelper/pkg/dbhelper"
	"github.com/eleven-am/dbhelper/pkg/script"
)

// session holds what one command invocation shares: the script resolver
// and, with --metrics, the collector observing it.
type session struct {
	registry  *prometheus.Registry
	collector *metrics.Collector
	resolver  *script.Resolver
}

// currentSession builds the session on first use
func currentSession() (*session, error) {
	if current != nil {
		return current, nil
	}

	s := &session{}
	var opts []script.Option
	if showMetrics {
		s.registry = prometheus.NewRegistry()
		collector, err := metrics.New(s.registry)
		if err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
		s.collector = collector
		opts = append(opts, script.WithObserver(collector))
	}

	bundles, err := scriptBundles()
	if err != nil {
		return nil, err
	}
	s.resolver = script.NewResolver(bundles, opts...)

	current = s
	return s, nil
}

// scriptBundles registers one bundle per script directory, in flag order,
// followed by the built-in scripts.
func scriptBundles() (*script.Registry, error) {
	registry, err := script.NewRegistry()
	if err != nil {
		return nil, err
	}

	for _, dir := range scriptDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("script directory %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("script directory %s is not a directory", dir)
		}
		if err := registry.Register(script.NewFSBundle(dir, os.DirFS(dir))); err != nil {
			return nil, err
		}
	}

	if config == nil || config.UseBuiltin() {
		if err := registry.Register(builtin.Bundle()); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

// withHelper opens a connection for the duration of fn
func (s *session) withHelper(ctx context.Context, fn func(*dbhelper.Helper) error) error {
	if databaseURL == "" {
		return fmt.Errorf("no database URL: use --url, DATABASE_URL or the database.url config key")
	}

	cfg := DefaultConfig().DatabaseConfig()
	if config != nil {
		cfg = config.DatabaseConfig()
	}
	cfg.URL = databaseURL
	if driverName != "" {
		cfg.Driver = driverName
	}

	opts := []dbhelper.Option{
		dbhelper.WithResolver(s.resolver),
		dbhelper.WithMiddleware(dbhelper.LoggingMiddleware(), dbhelper.TracingMiddleware(nil)),
	}
	if s.collector != nil {
		opts = append(opts, dbhelper.WithMiddleware(s.collector.Middleware()))
	}

	logger.CLI().WithField("driver", cfg.Driver).Debug("connecting")
	return dbhelper.WithConnection(ctx, cfg, fn, opts...)
}

func (s *session) writeMetrics(w io.Writer) error {
	if s.registry == nil {
		return nil
	}
	return metrics.WriteText(w, s.registry)
}

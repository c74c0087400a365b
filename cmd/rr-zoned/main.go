package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/haukened/rr-zoned/internal/dns/common/clock"
	"github.com/haukened/rr-zoned/internal/dns/common/log"
	"github.com/haukened/rr-zoned/internal/dns/config"
	"github.com/haukened/rr-zoned/internal/dns/gateways/httpapi"
	"github.com/haukened/rr-zoned/internal/dns/gateways/wire"
	"github.com/haukened/rr-zoned/internal/dns/repos/querylog"
	"github.com/haukened/rr-zoned/internal/dns/repos/zonestore"
	"github.com/haukened/rr-zoned/internal/dns/services/admin"
	"github.com/haukened/rr-zoned/internal/dns/services/supervisor"
)

const (
	version = "0.1.0-dev"
	appName = "rr-zoned"

	zoneDBFile     = "zones.db"
	queryLogDBFile = "querylog.db"

	defaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

// Application holds all the components of the DNS server
type Application struct {
	config     *config.AppConfig
	zones      *zonestore.Store
	queries    *querylog.Store
	supervisor *supervisor.Supervisor
	admin      *admin.Service

	// httpServer and adminListener are nil when the admin API is disabled.
	httpServer    *http.Server
	adminListener net.Listener
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.Env, cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	log.Info(map[string]any{
		"app":       appName,
		"version":   version,
		"env":       cfg.Env,
		"log_level": cfg.Log.Level,
		"store_dir": cfg.Store.Dir,
		"admin":     cfg.Admin.Addr,
	}, "Starting rr-zoned")

	app, err := buildApplication(cfg)
	if err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Failed to build application")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		log.Fatal(map[string]any{"error": err.Error()}, "Server failed")
	}
	log.Info(nil, "rr-zoned stopped gracefully")
}

// buildApplication opens the stores and wires every component together.
func buildApplication(cfg *config.AppConfig) (*Application, error) {
	clk := clock.RealClock{}

	if err := os.MkdirAll(cfg.Store.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	zones, err := zonestore.Open(zonestore.Options{
		Path:           filepath.Join(cfg.Store.Dir, zoneDBFile),
		Seed:           cfg.Server.Settings(),
		MatchCacheSize: cfg.Store.MatchCacheSize,
		Clock:          clk,
		Logger:         log.Named("zonestore"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open zone store: %w", err)
	}

	queries, err := querylog.Open(querylog.Options{
		Path:   filepath.Join(cfg.Store.Dir, queryLogDBFile),
		Retain: cfg.QueryLog.Retain,
		Logger: log.Named("querylog"),
	})
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to open query log: %w", err), zones.Close())
	}

	sup := supervisor.New(supervisor.Options{
		Settings:    zones,
		Zones:       zones,
		Recorder:    queries,
		Codec:       wire.NewCodec(log.Named("wire")),
		StopTimeout: cfg.Server.StopTimeout,
		Clock:       clk,
		Logger:      log.Named("dns"),
	})

	svc := admin.NewService(admin.Options{
		Zones:      zones,
		Queries:    queries,
		Supervisor: sup,
		Clock:      clk,
		Logger:     log.Named("admin"),
	})

	app := &Application{
		config:     cfg,
		zones:      zones,
		queries:    queries,
		supervisor: sup,
		admin:      svc,
	}

	if cfg.Admin.Addr != "" {
		ln, err := net.Listen("tcp", cfg.Admin.Addr)
		if err != nil {
			return nil, multierr.Append(fmt.Errorf("failed to bind admin API on %s: %w", cfg.Admin.Addr, err), app.Close())
		}
		app.adminListener = ln
		app.httpServer = &http.Server{
			Handler:           httpapi.NewRouter(svc, log.Named("httpapi")),
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	return app, nil
}

// AdminAddr returns the bound admin API address, or "" when disabled.
func (app *Application) AdminAddr() string {
	if app.adminListener == nil {
		return ""
	}
	return app.adminListener.Addr().String()
}

// Run serves DNS and the admin API until ctx is cancelled, then closes the
// stores.
func (app *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.supervisor.Run(gctx)
	})

	if app.httpServer != nil {
		g.Go(func() error {
			log.Info(map[string]any{"address": app.AdminAddr()}, "Admin API started")
			if err := app.httpServer.Serve(app.adminListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin API failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
			defer cancel()
			return app.httpServer.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	log.Info(nil, "Shutdown initiated")
	return multierr.Append(err, app.Close())
}

// Close releases the admin listener and closes both stores.
func (app *Application) Close() error {
	var err error
	if app.adminListener != nil {
		if cerr := app.adminListener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}
	return multierr.Combine(err, app.queries.Close(), app.zones.Close())
}

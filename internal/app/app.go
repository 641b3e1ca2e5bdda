// Package app wires configuration, logging, scenes, the hub and the HTTP
// surface into a running server.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"waypoint-walk/server/internal/config"
	"waypoint-walk/server/internal/hub"
	servernet "waypoint-walk/server/internal/net"
	"waypoint-walk/server/internal/scene"
	"waypoint-walk/server/internal/telemetry"
	"waypoint-walk/server/logging"
	loggingSinks "waypoint-walk/server/logging/sinks"
)

const shutdownTimeout = 5 * time.Second

// App is a fully wired server that has not started listening yet.
type App struct {
	cfg      config.Config
	logger   telemetry.Logger
	router   *logging.Router
	hub      *hub.Hub
	handler  http.Handler
	counters *telemetry.Counters
}

// New loads the scenes and builds every component. Close releases the
// logging sinks.
func New(ctx context.Context, cfg config.Config, logger telemetry.Logger) (*App, error) {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	fallbackLogger := log.Default()
	if provider, ok := logger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	sinks, err := buildSinks(cfg.Logging)
	if err != nil {
		return nil, err
	}
	router := logging.NewRouter(logging.SystemClock{}, cfg.Logging, sinks, fallbackLogger)

	counters := &telemetry.Counters{}
	var metrics telemetry.Metrics = counters
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		prom := telemetry.NewPrometheus(cfg.Metrics.Namespace)
		metrics = telemetry.Fanout(prom, counters)
		metricsHandler = prom.Handler()
	}

	catalog, err := scene.LoadDir(ctx, cfg.ScenesDir, router)
	if err != nil {
		router.Close(ctx)
		return nil, fmt.Errorf("load scenes: %w", err)
	}
	for _, id := range catalog.IDs() {
		sc, _ := catalog.Get(id)
		logger.Printf("scene %s loaded from %s (%d obstacles, %d interactions, %d issues)",
			sc.ID, sc.Source, len(sc.Geometry.Obstacles), len(sc.Interactions), len(sc.Issues))
	}

	h, err := hub.New(catalog, hub.Config{
		DefaultScene: cfg.DefaultScene,
		ActorHeight:  cfg.ActorHeight,
		Loop:         cfg.Loop,
	}, hub.Deps{
		Logger:    logger,
		Metrics:   metrics,
		Publisher: router,
	})
	if err != nil {
		router.Close(ctx)
		return nil, err
	}

	handler := servernet.NewHTTPHandler(h, servernet.HTTPHandlerConfig{
		Logger:      logger,
		Metrics:     metricsHandler,
		Counters:    counters,
		ClientDir:   cfg.ClientDir,
		EnablePprof: cfg.Debug.Pprof,
	})

	return &App{
		cfg:      cfg,
		logger:   logger,
		router:   router,
		hub:      h,
		handler:  handler,
		counters: counters,
	}, nil
}

func (a *App) Handler() http.Handler {
	return a.handler
}

func (a *App) Hub() *hub.Hub {
	return a.hub
}

// Close flushes and closes the logging sinks.
func (a *App) Close(ctx context.Context) error {
	return a.router.Close(ctx)
}

// Serve runs the simulation and the HTTP server until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	simCtx, stopSim := context.WithCancel(ctx)
	defer stopSim()
	go a.hub.Run(simCtx)

	srv := &http.Server{Addr: a.cfg.Addr, Handler: a.handler}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Run builds the server from cfg and serves until ctx is cancelled.
func Run(ctx context.Context, cfg config.Config, logger telemetry.Logger) error {
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if cerr := a.Close(closeCtx); cerr != nil {
			a.logger.Printf("failed to close logging router: %v", cerr)
		}
	}()
	return a.Serve(ctx)
}

var openLogFile = func(path string) (io.WriteCloser, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	var sinks []logging.NamedSink
	fail := func(err error) ([]logging.NamedSink, error) {
		for _, sink := range sinks {
			sink.Sink.Close(context.Background())
		}
		return nil, err
	}
	for _, name := range cfg.EnabledSinks {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "console":
			sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout)})
		case "json":
			// MultiWriter hides Close; the sink must not close stdout.
			var w io.Writer = io.MultiWriter(os.Stdout)
			if path := cfg.JSON.FilePath; path != "" {
				f, err := openLogFile(path)
				if err != nil {
					return fail(fmt.Errorf("open json log: %w", err))
				}
				w = f
			}
			sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(w, cfg.JSON.FlushInterval)})
		case "memory":
			sinks = append(sinks, logging.NamedSink{Name: "memory", Sink: loggingSinks.NewMemory()})
		case "":
		default:
			return fail(fmt.Errorf("unknown log sink %q", name))
		}
	}
	return sinks, nil
}

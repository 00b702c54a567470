package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	server "terrafort/server"
	servernet "terrafort/server/internal/net"
	"terrafort/server/internal/observability"
	"terrafort/server/internal/telemetry"
	"terrafort/server/internal/timing"
	"terrafort/server/logging"
	loggingSinks "terrafort/server/logging/sinks"
)

// Run serves the simulation until ctx is cancelled or a component fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	sinks, err := buildSinks(cfg.Logging)
	if err != nil {
		return err
	}

	router, err := logging.NewRouter(cfg.Logging, logging.SystemClock{}, fallbackLogger, sinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	tracing, err := observability.SetupTracing(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if cerr := tracing.Shutdown(context.Background()); cerr != nil {
			telemetryLogger.Printf("failed to flush traces: %v", cerr)
		}
	}()

	engineCfg := cfg.Engine
	engineCfg.Logger = telemetryLogger
	engineCfg.Terrain = cfg.World.TerrainSource()
	engineCfg.Publisher = router
	engineCfg.Metrics = telemetry.WrapMetrics(&logging.Metrics{})
	engineCfg.Timer = timing.NewRecorder(nil)
	engineCfg.Tracer = tracing.Tracer("terrafort/server")
	engine := server.NewEngine(engineCfg)

	handler := servernet.NewHTTPHandler(engine, servernet.HTTPHandlerConfig{
		ClientDir:     cfg.ClientDir,
		Logger:        fallbackLogger,
		Observability: cfg.Observability,
	})
	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: otelhttp.NewHandler(handler, "http", otelhttp.WithTracerProvider(tracing.Provider())),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Run(gctx)
	})
	g.Go(func() error {
		telemetryLogger.Printf("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		telemetryLogger.Printf("shutting down")
		engine.DisconnectAll("server shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// buildSinks constructs every sink the router may enable. The json sink
// owns its file and closes it with the router.
func buildSinks(cfg logging.Config) ([]logging.NamedSink, error) {
	sinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsole(os.Stdout)},
		{Name: "memory", Sink: loggingSinks.NewMemory()},
	}
	if cfg.HasSink("json") {
		// Hide Close so stdout survives the sink.
		var out io.Writer = struct{ io.Writer }{os.Stdout}
		if cfg.JSON.FilePath != "" {
			file, err := os.OpenFile(cfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return nil, fmt.Errorf("open json log %s: %w", cfg.JSON.FilePath, err)
			}
			out = file
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: loggingSinks.NewJSON(out, cfg.JSON.FlushInterval)})
	}
	return sinks, nil
}

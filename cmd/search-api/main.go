// Package main 资源检索服务入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"resource-search-api/internal/config"
	einoobs "resource-search-api/internal/observability/eino"
	"resource-search-api/internal/wire"
	"resource-search-api/pkg/logger"
	"resource-search-api/pkg/tracer"
)

// 构建时通过 -ldflags 注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

const timeoutBody = `{"code":503,"message":"request timed out","error":{"error_code":"1008"}}`

func main() {
	configDir := flag.String("config", "configs", "directory containing config.yaml")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadFrom(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if Version != "dev" {
		cfg.App.Version = Version
	}
	logger.Init(cfg.Observability.Logging.Level, cfg.Observability.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Fatal(context.Background(), "search-api stopped with error", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.Info(ctx, "starting search-api",
		"version", cfg.App.Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
		"vector_provider", cfg.Vector.Provider,
		"embedding_provider", cfg.Embedding.Provider,
		"cache_provider", cfg.Search.CacheProvider,
	)

	shutdownTracer, err := tracer.Init(ctx, tracer.Config{
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Env,
		Endpoint:       cfg.Observability.Tracing.Endpoint,
		SampleRate:     cfg.Observability.Tracing.SampleRate,
		Enabled:        cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error(ctx, "tracer shutdown failed", err)
		}
	}()

	einoobs.Init()

	app, cleanup, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer cleanup()

	httpCfg := cfg.Server.HTTP
	var handler http.Handler = app.Engine()
	if httpCfg.RequestTimeout > 0 {
		handler = http.TimeoutHandler(handler, httpCfg.RequestTimeout, timeoutBody)
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", httpCfg.Host, httpCfg.Port),
		Handler:      handler,
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
		IdleTimeout:  httpCfg.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(ctx, "http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := httpCfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logger.Info(ctx, "shutting down http server", "timeout", timeout.String())
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info(ctx, "server exited")
	return nil
}

// Command toolserver exposes the weather, math and dataset tools over MCP SSE.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/server"
	"github.com/tjfontaine/mcp-chat/internal/telemetry"
	"github.com/tjfontaine/mcp-chat/internal/tools"
	"github.com/tjfontaine/mcp-chat/internal/tools/dataset"
	"github.com/tjfontaine/mcp-chat/internal/tools/mathexpr"
	"github.com/tjfontaine/mcp-chat/internal/tools/weather"
	"github.com/tjfontaine/mcp-chat/internal/toolserver"
)

var (
	host       = flag.String("host", "", "Address to bind (default from toolserver.address)")
	port       = flag.Int("port", 0, "Port to listen on (default from toolserver.port)")
	configPath = flag.String("config", config.DefaultPath, "Path to the YAML config file")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *host != "" {
		cfg.ToolServer.Address = *host
	}
	if *port != 0 {
		cfg.ToolServer.Port = *port
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry.ServiceName+"-toolserver", cfg.Telemetry.Enabled, os.Stderr, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	lock, err := toolserver.AcquireLock(cfg.ToolServer.DatasetPath)
	if err != nil {
		log.Fatalf("Failed to lock dataset: %v", err)
	}
	defer lock.Release()

	store, err := dataset.Open(cfg.ToolServer.DatasetPath)
	if err != nil {
		log.Fatalf("Failed to open dataset: %v", err)
	}
	defer store.Close()

	wc := weather.NewClient(
		weather.WithBaseURL(cfg.ToolServer.WeatherBaseURL),
		weather.WithUserAgent(cfg.ToolServer.UserAgent),
	)

	all := []tools.Tool{mathexpr.Tool()}
	all = append(all, weather.Tools(wc)...)
	all = append(all, dataset.Tools(store)...)
	reg, err := tools.NewRegistry(all...)
	if err != nil {
		log.Fatalf("Failed to build tool registry: %v", err)
	}
	invoker := tools.NewInvoker(reg,
		tools.WithCallTimeout(cfg.Tools.CallTimeout),
		tools.WithLogger(logger),
	)
	ts := toolserver.New(invoker, logger)

	// SSE streams stay open for the client's lifetime.
	srv := server.New(cfg.ToolServer.Port, logger,
		server.WithAddress(cfg.ToolServer.Address),
		server.WithRequestTimeout(0),
		server.WithServiceName(cfg.Telemetry.ServiceName+"-toolserver"),
	)
	srv.Router.Handle("/sse", ts.Handler())

	logger.Info("tool server ready",
		slog.String("addr", srv.Addr()),
		slog.String("dataset", store.Path()),
		slog.Any("tools", reg.Names()),
	)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-errc:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("tool server stopped")
}

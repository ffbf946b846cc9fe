// Command chat serves the browser chat UI backed by a local model and the
// remote tool server.
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
	"github.com/tjfontaine/mcp-chat/internal/frontdoor/web"
	"github.com/tjfontaine/mcp-chat/internal/runtime"
	"github.com/tjfontaine/mcp-chat/internal/server"
	"github.com/tjfontaine/mcp-chat/internal/telemetry"
)

var (
	configPath = flag.String("config", config.DefaultPath, "Path to the YAML config file")
	port       = flag.Int("port", 0, "Port to listen on (default from server.port)")
)

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	logger := telemetry.NewLogger(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled, os.Stderr, logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	chat, err := runtime.New(cfg, runtime.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create chat: %v", err)
	}
	if err := chat.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start chat: %v", err)
	}

	handler, err := web.NewHandler(chat.Bridge(), chat.Sessions(), web.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create web handler: %v", err)
	}

	// The request bound must outlast the reply wait so timeouts surface as
	// a JSON notice rather than a dropped connection.
	srv := server.New(cfg.Server.Port, logger,
		server.WithRequestTimeout(cfg.Session.ReplyTimeout+10*time.Second),
		server.WithServiceName(cfg.Telemetry.ServiceName),
	)
	handler.Mount(srv.Router)

	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-errc:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
	}
	if err := chat.Shutdown(ctx); err != nil {
		exitCode = 1
	}
	logger.Info("chat stopped")
	return exitCode
}

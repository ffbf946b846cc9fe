// Command chat-tui is a terminal chat client over the same session bridge as
// the web UI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/tjfontaine/mcp-chat/internal/config"
	"github.com/tjfontaine/mcp-chat/internal/runtime"
	"github.com/tjfontaine/mcp-chat/internal/telemetry"
)

var (
	configPath = flag.String("config", config.DefaultPath, "Path to the YAML config file")
	logPath    = flag.String("log-file", "chat-tui.log", "Where to write logs; the terminal belongs to the UI")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer logFile.Close()

	logger := telemetry.NewLogger(logFile, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	chat, err := runtime.New(cfg, runtime.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create chat: %v", err)
	}
	fmt.Printf("Connecting to tool server at %s...\n", cfg.Tools.Endpoint)
	if err := chat.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start chat: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		chat.Shutdown(ctx)
	}()

	m := newModel(chat.Bridge(), chat.Sessions().Create(), cfg.Model.Name, len(chat.Tools()))
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("terminal UI failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
}

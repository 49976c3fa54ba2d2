// ABOUTME: Entry point for the relay-mcp tool-invocation server
// ABOUTME: Wires config, tools, sessions, dispatcher, and the HTTP transport

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/relay-mcp/internal/calendar"
	"github.com/2389/relay-mcp/internal/config"
	"github.com/2389/relay-mcp/internal/dispatch"
	"github.com/2389/relay-mcp/internal/httpapi"
	"github.com/2389/relay-mcp/internal/session"
	"github.com/2389/relay-mcp/internal/tool"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
           _
 _ __ ___ | | __ _ _   _       _ __ ___   ___ _ __
| '__/ _ \| |/ _' | | | |_____| '_ ' _ \ / __| '_ \
| | |  __/| | (_| | |_| |_____| | | | | | (__| |_) |
|_|  \___||_|\__,_|\__, |     |_| |_| |_|\___| .__/
                   |___/                     |_|
`

// getConfigPath returns the path to the server config file.
// Priority: RELAY_MCP_CONFIG env var > XDG_CONFIG_HOME/relay-mcp/server.yaml > ~/.config/relay-mcp/server.yaml
func getConfigPath() string {
	if envPath := os.Getenv("RELAY_MCP_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "server.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "relay-mcp", "server.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: relay-mcp <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve     Start the MCP server")
		fmt.Println("  version   Print the version")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config file, falling back to defaults when none exists.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Endpoint: %s/mcp\n", cfg.ResolvedBaseURL())
	fmt.Println()

	// Tool registry: explicit registration at startup, no runtime mutation.
	tools := tool.NewRegistry(logger)
	if err := tools.Register(calendar.NewQueryTool(calendar.NewService())); err != nil {
		return fmt.Errorf("registering calendar tool: %w", err)
	}

	dispatcher, err := dispatch.NewDispatcher(dispatch.Config{
		Tools:  tools,
		Info:   dispatch.ServerInfo{Name: "relay-mcp", Version: version},
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	sessions := session.NewRegistry(session.Config{
		IdleTimeout: cfg.Sessions.IdleTimeout,
		Logger:      logger,
	})
	defer sessions.Close()

	api, err := httpapi.NewServer(httpapi.Config{
		Dispatcher: dispatcher,
		Sessions:   sessions,
		Logger:     logger,
		BaseURL:    cfg.ResolvedBaseURL(),
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	logger.Info("starting relay-mcp",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"tools", tools.Len(),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serverErr = <-errCh:
		logger.Error("http server failed", "error", serverErr)
	}

	// Fresh context: the original one is already canceled by the signal.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := srv.Shutdown(shutdownCtx)

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

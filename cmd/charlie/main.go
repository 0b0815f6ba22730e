// ABOUTME: Entry point for charlie, the link-feed bot
// ABOUTME: Wires config, store, bot registry, and the OAuth web server together

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/charlie/internal/bot"
	"github.com/2389/charlie/internal/config"
	"github.com/2389/charlie/internal/store"
	"github.com/2389/charlie/internal/transport"
	"github.com/2389/charlie/internal/web"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
       _                _ _
   ___| |__   __ _ _ __| (_) ___
  / __| '_ \ / _' | '__| | |/ _ \
 | (__| | | | (_| | |  | | |  __/
  \___|_| |_|\__,_|_|  |_|_|\___|
`

// getConfigPath returns the path to the charlie config file.
// Priority: CHARLIE_CONFIG env var > charlie.yaml in the working directory.
func getConfigPath() string {
	if envPath := os.Getenv("CHARLIE_CONFIG"); envPath != "" {
		return envPath
	}
	return "charlie.yaml"
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// A .env file is a convenience for local runs; absence is not an error.
	_ = godotenv.Load()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("Port:     %d\n", cfg.Port)
	green.Print("    ▶ ")
	fmt.Printf("Database: %s\n", cfg.DatabasePath)
	fmt.Println()

	logger.Info("starting charlie", "port", cfg.Port, "database", cfg.DatabasePath)

	st, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	var botOpts []bot.Option
	if cfg.ReplyTimeout > 0 {
		botOpts = append(botOpts, bot.WithReplyTimeout(cfg.ReplyTimeout))
	}

	factory := func(token string) transport.Transport {
		return transport.NewSlack(token, logger)
	}
	bots := bot.NewRegistry(st, factory, logger, botOpts...)

	if err := bots.ResumeAll(ctx); err != nil {
		return fmt.Errorf("resuming teams: %w", err)
	}

	server, err := web.New(web.Config{
		Addr:      fmt.Sprintf(":%d", cfg.Port),
		Store:     st,
		Exchange:  web.SlackExchange(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI),
		OnInstall: installHook(bots),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("creating web server: %w", err)
	}

	err = server.Run(ctx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// installHook spawns the team's bot and greets whoever installed it.
func installHook(bots *bot.Registry) web.InstallFunc {
	return func(ctx context.Context, team *store.Team, installerUserID string) error {
		// The dialogue outlives the OAuth request, so detach from its
		// cancellation while keeping its values.
		ctx = context.WithoutCancel(ctx)
		c, err := bots.Spawn(ctx, team)
		if err != nil {
			return err
		}
		return c.StartInstaller(ctx, installerUserID)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

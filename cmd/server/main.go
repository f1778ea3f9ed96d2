package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alienxp03/dbate/internal/config"
	"github.com/alienxp03/dbate/internal/engine"
	"github.com/alienxp03/dbate/internal/storage"
	"github.com/alienxp03/dbate/web/handlers"
)

func main() {
	port := flag.Int("port", 0, "Server port (default from config, 8182)")
	dbPath := flag.String("db", "", "Database path (default: ~/.dbate/db/debate.db)")
	cfgPath := flag.String("config", "", "Config file path (default: ~/.dbate/config.yaml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Initialize slog
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if *debug {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	var (
		cfg *config.Config
		err error
	)
	if *cfgPath != "" {
		cfg, err = config.LoadFrom(*cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize storage
	path := *dbPath
	if path == "" {
		path = cfg.DBPath()
	}

	slog.Info("Initializing storage", "path", path)
	db, err := storage.Open(context.Background(), path)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	eng := engine.New(db, engine.Limits{
		PageSize:    cfg.Defaults.PageSize,
		MaxPageSize: cfg.Defaults.MaxPageSize,
		ThreadLimit: cfg.Defaults.ThreadLimit,
	})

	h := handlers.New(eng)

	if *port == 0 {
		*port = cfg.Server.Port
	}
	addr := fmt.Sprintf(":%d", *port)
	server := &http.Server{
		Addr:    addr,
		Handler: h.Router(),
	}

	// Handle shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		slog.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			server.Close()
		}
	}()

	slog.Info("Starting dbate server", "url", fmt.Sprintf("http://localhost%s", addr))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}

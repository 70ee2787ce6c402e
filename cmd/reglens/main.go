// File path: cmd/reglens/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/reglens/reglens/internal/api"
	"github.com/reglens/reglens/internal/common"
	"github.com/reglens/reglens/internal/engine"
	"github.com/reglens/reglens/internal/llm"
)

func main() {
	logger := common.Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := godotenv.Load(); err != nil {
		logger.Warn("reglens: .env file not loaded", "error", err)
	} else {
		logger.Info("reglens: environment loaded from .env")
	}

	addr := flag.String("addr", ":8080", "listen address")
	dataDir := flag.String("data-dir", "", "directory for document archives and the catalog database")
	catalogPath := flag.String("catalog", "", "path to the SQLite catalog database")
	flag.Parse()

	cfg, err := engine.LoadConfig()
	if err != nil {
		logger.Error("reglens: config load failed", "error", err)
		fmt.Println("config error:", err)
		os.Exit(1)
	}
	if trimmed := strings.TrimSpace(*dataDir); trimmed != "" {
		cfg.DataDir = trimmed
	}
	if trimmed := strings.TrimSpace(*catalogPath); trimmed != "" {
		cfg.Catalog.Path = trimmed
	}

	logger.Info("reglens: startup initiated", "addr", *addr, "data_dir", cfg.DataDir)

	provider := llm.NewProvider()
	logger.Info("reglens: llm provider ready", "provider", provider.Name())

	eng, err := engine.New(ctx, cfg, provider)
	if err != nil {
		logger.Error("reglens: engine initialization failed", "error", err)
		fmt.Println("engine error:", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(eng),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("reglens: server listening", "addr", *addr, "health", "/healthz")
		fmt.Printf("Serving on %s\n", *addr)
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("reglens: server stopped", "error", err)
			fmt.Println("server stopped:", err)
		}
	case sig := <-sigCh:
		logger.Info("reglens: shutdown signal received", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("reglens: http shutdown incomplete", "error", err)
	}
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Warn("reglens: engine close incomplete", "error", err)
	}
	logger.Info("reglens: shutdown complete")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/tabsplit/tabsplit/internal/config"
	"github.com/tabsplit/tabsplit/internal/metrics"
	"github.com/tabsplit/tabsplit/internal/notifier"
	"github.com/tabsplit/tabsplit/internal/scanner"
	"github.com/tabsplit/tabsplit/internal/server"
	"github.com/tabsplit/tabsplit/internal/service"
	"github.com/tabsplit/tabsplit/internal/storage/sqlite"
	"github.com/tabsplit/tabsplit/pkg/logging"
)

func main() {
	// A missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()
	logging.Setup()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("storage initialized", "database", cfg.DBPath)

	n := notifier.New(cfg.DebounceWindow)
	defer n.Close()

	var sc service.ReceiptScanner
	if cfg.GeminiAPIKey != "" {
		gemini, err := scanner.New(ctx, cfg.GeminiAPIKey)
		if err != nil {
			slog.Error("failed to initialize scanner", "error", err)
			os.Exit(1)
		}
		sc = gemini
		slog.Info("receipt scanning enabled", "model", scanner.ModelName)
	} else {
		slog.Warn("GEMINI_API_KEY not set, receipt scanning disabled")
	}

	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		slog.Error("invalid tax rate", "value", cfg.TaxRate, "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	srv := server.New(
		service.NewGroupService(store, n),
		service.NewReceiptService(store, n, sc, taxRate),
		n,
		m,
		cfg.AllowedOrigin,
	)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: h2c.NewHandler(srv.Handler(), &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "address", httpServer.Addr, "tax_rate", cfg.TaxRate, "debounce_window", cfg.DebounceWindow)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

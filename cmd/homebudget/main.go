package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"homebudget/internal/api"
	"homebudget/internal/config"
	apphttp "homebudget/internal/http"
	"homebudget/internal/log"
	"homebudget/internal/session"
	"homebudget/internal/storage"
)

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	store, err := storage.NewSessionStore(cfg.SQLiteDBPath, logger)
	if err != nil {
		logger.Error("Failed to open session store", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer store.Close()

	backend := api.NewClient(cfg.APIBaseURL, logger)
	sessions := session.NewManager(store, backend, cfg.SessionTTL, logger)
	sessions.Subscribe(func(ev session.Event) {
		logger.Debug("Session state changed",
			log.FieldSessionID, ev.SID,
			"state", ev.State.String())
	})

	srv, err := apphttp.NewServer(":"+cfg.Port, backend, sessions, apphttp.Options{
		CookieName:         cfg.CookieName,
		CookieSecure:       cfg.CookieSecure,
		LoginRatePerMinute: cfg.LoginRatePerMinute,
	}, logger)
	if err != nil {
		logger.Error("Failed to build server", log.FieldError, err)
		os.Exit(1)
	}
	defer srv.Close()

	// Configure server timeouts and limits
	srv.HTTP.ReadTimeout = 10 * time.Second
	srv.HTTP.WriteTimeout = 30 * time.Second
	srv.HTTP.IdleTimeout = 60 * time.Second
	srv.HTTP.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Expired session rows are pruned in the background; an expired
	// row that slips through is still rejected at resolve time.
	go func() {
		ticker := time.NewTicker(cfg.PruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := store.DeleteExpired(ctx); err != nil {
					logger.Warn("Session prune failed", log.FieldError, err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	// Graceful shutdown handling
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.HTTP.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting homebudget client",
		"port", cfg.Port,
		"backend", cfg.APIBaseURL)
	if err := srv.HTTP.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}

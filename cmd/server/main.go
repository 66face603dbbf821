package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/david/opportunity-finder/internal/api"
	"github.com/david/opportunity-finder/internal/auth"
	"github.com/david/opportunity-finder/internal/catalog"
	"github.com/david/opportunity-finder/internal/config"
	"github.com/david/opportunity-finder/internal/db"
	"github.com/david/opportunity-finder/internal/ingest"
	"github.com/david/opportunity-finder/internal/logger"
)

const sweepInterval = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	appLog, err := logger.New(logger.Config{Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}

	err = run(cfg, appLog)
	if err != nil {
		appLog.Error("Server stopped", logger.Error(err))
	}
	appLog.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLog logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := db.OpenStore(ctx, cfg, appLog)
	if err != nil {
		return err
	}
	defer closeStore()

	opps, err := store.Load(ctx)
	if err != nil {
		return err
	}
	cat := catalog.New(opps)
	appLog.Info("Catalog loaded", logger.String("store", cfg.Store), logger.Int("opportunities", len(opps)))

	jwtSecret, err := auth.ResolveSecret(cfg.JWTSecret, "JWT_SECRET", appLog)
	if err != nil {
		return err
	}
	sessions := auth.NewSessionManager(jwtSecret, cfg.SessionTTL)

	adminSecret, err := auth.ResolveSecret(cfg.AdminSecret, "ADMIN_SECRET", appLog)
	if err != nil {
		return err
	}
	admin, err := auth.NewAdminVerifier(adminSecret, cfg.AdminSecretHash)
	if err != nil {
		return err
	}

	registry, err := ingest.LoadRegistry(cfg.RegistryPath)
	if err != nil {
		return err
	}
	overrides, err := ingest.LoadOverrides(cfg.OverridesPath)
	if err != nil {
		return err
	}
	pipeline := ingest.NewPipeline(store, registry, overrides, appLog.With(logger.String("component", "ingest")))
	pipeline.Now = cfg.Now

	srv := api.NewServer(api.Options{
		Catalog:     cat,
		Sessions:    sessions,
		Admin:       admin,
		Pipeline:    pipeline,
		Log:         appLog.With(logger.String("component", "api")),
		CORSOrigins: cfg.CORSOrigins,
		PageSize:    cfg.PageSize,
		Now:         cfg.Now,
	})

	go sweepSessions(ctx, sessions, appLog)

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("Server starting", logger.String("port", cfg.Port))
		errCh <- srv.Start(cfg.Port)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	appLog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweepSessions(ctx context.Context, sessions *auth.SessionManager, appLog logger.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				appLog.Debug("Expired sessions removed", logger.Int("count", n))
			}
		}
	}
}

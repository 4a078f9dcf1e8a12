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

	"github.com/erazemk/omara/internal/api"
	"github.com/erazemk/omara/internal/auth"
	"github.com/erazemk/omara/internal/ratelimit"
	"github.com/erazemk/omara/internal/store"
)

// How often expired revocations are purged.
const purgeInterval = time.Hour

func cmdServe(args []string) error {
	loadEnv()

	fs := flag.NewFlagSet("omara serve", flag.ContinueOnError)

	var c config
	c.register(fs)

	var addr string
	fs.StringVar(&addr, "addr", getEnv("OMARA_ADDR", ":8080"), "")
	fs.StringVar(&addr, "a", getEnv("OMARA_ADDR", ":8080"), "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: omara serve [flags]

Flags:
  -a, -addr <host:port>      listen address (default: :8080, env OMARA_ADDR)
`+sharedFlags)
	}

	if err := parse(fs, args); err != nil {
		return err
	}

	closeLog, err := setupLogger(c.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return errUsage
	}
	defer closeLog()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	database, err := openDatabase(c.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	// Load JWT secret from database (auto-generated on first run).
	jwtSecret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return fmt.Errorf("getting JWT secret: %w", err)
	}

	storage, blob, err := openStorage(ctx, &c, database)
	if err != nil {
		return err
	}

	emailLimiter := ratelimit.New(ratelimit.DefaultMax, ratelimit.DefaultWindow)
	emailLimiter.Start(ctx, ratelimit.CleanupInterval)
	ipLimiter := ratelimit.New(ratelimit.DefaultMax*3, ratelimit.DefaultWindow)
	ipLimiter.Start(ctx, ratelimit.CleanupInterval)

	authSvc := &auth.Service{
		DB:      database,
		Secret:  jwtSecret,
		Limiter: emailLimiter,
		Logger:  slog.Default(),
	}

	go purgeRevokedTokens(ctx, authSvc)

	server := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.Config{
			DB:        database,
			Auth:      authSvc,
			Wardrobe:  newWardrobe(&c, database, storage),
			Blob:      blob,
			IPLimiter: ipLimiter,
			Logger:    slog.Default(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("serving: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// purgeRevokedTokens drops revocations whose tokens have expired anyway.
func purgeRevokedTokens(ctx context.Context, svc *auth.Service) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeRevokedTokens(ctx, svc.DB, now)
			if err != nil {
				slog.Error("failed to purge revoked tokens", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged revoked tokens", "count", n)
			}
		}
	}
}

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
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"chirp/config"
	"chirp/database"
	"chirp/feed"
	"chirp/handlers"
	"chirp/middleware"
	"chirp/routes"
	"chirp/store"
)

var rootCmd = &cobra.Command{
	Use:           "chirp",
	Short:         "Microblogging backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations to the configured SQL store",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		if err := database.Migrate(ctx, cfg.Store); err != nil {
			return err
		}
		slog.Info("schema is up to date", "store", cfg.Store.Type)
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair follower lists that disagree with following lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		s, err := database.NewStoreFromConfig(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close(context.Background())

		fixed, err := s.ReconcileFollows(ctx)
		if err != nil {
			return err
		}
		slog.Info("follow lists reconciled", "fixed", fixed)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, reconcileCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.GinMode)
	return cfg, nil
}

// setupLogging installs JSON logs in release mode and text logs otherwise.
func setupLogging(mode string) {
	var h slog.Handler
	if mode == gin.ReleaseMode {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}

func serve(cfg *config.Config) error {
	slog.Info("starting chirp", "store", cfg.Store.Type, "mode", cfg.GinMode)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	s, err := database.NewStoreFromConfig(connectCtx, cfg.Store)
	cancel()
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Close(closeCtx); err != nil {
			slog.Error("closing store", "error", err)
		}
	}()

	clock := store.RealClock{}
	svc := feed.NewService(s, s, feed.Options{
		PageSize:    cfg.Feed.PageSize,
		MaxPageSize: cfg.Feed.MaxPageSize,
		Clock:       clock,
	})
	handlers.Configure(s, svc, handlers.Settings{
		JWTSecret:      cfg.JWTSecret,
		JWTTTL:         cfg.JWTTTL,
		RequestTimeout: cfg.RequestTimeout,
		Clock:          clock,
	})

	var limiter *middleware.IPRateLimiter
	if cfg.RateLimit.Requests > 0 {
		limiter = middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go pruneLimiter(ctx, limiter, cfg.RateLimit.Window)
	}

	router := routes.SetupRouter(routes.Options{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		RateLimiter: limiter,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}

// pruneLimiter drops idle limiter entries once per window until ctx ends.
func pruneLimiter(ctx context.Context, rl *middleware.IPRateLimiter, window time.Duration) {
	if window <= 0 {
		window = time.Minute
	}
	ticker := time.NewTicker(window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Prune()
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

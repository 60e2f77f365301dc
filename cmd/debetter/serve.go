package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Aksuiekbro/debetter-sub002/config"
	"github.com/Aksuiekbro/debetter-sub002/db"
	"github.com/Aksuiekbro/debetter-sub002/handlers"
	"github.com/Aksuiekbro/debetter-sub002/hub"
	"github.com/Aksuiekbro/debetter-sub002/middleware"
	"github.com/Aksuiekbro/debetter-sub002/routes"
	"github.com/Aksuiekbro/debetter-sub002/services"
	"github.com/Aksuiekbro/debetter-sub002/storage"
	"github.com/Aksuiekbro/debetter-sub002/telemetry"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Migrate the database and start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireJWTSecret(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("driver", cfg.Database.Driver))

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Error("failed to flush traces", slog.Any("error", err))
		}
	}()

	dbConn, err := db.Connect(cfg.Database.Driver, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if err := db.Migrate(ctx, dbConn); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	logger.Info("database ready")

	var uploader storage.FileUploader
	if cfg.R2.Enabled() {
		uploader, err = storage.NewR2Uploader(ctx, storage.R2UploaderConfig{
			AccountID:       cfg.R2.AccountID,
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			BucketName:      cfg.R2.BucketName,
			PublicBaseURL:   cfg.R2.PublicBaseURL,
			Endpoint:        cfg.R2.Endpoint,
		})
		if err != nil {
			return fmt.Errorf("initialize media storage: %w", err)
		}
		logger.Info("media storage initialized", slog.String("bucket", cfg.R2.BucketName))
	} else {
		logger.Warn("media storage not configured, ballot and audio uploads are disabled")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	wsHub := hub.NewHub(logger)
	go wsHub.Run(hubCtx)

	svc := services.New(dbConn, uploader, wsHub, services.Settings{
		DefaultQuorum:         cfg.Engine.DefaultQuorum,
		DefaultJudgesPerMatch: cfg.Engine.DefaultJudgesPerMatch,
		PointsPerWin:          cfg.Engine.PointsPerWin,
	}, logger)

	router := chi.NewRouter()
	routes.SetupRoutes(router, routes.Dependencies{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.CORSAllowedOrigins,
		RateLimiter:    middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		Health:         handlers.NewHealthHandler(dbConn),
		Tournaments:    handlers.NewTournamentHandler(svc.Tournaments),
		Entrants:       handlers.NewEntrantHandler(svc.Entrants),
		Participant:    handlers.NewParticipantHandler(svc.Participants),
		Teams:          handlers.NewTeamHandler(svc.Teams),
		Postings:       handlers.NewPostingHandler(svc.Postings),
		Evaluations:    handlers.NewEvaluationHandler(svc.Evaluations),
		Standings:      handlers.NewStandingsHandler(svc.Standings),
		WebSocket:      handlers.NewWebSocketHandler(wsHub, svc.Tournaments, cfg.Server.CORSAllowedOrigins, logger),
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	stopHub()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))
	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", slog.Any("error", closeErr))
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}

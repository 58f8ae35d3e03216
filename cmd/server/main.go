package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnavshah/secret-santa-api/internal/config"
	"github.com/arnavshah/secret-santa-api/pkg/auth"
	"github.com/arnavshah/secret-santa-api/pkg/database"
	"github.com/arnavshah/secret-santa-api/pkg/handlers"
	"github.com/arnavshah/secret-santa-api/pkg/links"
	"github.com/arnavshah/secret-santa-api/pkg/sealer"
	"github.com/arnavshah/secret-santa-api/pkg/tracking"
	"github.com/gin-gonic/gin"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.GinMode == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(cfg.GinMode)
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		slog.Error("could not open database", "error", err)
		os.Exit(1)
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		slog.Error("could not create admin user", "error", err)
	}

	s, err := sealer.New(cfg.LinkSecret)
	if err != nil {
		slog.Error("could not initialise link cipher", "error", err)
		os.Exit(1)
	}

	h := &handlers.Handler{
		DB:             db,
		Auth:           auth.New(cfg.JWTSecret, cfg.APIMasterSecret),
		Codec:          links.NewCodec(cfg.PublicBaseURL, s),
		Tracking:       tracking.NewStore(db),
		PublicBaseURL:  cfg.PublicBaseURL,
		MaxSearchSteps: cfg.MaxSearchSteps,
		TrackingTTL:    cfg.TrackingTokenTTL,
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.WithCORS(handlers.NewRouter(h), cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", cfg.Port, "base_url", cfg.PublicBaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("could not run server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	slog.Info("Server stopped")
}

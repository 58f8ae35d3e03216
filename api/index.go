package handler

import (
	"log/slog"
	"net/http"

	"github.com/arnavshah/secret-santa-api/internal/config"
	"github.com/arnavshah/secret-santa-api/pkg/auth"
	"github.com/arnavshah/secret-santa-api/pkg/database"
	"github.com/arnavshah/secret-santa-api/pkg/handlers"
	"github.com/arnavshah/secret-santa-api/pkg/links"
	"github.com/arnavshah/secret-santa-api/pkg/sealer"
	"github.com/arnavshah/secret-santa-api/pkg/tracking"
	"github.com/gin-gonic/gin"
)

var (
	app     http.Handler
	initErr error
)

func init() {
	gin.SetMode(gin.ReleaseMode)
	app, initErr = build()
	if initErr != nil {
		slog.Error("startup failed", "error", initErr)
	}
}

func build() (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DatabaseURL, cfg.DataPath)
	if err != nil {
		return nil, err
	}
	if err := auth.EnsureAdminExists(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		slog.Error("could not create admin user", "error", err)
	}

	s, err := sealer.New(cfg.LinkSecret)
	if err != nil {
		return nil, err
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
	return handlers.WithCORS(handlers.NewRouter(h), cfg.CORSOrigins), nil
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, r *http.Request) {
	if initErr != nil {
		http.Error(w, `{"error":"service misconfigured"}`, http.StatusInternalServerError)
		return
	}
	app.ServeHTTP(w, r)
}

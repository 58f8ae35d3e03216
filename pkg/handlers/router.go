package handlers

import (
	"net/http"

	"github.com/arnavshah/secret-santa-api/pkg/links"
	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

// Version is reported by the root endpoint
const Version = "1.0.0"

// NewRouter registers every route on a new gin engine
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Secret Santa API",
			"version": Version,
		})
	})

	r.POST("/admin/login", h.Login)

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.POST("/keys", h.GenerateKey)
		admin.GET("/keys", h.ListKeys)
		admin.PUT("/keys/:id", h.UpdateKeyLimit)
		admin.DELETE("/keys/:id", h.RevokeKey)
		admin.GET("/usage/:id", h.GetUsage)
	}

	// Exchange Endpoints
	api := r.Group("/api")
	api.Use(h.APIKeyMiddleware())
	{
		api.POST("/roster/parse", h.ParseRoster)
		api.POST("/roster/format", h.FormatRoster)
		api.POST("/validate", h.ValidateInput)
		api.POST("/fingerprint", h.Fingerprint)
		api.POST("/generate", h.Generate)
		api.POST("/export/csv", h.ExportCSV)
		api.GET("/usage", h.GetMyUsage)
	}

	// Public reveal page and per-session dashboard
	r.GET(links.PairingPath, h.Reveal)
	r.GET(TrackPath+":sid", h.TrackingMiddleware(), h.SessionLinks)

	return r
}

// WithCORS wraps the router for browser clients on the given origins
func WithCORS(next http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition", "X-Assignment-Stale"},
	}).Handler(next)
}

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/arnavshah/secret-santa-api/pkg/auth"
	"github.com/arnavshah/secret-santa-api/pkg/database"
	"github.com/arnavshah/secret-santa-api/pkg/links"
	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/roster"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
	"github.com/arnavshah/secret-santa-api/pkg/tracking"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultRateLimit = 10000

// Handler contains dependencies for the route handlers
type Handler struct {
	DB             *gorm.DB
	Auth           *auth.Authenticator
	Codec          *links.Codec
	Tracking       *tracking.Store
	PublicBaseURL  string
	MaxSearchSteps int
	TrackingTTL    time.Duration
}

func bearer(header string) string {
	if len(header) > 7 && header[:7] == "Bearer " {
		return header[7:]
	}
	return header
}

// AuthMiddleware verifies the JWT token for admin routes
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		claims, err := h.Auth.VerifyToken(bearer(token))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

// APIKeyMiddleware verifies the HMAC API key and enforces the key's daily limit
func (h *Handler) APIKeyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Authorization")
		if key == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API Key required"})
			return
		}
		key = bearer(key)

		userID, err := h.Auth.VerifyHMACKey(key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API Key signature"})
			return
		}

		// Fetch or create API key record to track usage
		var apiKey database.APIKey
		err = h.DB.Where(database.APIKey{Key: key}).FirstOrCreate(&apiKey, database.APIKey{
			Key:        key,
			KeyPreview: keyPreview(key),
			Name:       userID,
			RateLimit:  defaultRateLimit,
		}).Error
		if err != nil {
			slog.Error("api key lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not load API key"})
			return
		}

		var today database.APIUsage
		err = h.DB.Where("key_id = ? AND date = ?", apiKey.ID, time.Now().Format("2006-01-02")).Limit(1).Find(&today).Error
		if err == nil && apiKey.RateLimit > 0 && today.RequestCount >= apiKey.RateLimit {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Daily rate limit reached"})
			return
		}

		now := time.Now()
		h.DB.Model(&apiKey).Update("last_used", &now)

		c.Set("apiKey", &apiKey)
		c.Set("userID", userID)
		c.Next()

		// Every request counts toward the daily limit, failed ones included
		h.RecordUsage(c, c.GetInt(usageParticipantsKey), c.GetInt(usagePairingsKey))
	}
}

const (
	usageParticipantsKey = "usageParticipants"
	usagePairingsKey     = "usagePairings"
)

// countUsage attaches the size of a generated assignment to the request's usage record
func countUsage(c *gin.Context, participantCount, pairingCount int) {
	c.Set(usageParticipantsKey, participantCount)
	c.Set(usagePairingsKey, pairingCount)
}

// RecordUsage records one API request in the database using an efficient upsert
func (h *Handler) RecordUsage(c *gin.Context, participantCount, pairingCount int) {
	apiKeyRaw, exists := c.Get("apiKey")
	if !exists {
		return
	}
	apiKey := apiKeyRaw.(*database.APIKey)

	today := time.Now().Format("2006-01-02")

	// Use OnConflict for a single-query upsert (supported by both Postgres and SQLite)
	err := h.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "key_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"request_count":      gorm.Expr("request_count + ?", 1),
			"total_participants": gorm.Expr("total_participants + ?", participantCount),
			"total_pairings":     gorm.Expr("total_pairings + ?", pairingCount),
		}),
	}).Create(&database.APIUsage{
		KeyID:             apiKey.ID,
		Date:              today,
		RequestCount:      1,
		TotalParticipants: participantCount,
		TotalPairings:     pairingCount,
	}).Error
	if err != nil {
		slog.Error("failed to record usage", "key_id", apiKey.ID, "error", err)
	}
}

// errorStatus maps domain errors to HTTP status codes
func errorStatus(err error) int {
	var parseErr *roster.ParseError
	switch {
	case errors.As(err, &parseErr),
		errors.Is(err, rules.ErrValidation),
		errors.Is(err, roster.ErrEmptyName),
		errors.Is(err, roster.ErrInvalidName),
		errors.Is(err, roster.ErrDuplicateID),
		errors.Is(err, links.ErrUnknownParticipant):
		return http.StatusUnprocessableEntity
	case errors.Is(err, rules.ErrInfeasible):
		return http.StatusConflict
	case errors.Is(err, links.ErrEncrypt):
		return http.StatusBadGateway
	case errors.Is(err, links.ErrMalformedLink), errors.Is(err, links.ErrDecrypt):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorBody renders a domain error as a correctable message
func errorBody(err error) gin.H {
	body := gin.H{"error": err.Error()}

	var parseErr *roster.ParseError
	var ruleErr *rules.RuleError
	var infErr *rules.InfeasibleError
	switch {
	case errors.As(err, &parseErr):
		body["reason"] = parseErr.Key
		body["line"] = parseErr.Line
		if len(parseErr.Values) > 0 {
			body["values"] = parseErr.Values
		}
	case errors.As(err, &ruleErr):
		body["reason"] = ruleErr.Reason
		body["participant_id"] = ruleErr.OwnerID
		if ruleErr.Rule.TargetID != "" {
			body["rule"] = ruleErr.Rule
		}
	case errors.As(err, &infErr):
		body["reason"] = infErr.Reason
		body["infeasible"] = true
		if infErr.ParticipantID != "" {
			body["participant_id"] = infErr.ParticipantID
		}
	case errors.Is(err, roster.ErrEmptyName):
		body["reason"] = roster.KeyEmptyName
	case errors.Is(err, roster.ErrInvalidName):
		body["reason"] = roster.KeyInvalidName
	}
	return body
}

func respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, errorBody(err))
}

// prepareRoster checks names and assigns ids to participants that have none
func prepareRoster(participants []models.Participant) ([]models.Participant, error) {
	r, err := roster.FromParticipants(participants)
	if err != nil {
		return nil, err
	}
	return r.Participants(), nil
}

// Login handles admin login
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user database.MasterUser
	if err := h.DB.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.Auth.CreateToken(user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func keyPreview(key string) string {
	if len(key) > 8 {
		return key[:3] + "..." + key[len(key)-4:]
	}
	return "****"
}

// GenerateKey creates a new API key using the HMAC strategy
func (h *Handler) GenerateKey(c *gin.Context) {
	var req struct {
		Name      string `json:"name"`
		RateLimit int    `json:"rate_limit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	if req.RateLimit == 0 {
		req.RateLimit = defaultRateLimit
	}

	key := h.Auth.GenerateHMACKey(req.Name)
	apiKey := database.APIKey{
		Key:        key,
		Name:       req.Name,
		KeyPreview: keyPreview(key),
		RateLimit:  req.RateLimit,
	}

	if err := h.DB.Create(&apiKey).Error; err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Could not create key record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":   apiKey.ID,
		"name": req.Name,
		"key":  key,
	})
}

// ListKeys returns all API keys
func (h *Handler) ListKeys(c *gin.Context) {
	keys := []database.APIKey{}
	if err := h.DB.Order("id").Find(&keys).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// RevokeKey deletes an API key
func (h *Handler) RevokeKey(c *gin.Context) {
	id := c.Param("id")
	if err := h.DB.Delete(&database.APIKey{}, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not delete key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Key revoked"})
}

// UpdateKeyLimit updates the daily request limit of a key
func (h *Handler) UpdateKeyLimit(c *gin.Context) {
	id := c.Param("id")
	var req struct {
		RateLimit int `json:"rate_limit" form:"rate_limit"`
	}

	// Try JSON first, then Form/Query
	if err := c.ShouldBindJSON(&req); err != nil {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rate_limit is required"})
			return
		}
	}

	if req.RateLimit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rate limit"})
		return
	}

	if err := h.DB.Model(&database.APIKey{}).Where("id = ?", id).Update("rate_limit", req.RateLimit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update key limit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rate limit updated successfully"})
}

// GetUsage returns the last 30 days of usage for a key
func (h *Handler) GetUsage(c *gin.Context) {
	id := c.Param("id")
	usage := []database.APIUsage{}
	h.DB.Where("key_id = ?", id).Order("date desc").Limit(30).Find(&usage)
	c.JSON(http.StatusOK, gin.H{"usage": usage})
}

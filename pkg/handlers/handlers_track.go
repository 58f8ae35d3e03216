package handlers

import (
	"log/slog"
	"net/http"

	"github.com/arnavshah/secret-santa-api/pkg/tracking"
	"github.com/gin-gonic/gin"
)

// Reveal decodes an assignment link. Tracked links also count a visit, but a
// failure to record it never blocks the reveal.
func (h *Handler) Reveal(c *gin.Context) {
	reveal, err := h.Codec.DecodeQuery(c.Request.Context(), c.Request.URL.Query())
	if err != nil {
		c.JSON(errorStatus(err), gin.H{"error": "Invalid or corrupted link"})
		return
	}

	if reveal.SessionID != "" && reveal.LinkID != "" && reveal.Token != "" {
		if _, err := h.Auth.VerifyTrackingToken(reveal.Token, reveal.SessionID); err != nil {
			slog.Warn("visit not recorded", "session_id", reveal.SessionID, "link_id", reveal.LinkID, "error", err)
		} else {
			err := h.Tracking.RecordVisit(c.Request.Context(), tracking.LinkSeed{
				SessionID:    reveal.SessionID,
				LinkID:       reveal.LinkID,
				GiverName:    reveal.From,
				ReceiverName: reveal.Name,
			})
			if err != nil {
				slog.Error("failed to record visit", "session_id", reveal.SessionID, "link_id", reveal.LinkID, "error", err)
			}
		}
	}

	c.JSON(http.StatusOK, reveal)
}

// TrackingMiddleware checks the session tracking token, taken from the
// Authorization header or the token query parameter
func (h *Handler) TrackingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearer(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Tracking token required"})
			return
		}

		sessionID := c.Param("sid")
		if _, err := h.Auth.VerifyTrackingToken(token, sessionID); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid tracking token"})
			return
		}

		c.Set("sessionID", sessionID)
		c.Next()
	}
}

// SessionLinks lists the visit counters of every link in a session
func (h *Handler) SessionLinks(c *gin.Context) {
	sessionID := c.GetString("sessionID")
	visits, err := h.Tracking.FetchSessionLinks(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	opened := 0
	for _, v := range visits {
		if v.VisitCount > 0 {
			opened++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"links":      visits,
		"opened":     opened,
		"total":      len(visits),
	})
}

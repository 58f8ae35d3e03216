package handlers

import (
	"net/http"

	"github.com/arnavshah/secret-santa-api/pkg/fingerprint"
	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/roster"
	"github.com/arnavshah/secret-santa-api/pkg/rules"
	"github.com/gin-gonic/gin"
)

// ValidateInput checks a roster without generating an assignment
func (h *Handler) ValidateInput(c *gin.Context) {
	var input models.RosterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"valid": false,
			"error": err.Error(),
		})
		return
	}

	if len(input.Participants) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": "At least one participant is required",
		})
		return
	}

	participants, err := prepareRoster(input.Participants)
	if err == nil {
		err = rules.ValidateRoster(participants)
	}
	if err == nil {
		err = rules.CheckFeasibility(participants)
	}
	if err != nil {
		body := errorBody(err)
		body["valid"] = false
		c.JSON(http.StatusOK, body)
		return
	}

	ruleCount := 0
	for _, p := range participants {
		ruleCount += len(p.Rules)
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":       true,
		"fingerprint": fingerprint.Compute(participants),
		"stats": gin.H{
			"participant_count": len(participants),
			"rule_count":        ruleCount,
		},
	})
}

// Fingerprint hashes a roster and reports whether a stored fingerprint is out of date
func (h *Handler) Fingerprint(c *gin.Context) {
	var input models.FingerprintInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"fingerprint": fingerprint.Compute(input.Participants)}
	if input.Fingerprint != "" {
		resp["stale"] = fingerprint.Stale(input.Fingerprint, input.Participants)
	}
	c.JSON(http.StatusOK, resp)
}

// ParseRoster reads the text roster format. Names already present in the
// supplied participants keep their ids.
func (h *Handler) ParseRoster(c *gin.Context) {
	var req struct {
		Text         string               `json:"text"`
		Participants []models.Participant `json:"participants"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing *roster.Roster
	if len(req.Participants) > 0 {
		r, err := roster.FromParticipants(req.Participants)
		if err != nil {
			respondError(c, err)
			return
		}
		existing = r
	}

	parsed, err := roster.Parse(req.Text, existing)
	if err != nil {
		respondError(c, err)
		return
	}

	participants := parsed.Participants()
	c.JSON(http.StatusOK, gin.H{
		"participants": participants,
		"fingerprint":  fingerprint.Compute(participants),
	})
}

// FormatRoster writes participants back to the text roster format
func (h *Handler) FormatRoster(c *gin.Context) {
	var input models.RosterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r, err := roster.FromParticipants(input.Participants)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"text": roster.Format(r)})
}

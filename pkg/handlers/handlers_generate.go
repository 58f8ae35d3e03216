package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/arnavshah/secret-santa-api/pkg/fingerprint"
	"github.com/arnavshah/secret-santa-api/pkg/links"
	"github.com/arnavshah/secret-santa-api/pkg/matcher"
	"github.com/arnavshah/secret-santa-api/pkg/models"
	"github.com/arnavshah/secret-santa-api/pkg/tracking"
	"github.com/gin-gonic/gin"
)

// TrackPath is the prefix of the tracking dashboard routes
const TrackPath = "/track/sessions/"

func (h *Handler) dashboardURL(sessionID, token string) string {
	return h.PublicBaseURL + TrackPath + url.PathEscape(sessionID) + "?token=" + url.QueryEscape(token)
}

// linkErrors extracts per-index messages from an EncodeAll error
func linkErrors(err error) map[int]string {
	out := map[int]string{}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return out
	}
	for _, e := range joined.Unwrap() {
		var encErr *links.EncodeError
		if errors.As(e, &encErr) {
			out[encErr.Index] = encErr.Err.Error()
		}
	}
	return out
}

// Generate draws an assignment and returns one link per giver
func (h *Handler) Generate(c *gin.Context) {
	var input models.GenerateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participants, err := prepareRoster(input.Participants)
	if err != nil {
		respondError(c, err)
		return
	}

	assignment, err := matcher.Generate(participants, matcher.WithMaxSteps(h.MaxSearchSteps))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := models.GenerateResponse{Assignment: *assignment}
	settings := links.Settings{Instructions: input.Instructions, Tracking: input.Tracking}
	if input.Tracking {
		token, err := h.Auth.CreateTrackingToken(assignment.SessionID, h.TrackingTTL)
		if err != nil {
			respondError(c, err)
			return
		}
		settings.Token = token
		resp.TrackingToken = token
		resp.DashboardURL = h.dashboardURL(assignment.SessionID, token)
	}

	batch, err := links.ForAssignment(participants, assignment, settings)
	if err != nil {
		respondError(c, err)
		return
	}

	if input.Tracking {
		seeds := make([]tracking.LinkSeed, 0, len(batch))
		for _, opts := range batch {
			seeds = append(seeds, tracking.LinkSeed{
				SessionID:    opts.SessionID,
				LinkID:       opts.LinkID,
				GiverName:    opts.Giver,
				ReceiverName: opts.Receiver,
			})
		}
		if err := h.Tracking.RegisterSessionLinks(c.Request.Context(), seeds); err != nil {
			respondError(c, err)
			return
		}
	}

	linkIDs := make(map[string]string, len(assignment.Pairings))
	for _, p := range assignment.Pairings {
		linkIDs[p.GiverID] = p.LinkID
	}

	encoded, encErr := h.Codec.EncodeAll(c.Request.Context(), batch)
	failed := linkErrors(encErr)
	resp.Links = make([]models.AssignmentLink, len(batch))
	for i, opts := range batch {
		resp.Links[i] = models.AssignmentLink{
			GiverID:   opts.GiverID,
			GiverName: opts.Giver,
			Email:     opts.GiverEmail,
			LinkID:    linkIDs[opts.GiverID],
			URL:       encoded[i],
			Error:     failed[i],
		}
	}

	countUsage(c, len(participants), len(assignment.Pairings))

	if encErr != nil {
		slog.Warn("link encoding failed", "session_id", assignment.SessionID, "failed", len(failed), "error", encErr)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":      "Some links could not be encoded",
			"assignment": resp.Assignment,
			"links":      resp.Links,
		})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ExportCSV re-encodes the links of an earlier assignment against the current
// roster and returns them as CSV
func (h *Handler) ExportCSV(c *gin.Context) {
	var input models.ExportInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Token != "" {
		if _, err := h.Auth.VerifyTrackingToken(input.Token, input.Assignment.SessionID); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid tracking token"})
			return
		}
	}

	stale := fingerprint.Stale(input.Assignment.Fingerprint, input.Participants)
	batch, err := links.ForAssignment(input.Participants, &input.Assignment, links.Settings{
		Instructions: input.Instructions,
		Tracking:     input.Token != "",
		Token:        input.Token,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	encoded, encErr := h.Codec.EncodeAll(c.Request.Context(), batch)
	if encErr != nil {
		failed := linkErrors(encErr)
		errs := make([]gin.H, 0, len(failed))
		for i, msg := range failed {
			errs = append(errs, gin.H{"giver_name": batch[i].Giver, "error": msg})
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Some links could not be encoded", "links": errs})
		return
	}

	csvText, err := links.ExportCSV(links.Rows(batch, encoded))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("download") != "" {
		if stale {
			c.Header("X-Assignment-Stale", "true")
		}
		c.Header("Content-Disposition", `attachment; filename="secret-santa-links.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(csvText))
		return
	}
	c.JSON(http.StatusOK, gin.H{"csv": csvText, "stale": stale})
}

package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/classlens/classlens/internal/api/middleware"
	"github.com/classlens/classlens/internal/scoring"
)

// RosterHandler serves the aggregated roster and per-teacher dashboard.
type RosterHandler struct {
	scores *scoring.Service
}

// NewRosterHandler creates a new roster handler.
func NewRosterHandler(scores *scoring.Service) *RosterHandler {
	return &RosterHandler{scores: scores}
}

// parseWindow reads the optional from/to query parameters. Dates are
// accepted as YYYY-MM-DD or RFC 3339; "to" given as a bare date covers the
// whole day.
func parseWindow(c *gin.Context) (from, to time.Time, ok bool) {
	parse := func(value string, endOfDay bool) (time.Time, bool) {
		if value == "" {
			return time.Time{}, true
		}
		if t, err := time.Parse("2006-01-02", value); err == nil {
			if endOfDay {
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			return t, true
		}
		if t, err := time.Parse(time.RFC3339, value); err == nil {
			return t, true
		}
		return time.Time{}, false
	}

	from, ok = parse(c.Query("from"), false)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'from' date"})
		return
	}
	to, ok = parse(c.Query("to"), true)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'to' date"})
		return
	}
	return from, to, true
}

// Roster returns every teacher's aggregated standing for a template.
// Query parameters: template_id (required), from, to (optional dates).
func (h *RosterHandler) Roster(c *gin.Context) {
	templateID := c.Query("template_id")
	if templateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id is required"})
		return
	}
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	rows, err := h.scores.Roster(c.Request.Context(), templateID, from, to)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to compute roster")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute roster"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"template_id": templateID,
		"teachers":    rows,
	})
}

// Dashboard returns one teacher's element metrics and ranked growth areas.
// Query parameters: template_id (required), from, to (optional dates).
func (h *RosterHandler) Dashboard(c *gin.Context) {
	teacherID := c.Param("id")
	templateID := c.Query("template_id")
	if templateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id is required"})
		return
	}
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	dash, err := h.scores.TeacherDashboard(c.Request.Context(), teacherID, templateID, from, to)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to compute dashboard")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute dashboard"})
		return
	}

	c.JSON(http.StatusOK, dash)
}

// SummaryInsights returns one teacher's profile-level rollup across all
// their reviewed observations.
// Query parameters: template_id (required), from, to (optional dates).
func (h *RosterHandler) SummaryInsights(c *gin.Context) {
	teacherID := c.Param("id")
	templateID := c.Query("template_id")
	if templateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id is required"})
		return
	}
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	insights, err := h.scores.SummaryInsights(c.Request.Context(), teacherID, templateID, from, to)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to compute summary insights")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute summary insights"})
		return
	}

	c.JSON(http.StatusOK, insights)
}

// PeerRecommendations returns colleagues who score well on the teacher's
// weakest elements.
// Query parameters: template_id (required), from, to (optional dates).
func (h *RosterHandler) PeerRecommendations(c *gin.Context) {
	teacherID := c.Param("id")
	templateID := c.Query("template_id")
	if templateID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "template_id is required"})
		return
	}
	from, to, ok := parseWindow(c)
	if !ok {
		return
	}

	recs, err := h.scores.PeerRecommendations(c.Request.Context(), teacherID, templateID, from, to)
	if err != nil {
		middleware.GetLogger(c).WithError(err).Error("Failed to compute peer recommendations")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute peer recommendations"})
		return
	}
	if recs == nil {
		recs = []scoring.PeerRecommendation{}
	}

	c.JSON(http.StatusOK, gin.H{
		"teacher_id":      teacherID,
		"recommendations": recs,
	})
}

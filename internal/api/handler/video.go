package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/classlens/classlens/internal/repository"
)

// VideoHandler serves per-video processing status.
type VideoHandler struct {
	videos      *repository.VideoRepository
	assessments *repository.AssessmentRepository
	audits      *repository.AuditRepository
}

// NewVideoHandler creates a new video handler.
func NewVideoHandler(videos *repository.VideoRepository, assessments *repository.AssessmentRepository, audits *repository.AuditRepository) *VideoHandler {
	return &VideoHandler{videos: videos, assessments: assessments, audits: audits}
}

// Status returns a video's processing state plus, once completed, its
// assessment and run history.
func (h *VideoHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	video, err := h.videos.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load video"})
		return
	}

	resp := gin.H{"video": video}

	if assessment, err := h.assessments.GetByVideo(ctx, id); err == nil {
		resp["assessment"] = assessment
	}
	if entries, err := h.audits.ListByVideo(ctx, id); err == nil && len(entries) > 0 {
		resp["runs"] = entries
	}

	c.JSON(http.StatusOK, resp)
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classlens/classlens/internal/domain"
	"github.com/classlens/classlens/internal/repository"
)

// HealthHandler reports service liveness and queue depth.
type HealthHandler struct {
	videos *repository.VideoRepository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(videos *repository.VideoRepository) *HealthHandler {
	return &HealthHandler{videos: videos}
}

// Health returns the health status of the service along with the current
// video queue depth. A database failure degrades the report rather than
// failing it: the process is still alive.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()

	pending, pErr := h.videos.CountByStatus(ctx, domain.VideoStatusPending)
	processing, prErr := h.videos.CountByStatus(ctx, domain.VideoStatusProcessing)
	if pErr != nil || prErr != nil {
		c.JSON(http.StatusOK, gin.H{
			"status":   "degraded",
			"database": "unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"queue": gin.H{
			"pending":    pending,
			"processing": processing,
		},
	})
}

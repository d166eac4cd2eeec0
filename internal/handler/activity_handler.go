package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-management-api/internal/models"
	appErrors "github.com/noah-isme/course-management-api/pkg/errors"
	"github.com/noah-isme/course-management-api/pkg/response"
)

type activityFeed interface {
	Recent(ctx context.Context, limit int) ([]models.Activity, error)
}

// ActivityHandler serves the recent activity feed.
type ActivityHandler struct {
	feed activityFeed
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(feed activityFeed) *ActivityHandler {
	return &ActivityHandler{feed: feed}
}

// Recent godoc
// @Summary Recent activity
// @Tags Activity
// @Produce json
// @Param limit query int false "Number of entries (max 50)"
// @Success 200 {object} response.Envelope
// @Router /activity [get]
func (h *ActivityHandler) Recent(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}
	items, err := h.feed.Recent(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

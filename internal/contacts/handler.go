package contacts

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"selestial_backend/internal/timeline"
	"selestial_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TimelineReader is the event history access the contact API needs.
type TimelineReader interface {
	ListByContact(ctx context.Context, contactID uuid.UUID, limit, offset int) ([]timeline.Event, error)
}

// Handler exposes contact reads over HTTP.
type Handler struct {
	repo     *Repository
	timeline TimelineReader
}

func NewHandler(repo *Repository, timelineReader TimelineReader) *Handler {
	return &Handler{repo: repo, timeline: timelineReader}
}

func (h *Handler) HandleGet(c *gin.Context) {
	id, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return
	}

	contact, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "contact not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, contact)
}

// HandleTimeline returns the contact's activity history, newest first.
func (h *Handler) HandleTimeline(c *gin.Context) {
	id, err := uuid.Parse(c.Param("contactId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid contact id", nil)
		return
	}

	limit, offset := pagination(c)
	events, err := h.timeline.ListByContact(c.Request.Context(), id, limit, offset)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"events": events})
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

package scoring

import (
	"net/http"

	"selestial_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the scoring engine over HTTP.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

type runRequest struct {
	ContactID      *uuid.UUID `json:"contact_id"`
	OrganizationID *uuid.UUID `json:"organization_id"`
}

// HandleRun scores one contact, one organization's live contacts, or every
// live contact, depending on which ids the body carries. An empty body is a
// full sweep.
func (h *Handler) HandleRun(c *gin.Context) {
	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return
		}
	}

	scored, err := h.engine.Run(c.Request.Context(), Request{
		ContactID:      req.ContactID,
		OrganizationID: req.OrganizationID,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"scored": scored})
}

package workflows

import (
	"errors"
	"net/http"

	"selestial_backend/platform/httpkit"
	"selestial_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes workflow administration and evaluation over HTTP.
type Handler struct {
	repo   *Repository
	engine *Engine
	val    *validator.Validator
}

func NewHandler(repo *Repository, engine *Engine, val *validator.Validator) *Handler {
	return &Handler{repo: repo, engine: engine, val: val}
}

type workflowRequest struct {
	OrganizationID uuid.UUID    `json:"organization_id" validate:"required"`
	Name           string       `json:"name" validate:"required,max=200"`
	TriggerType    TriggerType  `json:"trigger_type" validate:"required"`
	Conditions     Conditions   `json:"conditions"`
	Actions        []ActionSpec `json:"actions" validate:"required,min=1"`
	IsActive       *bool        `json:"is_active"`
}

func (r workflowRequest) toWorkflow() Workflow {
	w := Workflow{
		OrganizationID: r.OrganizationID,
		Name:           r.Name,
		TriggerType:    r.TriggerType,
		Conditions:     r.Conditions,
		Actions:        r.Actions,
		IsActive:       true,
	}
	if r.IsActive != nil {
		w.IsActive = *r.IsActive
	}
	return w
}

// HandleCreate validates and stores a new workflow. Conditions and actions
// are checked against the trigger type here, so the engine can trust every
// stored definition.
func (h *Handler) HandleCreate(c *gin.Context) {
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	w := req.toWorkflow()
	if err := w.Validate(); httpkit.HandleError(c, err) {
		return
	}

	created, err := h.repo.Create(c.Request.Context(), w)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, created)
}

func (h *Handler) HandleList(c *gin.Context) {
	orgID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "organization_id is required", nil)
		return
	}

	list, err := h.repo.ListByOrganization(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"workflows": list})
}

func (h *Handler) HandleGet(c *gin.Context) {
	id, orgID, ok := h.ids(c)
	if !ok {
		return
	}

	w, err := h.repo.GetByID(c.Request.Context(), id, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "workflow not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, w)
}

func (h *Handler) HandleUpdate(c *gin.Context) {
	id, orgID, ok := h.ids(c)
	if !ok {
		return
	}

	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	req.OrganizationID = orgID
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	w := req.toWorkflow()
	w.ID = id
	if err := w.Validate(); httpkit.HandleError(c, err) {
		return
	}

	updated, err := h.repo.Update(c.Request.Context(), w)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "workflow not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, updated)
}

func (h *Handler) HandleSetActive(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, orgID, ok := h.ids(c)
		if !ok {
			return
		}
		if err := h.repo.SetActive(c.Request.Context(), id, orgID, active); err != nil {
			if errors.Is(err, ErrNotFound) {
				httpkit.Error(c, http.StatusNotFound, "workflow not found", nil)
				return
			}
			httpkit.HandleError(c, err)
			return
		}
		httpkit.OK(c, gin.H{"is_active": active})
	}
}

func (h *Handler) HandleDelete(c *gin.Context) {
	id, orgID, ok := h.ids(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id, orgID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpkit.Error(c, http.StatusNotFound, "workflow not found", nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, gin.H{"deleted": true})
}

type evaluateRequest struct {
	ContactID      uuid.UUID `json:"contact_id" validate:"required"`
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Trigger        string    `json:"trigger_event_type"`
}

// HandleEvaluate runs every active workflow of the organization against the
// contact and reports how many fired.
func (h *Handler) HandleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	fired, err := h.engine.Evaluate(c.Request.Context(), req.ContactID, req.OrganizationID, req.Trigger)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"triggered": fired})
}

func (h *Handler) ids(c *gin.Context) (id, orgID uuid.UUID, ok bool) {
	id, err := uuid.Parse(c.Param("workflowId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid workflow id", nil)
		return uuid.Nil, uuid.Nil, false
	}
	orgID, err = uuid.Parse(c.Query("organization_id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "organization_id is required", nil)
		return uuid.Nil, uuid.Nil, false
	}
	return id, orgID, true
}

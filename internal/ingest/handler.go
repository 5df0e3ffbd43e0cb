package ingest

import (
	"io"
	"net/http"

	"selestial_backend/platform/httpkit"
	"selestial_backend/platform/logger"
	"selestial_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler exposes the inbound webhook endpoints and the manual-ingest API.
type Handler struct {
	service *Service
	keys    *Repository
	val     *validator.Validator
	log     *logger.Logger
}

func NewHandler(service *Service, keys *Repository, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, keys: keys, val: val, log: log}
}

// Provider webhooks always answer 200 with a benign body, even on a tenant
// miss, so the sender does not retry a payload we can never map.
func (h *Handler) webhook(c *gin.Context, ingest func([]byte) (Result, error)) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		httpkit.JSON(c, http.StatusOK, gin.H{"received": true})
		return
	}

	result, err := ingest(raw)
	if err != nil {
		h.log.Error("webhook ingest failed", "path", c.FullPath(), "error", err)
		httpkit.JSON(c, http.StatusInternalServerError, gin.H{"error": "ingest failed"})
		return
	}
	if result.Dropped {
		httpkit.JSON(c, http.StatusOK, gin.H{"received": true, "note": result.Reason})
		return
	}
	httpkit.JSON(c, http.StatusOK, gin.H{"received": true})
}

func (h *Handler) HandleStripeWebhook(c *gin.Context) {
	h.webhook(c, func(raw []byte) (Result, error) {
		return h.service.IngestStripe(c.Request.Context(), raw)
	})
}

func (h *Handler) HandleGHLWebhook(c *gin.Context) {
	h.webhook(c, func(raw []byte) (Result, error) {
		return h.service.IngestGHL(c.Request.Context(), raw)
	})
}

func (h *Handler) HandleTelnyxWebhook(c *gin.Context) {
	h.webhook(c, func(raw []byte) (Result, error) {
		return h.service.IngestTelnyx(c.Request.Context(), raw)
	})
}

// HandleManualIngest records an operator-submitted event for the key's
// organization.
func (h *Handler) HandleManualIngest(c *gin.Context) {
	val, exists := c.Get(orgContextKey)
	orgID, ok := val.(uuid.UUID)
	if !exists || !ok {
		httpkit.Error(c, http.StatusUnauthorized, "missing organization context", nil)
		return
	}

	var req ManualEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	result, err := h.service.IngestManual(c.Request.Context(), orgID, req)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{
		"event_id":   result.EventID,
		"contact_id": result.ContactID,
		"created":    result.Created,
	})
}

type createKeyRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=100"`
}

// HandleCreateAPIKey issues a manual-ingest key. The plaintext is returned
// exactly once.
func (h *Handler) HandleCreateAPIKey(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	plaintext, hash, prefix, err := GenerateAPIKey()
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "key generation failed", nil)
		return
	}

	key, err := h.keys.Create(c.Request.Context(), req.OrganizationID, req.Name, hash, prefix)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, gin.H{
		"id":         key.ID,
		"name":       key.Name,
		"key":        plaintext,
		"key_prefix": key.KeyPrefix,
	})
}

func (h *Handler) HandleListAPIKeys(c *gin.Context) {
	orgID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "organization_id is required", nil)
		return
	}

	keys, err := h.keys.ListByOrganization(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		out = append(out, gin.H{
			"id":         key.ID,
			"name":       key.Name,
			"key_prefix": key.KeyPrefix,
			"is_active":  key.IsActive,
			"created_at": key.CreatedAt,
		})
	}
	httpkit.OK(c, gin.H{"keys": out})
}

func (h *Handler) HandleRevokeAPIKey(c *gin.Context) {
	keyID, err := uuid.Parse(c.Param("keyId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid key id", nil)
		return
	}
	orgID, err := uuid.Parse(c.Query("organization_id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "organization_id is required", nil)
		return
	}

	if err := h.keys.Revoke(c.Request.Context(), keyID, orgID); err != nil {
		if err == ErrAPIKeyNotFound {
			httpkit.Error(c, http.StatusNotFound, "key not found", nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "revoke failed", nil)
		return
	}
	httpkit.OK(c, gin.H{"revoked": true})
}

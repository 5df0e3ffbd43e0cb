package ingest

import (
	apphttp "selestial_backend/internal/http"
	"selestial_backend/platform/logger"
	"selestial_backend/platform/validator"
)

// Module is the ingestion bounded context implementing http.Module.
type Module struct {
	handler *Handler
	keys    *Repository
}

// NewModule wires the ingestion pipeline. archive and queue may be nil when
// object storage or Redis are not configured.
func NewModule(service *Service, keys *Repository, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(service, keys, val, log),
		keys:    keys,
	}
}

func (m *Module) Name() string {
	return "ingest"
}

// RegisterRoutes mounts the provider webhooks, the manual-ingest endpoint,
// and the admin key management routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/stripe", m.handler.HandleStripeWebhook)
	ctx.Webhooks.POST("/ghl", m.handler.HandleGHLWebhook)
	ctx.Webhooks.POST("/telnyx", m.handler.HandleTelnyxWebhook)

	manual := ctx.V1.Group("/ingest")
	manual.Use(APIKeyAuthMiddleware(m.keys))
	manual.POST("/events", m.handler.HandleManualIngest)

	adminKeys := ctx.Admin.Group("/ingest/keys")
	adminKeys.POST("", m.handler.HandleCreateAPIKey)
	adminKeys.GET("", m.handler.HandleListAPIKeys)
	adminKeys.DELETE("/:keyId", m.handler.HandleRevokeAPIKey)
}

var _ apphttp.Module = (*Module)(nil)

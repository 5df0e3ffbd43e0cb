package contacts

import (
	apphttp "selestial_backend/internal/http"
)

// Module is the contacts bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(repo *Repository, timelineReader TimelineReader) *Module {
	return &Module{handler: NewHandler(repo, timelineReader)}
}

func (m *Module) Name() string {
	return "contacts"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/contacts")
	group.GET("/:contactId", m.handler.HandleGet)
	group.GET("/:contactId/timeline", m.handler.HandleTimeline)
}

var _ apphttp.Module = (*Module)(nil)

package timeline

import (
	apphttp "selestial_backend/internal/http"
)

// Module is the activity log bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(repo *Repository) *Module {
	return &Module{handler: NewHandler(repo)}
}

func (m *Module) Name() string {
	return "timeline"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/organizations/:orgId/activity", m.handler.HandleActivityFeed)
}

var _ apphttp.Module = (*Module)(nil)

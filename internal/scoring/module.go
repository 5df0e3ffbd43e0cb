package scoring

import (
	apphttp "selestial_backend/internal/http"
)

// Module is the scoring bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(engine *Engine) *Module {
	return &Module{handler: NewHandler(engine)}
}

func (m *Module) Name() string {
	return "scoring"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/scoring/run", m.handler.HandleRun)
}

var _ apphttp.Module = (*Module)(nil)

package workflows

import (
	apphttp "selestial_backend/internal/http"
	"selestial_backend/platform/validator"
)

// Module is the workflows bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(repo *Repository, engine *Engine, val *validator.Validator) *Module {
	return &Module{handler: NewHandler(repo, engine, val)}
}

func (m *Module) Name() string {
	return "workflows"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.POST("/workflows/evaluate", m.handler.HandleEvaluate)

	admin := ctx.Admin.Group("/workflows")
	admin.POST("", m.handler.HandleCreate)
	admin.GET("", m.handler.HandleList)
	admin.GET("/:workflowId", m.handler.HandleGet)
	admin.PUT("/:workflowId", m.handler.HandleUpdate)
	admin.POST("/:workflowId/activate", m.handler.HandleSetActive(true))
	admin.POST("/:workflowId/deactivate", m.handler.HandleSetActive(false))
	admin.DELETE("/:workflowId", m.handler.HandleDelete)
}

var _ apphttp.Module = (*Module)(nil)

package maps

import (
	apphttp "recruitment_backend/internal/http"
)

// Module mounts the site lookup used while registering claimed sites.
type Module struct {
	handler *Handler
}

func NewModule(sites SiteSuggester) *Module {
	return &Module{handler: NewHandler(sites)}
}

func (m *Module) Name() string {
	return "maps"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Protected.Group("/maps").GET("/site-lookup", m.handler.LookupSite)
}

var _ apphttp.Module = (*Module)(nil)

// Package leads provides the lead recruitment bounded context module.
// This file wires its services and registers its routes.
package leads

import (
	"context"

	"recruitment_backend/internal/events"
	apphttp "recruitment_backend/internal/http"
	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/handler"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/messages"
	"recruitment_backend/internal/leads/pipeline"
	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"
	"recruitment_backend/platform/validator"
)

// Module is the leads bounded context module implementing http.Module.
type Module struct {
	handler    *handler.Handler
	public     *handler.PublicHandler
	admin      *handler.AdminHandler
	management *management.Service
	pipeline   *pipeline.Service
	messages   *messages.Service
	audit      *audit.Logger
}

// NewModule creates the leads services over store. geocoder resolves
// participant postal codes for site ranking.
func NewModule(store repository.Store, eventBus events.Bus, geocoder ranking.Geocoder, val *validator.Validator, cfg config.GeocodeConfig, log *logger.Logger, m *metrics.Metrics) *Module {
	auditLog := audit.New(store, audit.WithLogger(log))
	pipelineSvc := pipeline.New(store, auditLog, eventBus, log, m)
	ranker := ranking.New(geocoder, cfg.GetGeocodeTimeout(), log, m)
	mgmtSvc := management.New(store, auditLog, ranker, eventBus, log, m)
	msgSvc := messages.New(store, pipelineSvc, eventBus, log)

	return &Module{
		handler:    handler.New(mgmtSvc, pipelineSvc, msgSvc, val),
		public:     handler.NewPublicHandler(mgmtSvc, msgSvc, val),
		admin:      handler.NewAdminHandler(inlineCloser{pipeline: pipelineSvc}),
		management: mgmtSvc,
		pipeline:   pipelineSvc,
		messages:   msgSvc,
		audit:      auditLog,
	}
}

// SetTrialCloser replaces the inline trial closer, typically with the
// job queue client.
func (m *Module) SetTrialCloser(closer handler.TrialCloser) {
	m.admin = handler.NewAdminHandler(closer)
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "leads"
}

// ManagementService returns the board and intake service for external use.
func (m *Module) ManagementService() *management.Service {
	return m.management
}

// PipelineService returns the status state machine service.
func (m *Module) PipelineService() *pipeline.Service {
	return m.pipeline
}

// MessagesService returns the conversation service.
func (m *Module) MessagesService() *messages.Service {
	return m.messages
}

// RegisterRoutes mounts leads routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/leads"))
	m.public.RegisterRoutes(ctx.Public)
	m.admin.RegisterRoutes(ctx.Admin)
}

// inlineCloser closes a trial within the request when no job queue is
// configured.
type inlineCloser struct {
	pipeline *pipeline.Service
}

func (c inlineCloser) CloseTrial(ctx context.Context, trialID string) (bool, error) {
	_, err := c.pipeline.ImposeTrialClosed(ctx, trialID)
	return false, err
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)

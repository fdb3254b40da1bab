// Package notification pushes lead changes to connected boards. It relays
// the change stream into per-connection realtime sessions and serves the
// SSE and optimistic write endpoints.
package notification

import (
	"context"

	apphttp "recruitment_backend/internal/http"
	notifhandler "recruitment_backend/internal/notification/handler"
	"recruitment_backend/internal/notification/sse"
	"recruitment_backend/internal/leads/realtime"
	"recruitment_backend/platform/config"
	"recruitment_backend/platform/logger"
	"recruitment_backend/platform/metrics"
	"recruitment_backend/platform/validator"
)

// Deps are the lead services the realtime endpoints call.
type Deps struct {
	Board       notifhandler.BoardLoader
	Transcripts notifhandler.TranscriptReader
	Status      notifhandler.StatusWriter
	Notes       notifhandler.NotesWriter
	MarkReader  realtime.MarkReader
}

// Module owns the SSE hub.
type Module struct {
	hub     *sse.Service
	handler *notifhandler.HTTPHandler
}

func New(deps Deps, cfg config.RealtimeConfig, val *validator.Validator, log *logger.Logger, m *metrics.Metrics) *Module {
	hub := sse.New(deps.MarkReader, cfg.GetSessionBufferSize(), log, m)
	return &Module{
		hub:     hub,
		handler: notifhandler.NewHTTPHandler(hub, deps.Board, deps.Transcripts, deps.Status, deps.Notes, val),
	}
}

// Hub is the change stream sink.
func (m *Module) Hub() *sse.Service {
	return m.hub
}

// Deliver implements the change stream sink.
func (m *Module) Deliver(ctx context.Context, ev realtime.Event) {
	m.hub.Deliver(ctx, ev)
}

func (m *Module) Name() string {
	return "notification"
}

func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Protected.Group("/realtime"))
}

// Close disconnects every board.
func (m *Module) Close() {
	m.hub.Close()
}

var _ apphttp.Module = (*Module)(nil)

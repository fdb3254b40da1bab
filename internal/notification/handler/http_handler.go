package handler

import (
	"context"
	"errors"
	"net/http"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/realtime"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/internal/notification/sse"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// BoardLoader returns the leads a board shows.
type BoardLoader interface {
	Board(ctx context.Context, filter management.Filter, actor domain.Actor) (transport.BoardResponse, error)
}

// TranscriptReader loads a lead's conversation.
type TranscriptReader interface {
	List(ctx context.Context, leadID uuid.UUID, actor domain.Actor) ([]domain.Message, error)
}

// StatusWriter persists a status transition.
type StatusWriter interface {
	Transition(ctx context.Context, leadID uuid.UUID, to domain.Status, actor domain.Actor) (domain.Lead, error)
}

// NotesWriter persists researcher notes.
type NotesWriter interface {
	CommitNotes(ctx context.Context, id uuid.UUID, notes string, actor domain.Actor) (transport.LeadResponse, error)
}

type ViewportRequest struct {
	ClientID           uuid.UUID  `json:"clientId" validate:"required"`
	ActiveConversation *uuid.UUID `json:"activeConversation"`
}

type StatusRequest struct {
	ClientID uuid.UUID `json:"clientId" validate:"required"`
	Status   string    `json:"status" validate:"required,max=32"`
}

type NotesRequest struct {
	ClientID uuid.UUID `json:"clientId" validate:"required"`
	Notes    string    `json:"notes" validate:"max=20000"`
}

// HTTPHandler serves the realtime board endpoints.
type HTTPHandler struct {
	hub         *sse.Service
	board       BoardLoader
	transcripts TranscriptReader
	status      StatusWriter
	notes       NotesWriter
	val         *validator.Validator
}

func NewHTTPHandler(hub *sse.Service, board BoardLoader, transcripts TranscriptReader, status StatusWriter, notes NotesWriter, val *validator.Validator) *HTTPHandler {
	return &HTTPHandler{hub: hub, board: board, transcripts: transcripts, status: status, notes: notes, val: val}
}

func (h *HTTPHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stream", h.Stream)
	rg.PUT("/viewport", h.SetViewport)
	rg.PATCH("/leads/:id/status", h.Transition)
	rg.PUT("/leads/:id/notes", h.CommitNotes)
}

func actorFrom(c *gin.Context) (domain.Actor, bool) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return domain.Actor{}, false
	}
	return domain.Actor{
		UserID: id.UserID(),
		Role:   domain.PrimaryRole(id.Roles()),
		Name:   id.DisplayName(),
		Email:  id.Email(),
		Sites:  id.Sites(),
	}, true
}

func (h *HTTPHandler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.FieldErrors(err))
		return false
	}
	return true
}

// Stream opens the SSE connection with the actor's board loaded.
func (h *HTTPHandler) Stream(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	leads, err := h.sessionLeads(c.Request.Context(), actor)
	if httpkit.HandleError(c, err) {
		return
	}

	clientID, updates := h.hub.Connect(actor, leads)
	defer h.hub.Disconnect(clientID)
	h.hub.Stream(c, clientID, updates)
}

// sessionLeads is the actor's board plus, for administrators, the
// unclaimed pool they work.
func (h *HTTPHandler) sessionLeads(ctx context.Context, actor domain.Actor) ([]domain.Lead, error) {
	filters := []management.Filter{{}}
	if actor.IsAdministrator() {
		filters = append(filters, management.Filter{Unclaimed: true})
	}

	leads := make([]domain.Lead, 0)
	for _, filter := range filters {
		board, err := h.board.Board(ctx, filter, actor)
		if err != nil {
			return nil, err
		}
		for _, col := range board.Columns {
			for _, item := range col.Leads {
				leads = append(leads, item.Lead)
			}
		}
	}
	return leads, nil
}

func (h *HTTPHandler) SetViewport(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req ViewportRequest
	if !h.bind(c, &req) {
		return
	}

	vp := realtime.Viewport{}
	var transcript []domain.Message
	if req.ActiveConversation != nil && *req.ActiveConversation != uuid.Nil {
		vp.ActiveConversation = *req.ActiveConversation
		items, err := h.transcripts.List(c.Request.Context(), vp.ActiveConversation, actor)
		if httpkit.HandleError(c, err) {
			return
		}
		transcript = items
	}

	if httpkit.HandleError(c, hubError(h.hub.SetViewport(req.ClientID, actor.UserID, vp, transcript))) {
		return
	}
	httpkit.OK(c, gin.H{"clientId": req.ClientID, "viewport": vp, "messages": transcript})
}

// Transition applies a status change optimistically on the caller's board.
func (h *HTTPHandler) Transition(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	var req StatusRequest
	if !h.bind(c, &req) {
		return
	}
	status, known := domain.ParseStatus(req.Status)
	if !known {
		httpkit.HandleError(c, apperr.Validation("unknown status "+req.Status))
		return
	}

	lead, err := h.hub.Mutate(c.Request.Context(), req.ClientID, actor.UserID, leadID, domain.StatusPatch(status), func(ctx context.Context) (domain.Lead, error) {
		return h.status.Transition(ctx, leadID, status, actor)
	})
	if httpkit.HandleError(c, hubError(err)) {
		return
	}
	httpkit.OK(c, lead)
}

// CommitNotes saves notes optimistically on the caller's board.
func (h *HTTPHandler) CommitNotes(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	var req NotesRequest
	if !h.bind(c, &req) {
		return
	}

	notes := req.Notes
	lead, err := h.hub.Mutate(c.Request.Context(), req.ClientID, actor.UserID, leadID, domain.LeadPatch{ResearcherNotes: &notes}, func(ctx context.Context) (domain.Lead, error) {
		resp, err := h.notes.CommitNotes(ctx, leadID, notes, actor)
		return resp.Lead, err
	})
	if httpkit.HandleError(c, hubError(err)) {
		return
	}
	httpkit.OK(c, lead)
}

func hubError(err error) error {
	if errors.Is(err, sse.ErrUnknownClient) {
		return apperr.NotFound("realtime client is not connected")
	}
	if errors.Is(err, realtime.ErrNotLoaded) {
		return apperr.Conflict("lead is not on this board")
	}
	return err
}

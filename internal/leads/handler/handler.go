package handler

import (
	"net/http"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/messages"
	"recruitment_backend/internal/leads/pipeline"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler serves the staff-facing lead board.
type Handler struct {
	mgmt     *management.Service
	pipeline *pipeline.Service
	messages *messages.Service
	val      *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(mgmt *management.Service, pipe *pipeline.Service, msgs *messages.Service, val *validator.Validator) *Handler {
	return &Handler{mgmt: mgmt, pipeline: pipe, messages: msgs, val: val}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.Board)
	rg.GET("/:id", h.Get)
	rg.PATCH("/:id/status", h.Transition)
	rg.POST("/:id/override", httpkit.RequireRole(string(domain.RoleAdmin), string(domain.RoleOAM)), h.Override)
	rg.PUT("/:id/answers", h.CorrectAnswer)
	rg.PUT("/:id/notes", h.CommitNotes)
	rg.GET("/:id/messages", h.ListMessages)
	rg.POST("/:id/messages", h.SendMessage)
	rg.POST("/:id/messages/read", h.MarkRead)
}

// actorFrom builds the acting staff member from the verified token.
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

func leadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

// bind decodes and validates a JSON body, writing the error response on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

func (h *Handler) Board(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var query transport.BoardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	filter := management.Filter{Tier: query.Tier, Search: query.Search, SiteID: query.SiteID, Unclaimed: query.Unclaimed, TrialID: query.TrialID}
	for _, raw := range query.Status {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			httpkit.HandleError(c, apperr.Validation("unknown status "+raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	board, err := h.mgmt.Board(c.Request.Context(), filter, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, board)
}

func (h *Handler) Get(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	detail, err := h.mgmt.Get(c.Request.Context(), id, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, detail)
}

func (h *Handler) Transition(c *gin.Context) {
	h.changeStatus(c, false)
}

func (h *Handler) Override(c *gin.Context) {
	h.changeStatus(c, true)
}

func (h *Handler) changeStatus(c *gin.Context, override bool) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.TransitionRequest
	if !h.bind(c, &req) {
		return
	}
	status, known := domain.ParseStatus(req.Status)
	if !known {
		httpkit.HandleError(c, apperr.Validation("unknown status "+req.Status))
		return
	}

	ctx := c.Request.Context()
	var lead domain.Lead
	var err error
	if override {
		lead, err = h.pipeline.Override(ctx, id, status, actor)
	} else {
		lead, err = h.pipeline.Transition(ctx, id, status, actor)
	}
	if httpkit.HandleError(c, err) {
		return
	}

	resp, err := h.mgmt.Project(ctx, lead)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) CorrectAnswer(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.CorrectAnswerRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.mgmt.CorrectAnswer(c.Request.Context(), id, *req.Index, req.Value, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) CommitNotes(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.CommitNotesRequest
	if !h.bind(c, &req) {
		return
	}

	resp, err := h.mgmt.CommitNotes(c.Request.Context(), id, req.Notes, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ListMessages(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	items, err := h.messages.List(c.Request.Context(), id, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"items": items})
}

func (h *Handler) SendMessage(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}
	var req transport.SendMessageRequest
	if !h.bind(c, &req) {
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), id, req.Content, actor)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, msg)
}

func (h *Handler) MarkRead(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := leadID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.messages.MarkReadAs(c.Request.Context(), id, actor)) {
		return
	}
	c.Status(http.StatusNoContent)
}

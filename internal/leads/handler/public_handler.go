package handler

import (
	"net/http"
	"strings"

	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/messages"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// PublicHandler serves the unauthenticated participant endpoints.
type PublicHandler struct {
	mgmt     *management.Service
	messages *messages.Service
	val      *validator.Validator
}

const publicMsgInvalidInput = "Invalid input"

func NewPublicHandler(mgmt *management.Service, msgs *messages.Service, val *validator.Validator) *PublicHandler {
	return &PublicHandler{mgmt: mgmt, messages: msgs, val: val}
}

// RegisterRoutes mounts the participant routes under /public.
func (h *PublicHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/leads", h.Submit)
	rg.POST("/leads/:id/messages", h.Reply)
	rg.GET("/trials/:id/sites", h.RankSites)
}

func (h *PublicHandler) Submit(c *gin.Context) {
	var req transport.SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, publicMsgInvalidInput, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	lead, err := h.mgmt.Submit(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, gin.H{"id": lead.ID, "status": lead.Status, "siteId": lead.SiteID})
}

// Reply appends a participant message to their own application.
func (h *PublicHandler) Reply(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, publicMsgInvalidInput, nil)
		return
	}
	var req transport.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, publicMsgInvalidInput, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	msg, err := h.messages.Receive(c.Request.Context(), id, req.Content)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, gin.H{"id": msg.ID, "createdAt": msg.CreatedAt})
}

// RankSites lists a trial's sites nearest the zip query parameter first.
func (h *PublicHandler) RankSites(c *gin.Context) {
	var query transport.RankSitesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, publicMsgInvalidInput, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	resp, err := h.mgmt.RankSites(c.Request.Context(), strings.TrimSpace(c.Param("id")), query.Zip)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// TrialCloser stops recruitment for a trial. The queue-backed closer
// returns once the job is enqueued.
type TrialCloser interface {
	CloseTrial(ctx context.Context, trialID string) (queued bool, err error)
}

// AdminHandler serves administrator operations on trials.
type AdminHandler struct {
	closer TrialCloser
}

func NewAdminHandler(closer TrialCloser) *AdminHandler {
	return &AdminHandler{closer: closer}
}

func (h *AdminHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/trials/:id/close", h.CloseTrial)
}

func (h *AdminHandler) CloseTrial(c *gin.Context) {
	trialID := strings.TrimSpace(c.Param("id"))
	if trialID == "" {
		httpkit.HandleError(c, apperr.Validation("trial id is required"))
		return
	}

	queued, err := h.closer.CloseTrial(c.Request.Context(), trialID)
	if httpkit.HandleError(c, err) {
		return
	}
	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	httpkit.JSON(c, status, transport.TrialClosedResponse{TrialID: trialID, Queued: queued, At: time.Now().UTC()})
}

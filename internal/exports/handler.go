// Package exports streams the caller's lead board as CSV.
package exports

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/apperr"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	defaultTimezone = "UTC"
	timeLayout      = "2006-01-02 15:04"
)

var csvHeaders = []string{
	"Lead ID", "Trial", "Status", "Tier", "Tier Detail", "Questions Changed",
	"Site", "Name", "Email", "Phone", "Best Contact", "Unread", "Submitted",
}

// BoardLoader returns the leads visible to an actor.
type BoardLoader interface {
	Board(ctx context.Context, filter management.Filter, actor domain.Actor) (transport.BoardResponse, error)
}

// Handler handles export requests.
type Handler struct {
	board BoardLoader
	val   *validator.Validator
}

// NewHandler creates a new export handler.
func NewHandler(board BoardLoader, val *validator.Validator) *Handler {
	return &Handler{board: board, val: val}
}

// ExportLeadsCSV writes the filtered board, one row per lead in column order.
func (h *Handler) ExportLeadsCSV(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	actor := domain.Actor{
		UserID: id.UserID(),
		Role:   domain.PrimaryRole(id.Roles()),
		Name:   id.DisplayName(),
		Email:  id.Email(),
		Sites:  id.Sites(),
	}

	var query transport.BoardQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", validator.FieldErrors(err))
		return
	}
	filter, err := filterFrom(query)
	if httpkit.HandleError(c, err) {
		return
	}

	location, ok := parseTimezone(c)
	if !ok {
		return
	}

	board, err := h.board.Board(c.Request.Context(), filter, actor)
	if httpkit.HandleError(c, err) {
		return
	}

	writer, ok := startCsvResponse(c)
	if !ok {
		return
	}
	for _, col := range board.Columns {
		for _, lead := range col.Leads {
			if err := writer.Write(leadRow(lead, location)); err != nil {
				return
			}
		}
	}
	writer.Flush()
}

func filterFrom(query transport.BoardQuery) (management.Filter, error) {
	filter := management.Filter{Tier: query.Tier, Search: query.Search, SiteID: query.SiteID, Unclaimed: query.Unclaimed, TrialID: query.TrialID}
	for _, raw := range query.Status {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			return management.Filter{}, apperr.Validation("unknown status " + raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	return filter, nil
}

func parseTimezone(c *gin.Context) (*time.Location, bool) {
	tzName := strings.TrimSpace(c.DefaultQuery("timezone", defaultTimezone))
	location, err := time.LoadLocation(tzName)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid timezone", nil)
		return nil, false
	}
	return location, true
}

func startCsvResponse(c *gin.Context) (*csv.Writer, bool) {
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=leads-%s.csv", time.Now().UTC().Format("20060102")))

	writer := csv.NewWriter(c.Writer)
	if err := writer.Write(csvHeaders); err != nil {
		return nil, false
	}
	return writer, true
}

func leadRow(lead transport.LeadResponse, location *time.Location) []string {
	tier, detail := "", ""
	if lead.Tier != nil {
		tier = lead.Tier.Label
		detail = lead.Tier.Detail
	}
	best := ""
	if lead.Contact.BestData != nil {
		best = lead.Contact.BestData.Name
	}
	return []string{
		lead.ID.String(),
		lead.TrialID,
		string(lead.Status),
		tier,
		detail,
		strconv.FormatBool(lead.QuestionsChanged),
		siteLabel(lead),
		lead.Name,
		lead.Email,
		lead.PhoneDisplay,
		best,
		strconv.Itoa(lead.UnreadCount),
		lead.CreatedAt.In(location).Format(timeLayout),
	}
}

func siteLabel(lead transport.LeadResponse) string {
	if lead.SiteID == "" {
		return "Unclaimed"
	}
	if lead.Contact.Facility != "" {
		return lead.Contact.Facility
	}
	return lead.SiteID
}

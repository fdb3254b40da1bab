package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/messages"
	"recruitment_backend/internal/leads/pipeline"
	"recruitment_backend/internal/leads/ranking"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/leads/transport"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noGeocoder struct{}

func (noGeocoder) GeocodePostalCode(context.Context, string) (ranking.Coordinates, error) {
	return ranking.Coordinates{}, ranking.ErrNoResult
}

type harness struct {
	engine *gin.Engine
	store  *repository.Memory
}

func newHarness(t *testing.T, roles []string, sites []string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemory()
	require.NoError(t, store.UpsertTrial(context.Background(), domain.Trial{
		ID: "NCT001", Title: "Migraine",
		Questions: []domain.Question{{Question: "Diagnosed?", CorrectAnswer: "Yes"}},
	}))
	store.AddClaim(domain.Claim{TrialID: "NCT001", Status: domain.ClaimApproved, Location: domain.SiteLocation{ID: "loc-42", Facility: "Austin Neurology", City: "Austin", State: "TX"}})

	auditLog := audit.New(store)
	pipe := pipeline.New(store, auditLog, nil, nil, nil)
	mgmt := management.New(store, auditLog, ranking.New(noGeocoder{}, 0, nil, nil), nil, nil, nil)
	msgs := messages.New(store, pipe, nil, nil)
	val := validator.New()

	engine := gin.New()
	protected := engine.Group("/leads", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, roles)
		c.Set(httpkit.ContextNameKey, "Dana Whitfield")
		c.Set(httpkit.ContextSitesKey, sites)
		c.Next()
	})
	New(mgmt, pipe, msgs, val).RegisterRoutes(protected)
	NewPublicHandler(mgmt, msgs, val).RegisterRoutes(engine.Group("/public"))
	return &harness{engine: engine, store: store}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func (h *harness) submit(t *testing.T) uuid.UUID {
	t.Helper()
	loc := "loc-42"
	rec := h.do(http.MethodPost, "/public/leads", transport.SubmitLeadRequest{
		TrialID: "NCT001", LocationID: &loc, Name: "Jane Doe", Email: "jane@example.org",
		Answers: domain.AnswersOf("Yes"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		ID uuid.UUID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out.ID
}

func TestSubmitValidation(t *testing.T) {
	h := newHarness(t, []string{"pi"}, []string{"loc-42"})

	rec := h.do(http.MethodPost, "/public/leads", map[string]any{"trialId": "NCT001", "name": "Jane"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "validation failed")

	rec = h.do(http.MethodPost, "/public/leads", map[string]any{
		"trialId": "NCT001", "name": "Jane", "email": "jane@example.org", "siteCity": "Austin", "siteState": "TX", "phone": "12",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusTransitionOverHTTP(t *testing.T) {
	h := newHarness(t, []string{"pi"}, []string{"loc-42"})
	id := h.submit(t)

	rec := h.do(http.MethodPatch, "/leads/"+id.String()+"/status", map[string]string{"status": "Enrolled"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPatch, "/leads/"+id.String()+"/status", map[string]string{"status": "Contacted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var lead transport.LeadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lead))
	assert.Equal(t, domain.StatusContacted, lead.Status)
	assert.Equal(t, "loc-42", lead.SiteID)

	rec = h.do(http.MethodPatch, "/leads/"+id.String()+"/status", map[string]string{"status": "Maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/leads/"+id.String()+"/override", map[string]string{"status": "New"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBoardAndDetail(t *testing.T) {
	h := newHarness(t, []string{"coordinator"}, []string{"loc-42"})
	id := h.submit(t)

	rec := h.do(http.MethodGet, "/leads?status=New&tier=diamond", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var board transport.BoardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	assert.Equal(t, 1, board.Total)

	rec = h.do(http.MethodGet, "/leads?status=Pending", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/leads/"+id.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail transport.LeadDetailResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "Perfect Match", detail.Lead.Tier.Label)

	rec = h.do(http.MethodGet, "/leads/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodGet, "/leads/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestConversationOverHTTP(t *testing.T) {
	h := newHarness(t, []string{"pi"}, []string{"loc-42"})
	id := h.submit(t)

	rec := h.do(http.MethodPost, "/public/leads/"+id.String()+"/messages", map[string]string{"content": "Is parking free?"})
	require.Equal(t, http.StatusCreated, rec.Code)

	lead, err := h.store.GetLead(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, lead.UnreadCount)

	rec = h.do(http.MethodPost, "/leads/"+id.String()+"/messages/read", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodPost, "/leads/"+id.String()+"/messages", map[string]string{"content": "Yes it is."})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(http.MethodGet, "/leads/"+id.String()+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Yes it is.")
}

func TestRankSitesWithoutGeocodeKeepsOrder(t *testing.T) {
	h := newHarness(t, nil, nil)

	rec := h.do(http.MethodGet, "/public/trials/NCT001/sites?zip=78701", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp transport.SiteRankingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ranked)
	require.Len(t, resp.Sites, 1)
	assert.Equal(t, "loc-42", resp.Sites[0].Location.ID)
}

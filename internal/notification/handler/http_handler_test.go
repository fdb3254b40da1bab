package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/messages"
	"recruitment_backend/internal/leads/pipeline"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/internal/notification/sse"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	engine *gin.Engine
	hub    *sse.Service
	store  *repository.Memory
	actor  domain.Actor
	lead   domain.Lead
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repository.NewMemory()
	require.NoError(t, store.UpsertTrial(ctx, domain.Trial{ID: "NCT001", Title: "Migraine"}))
	store.AddClaim(domain.Claim{TrialID: "NCT001", Status: domain.ClaimApproved, Location: domain.SiteLocation{ID: "loc-42", City: "Austin", State: "TX"}})
	loc := "loc-42"
	lead, err := store.CreateLead(ctx, domain.Lead{
		TrialID: "NCT001", LocationID: &loc, SiteCity: "Austin", SiteState: "TX",
		Name: "Jane Doe", Email: "jane@example.org", Status: domain.StatusNew,
	})
	require.NoError(t, err)

	auditLog := audit.New(store)
	pipe := pipeline.New(store, auditLog, nil, nil, nil)
	mgmt := management.New(store, auditLog, nil, nil, nil, nil)
	msgs := messages.New(store, pipe, nil, nil)
	hub := sse.New(msgs, 8, nil, nil)

	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleCoordinator, Name: "Dana Whitfield", Sites: []string{"loc-42"}}
	engine := gin.New()
	rg := engine.Group("/realtime", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, actor.UserID)
		c.Set(httpkit.ContextRolesKey, []string{"coordinator"})
		c.Set(httpkit.ContextNameKey, actor.Name)
		c.Set(httpkit.ContextSitesKey, actor.Sites)
		c.Next()
	})
	NewHTTPHandler(hub, mgmt, msgs, pipe, mgmt, validator.New()).RegisterRoutes(rg)
	return &harness{engine: engine, hub: hub, store: store, actor: actor, lead: lead}
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

func TestTransitionIsOptimisticThenConfirmed(t *testing.T) {
	h := newHarness(t)
	clientID, updates := h.hub.Connect(h.actor, []domain.Lead{h.lead})

	rec := h.do(http.MethodPatch, "/realtime/leads/"+h.lead.ID.String()+"/status", map[string]any{"clientId": clientID, "status": "Contacted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	first := <-updates
	require.NotNil(t, first.Lead)
	assert.Equal(t, domain.StatusContacted, first.Lead.Status)

	stored, err := h.store.GetLead(context.Background(), h.lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusContacted, stored.Status)
}

func TestRejectedTransitionRollsBack(t *testing.T) {
	h := newHarness(t)
	clientID, updates := h.hub.Connect(h.actor, []domain.Lead{h.lead})

	rec := h.do(http.MethodPatch, "/realtime/leads/"+h.lead.ID.String()+"/status", map[string]any{"clientId": clientID, "status": "Enrolled"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	assert.Equal(t, domain.StatusEnrolled, (<-updates).Lead.Status)
	select {
	case u := <-updates:
		assert.Equal(t, domain.StatusNew, u.Lead.Status)
	case <-time.After(time.Second):
		t.Fatal("no rollback")
	}
}

func TestNotesAndViewport(t *testing.T) {
	h := newHarness(t)
	clientID, _ := h.hub.Connect(h.actor, []domain.Lead{h.lead})

	rec := h.do(http.MethodPut, "/realtime/leads/"+h.lead.ID.String()+"/notes", map[string]any{"clientId": clientID, "notes": "call after 5pm"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, err := h.store.GetLead(context.Background(), h.lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "call after 5pm", stored.ResearcherNotes)

	rec = h.do(http.MethodPut, "/realtime/viewport", map[string]any{"clientId": clientID, "activeConversation": h.lead.ID})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestUnknownClientAndLead(t *testing.T) {
	h := newHarness(t)
	clientID, _ := h.hub.Connect(h.actor, []domain.Lead{h.lead})

	rec := h.do(http.MethodPut, "/realtime/viewport", map[string]any{"clientId": uuid.New()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPatch, "/realtime/leads/"+uuid.NewString()+"/status", map[string]any{"clientId": clientID, "status": "Contacted"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPatch, "/realtime/leads/"+h.lead.ID.String()+"/status", map[string]any{"clientId": clientID, "status": "Pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionLeadsAddUnclaimedPoolForAdmins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	stray, err := h.store.CreateLead(ctx, domain.Lead{TrialID: "NCT001", SiteCity: "Dallas", SiteState: "TX", Name: "Sam Stray", Status: domain.StatusNew})
	require.NoError(t, err)

	mgmt := management.New(h.store, audit.New(h.store), nil, nil, nil, nil)
	handler := NewHTTPHandler(h.hub, mgmt, nil, nil, nil, validator.New())
	ids := func(leads []domain.Lead) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(leads))
		for _, l := range leads {
			out = append(out, l.ID)
		}
		return out
	}

	leads, err := handler.sessionLeads(ctx, h.actor)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{h.lead.ID}, ids(leads))

	admin := domain.Actor{UserID: uuid.New(), Role: domain.RoleAdmin, Name: "Ada Admin"}
	leads, err = handler.sessionLeads(ctx, admin)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{h.lead.ID, stray.ID}, ids(leads))
}

package exports

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"recruitment_backend/internal/leads/audit"
	"recruitment_backend/internal/leads/domain"
	"recruitment_backend/internal/leads/management"
	"recruitment_backend/internal/leads/repository"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T, sites []string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := repository.NewMemory()
	require.NoError(t, store.UpsertTrial(ctx, domain.Trial{
		ID: "NCT001", Title: "Migraine",
		Questions: []domain.Question{{Question: "Diagnosed?", CorrectAnswer: "Yes"}},
	}))
	store.AddClaim(domain.Claim{TrialID: "NCT001", Status: domain.ClaimApproved, Location: domain.SiteLocation{ID: "loc-42", Facility: "Austin Neurology", City: "Austin", State: "TX"}})

	loc := "loc-42"
	_, err := store.CreateLead(ctx, domain.Lead{
		TrialID: "NCT001", LocationID: &loc, SiteCity: "Austin", SiteState: "TX",
		Name: "Jane, Doe", Email: "jane@example.org", Status: domain.StatusContacted,
		Answers:          domain.AnswersOf("Yes"),
		QuestionSnapshot: []domain.Question{{Question: "Diagnosed?", CorrectAnswer: "Yes"}},
		CreatedAt:        time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	_, err = store.CreateLead(ctx, domain.Lead{TrialID: "NCT001", SiteCity: "Dallas", SiteState: "TX", Name: "Unmatched", Status: domain.StatusNew})
	require.NoError(t, err)

	mgmt := management.New(store, audit.New(store), nil, nil, nil, nil)

	engine := gin.New()
	rg := engine.Group("", func(c *gin.Context) {
		c.Set(httpkit.ContextUserIDKey, uuid.New())
		c.Set(httpkit.ContextRolesKey, []string{"coordinator"})
		c.Set(httpkit.ContextSitesKey, sites)
		c.Next()
	})
	rg.GET("/exports/leads.csv", NewHandler(mgmt, validator.New()).ExportLeadsCSV)
	return engine
}

func get(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestExportLeadsCSV(t *testing.T) {
	rec := get(newEngine(t, []string{"loc-42"}), "/exports/leads.csv?timezone=America/Chicago")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2, "header plus the one site lead")
	assert.Equal(t, csvHeaders, rows[0])

	row := rows[1]
	assert.Equal(t, "NCT001", row[1])
	assert.Equal(t, "Contacted", row[2])
	assert.Equal(t, "Perfect Match", row[3])
	assert.Equal(t, "Austin Neurology", row[6])
	assert.Equal(t, "Jane, Doe", row[7])
	assert.Equal(t, "2026-03-01 09:30", row[12])
}

func TestExportRejectsBadInput(t *testing.T) {
	engine := newEngine(t, []string{"loc-42"})
	assert.Equal(t, http.StatusBadRequest, get(engine, "/exports/leads.csv?timezone=Mars/Base").Code)
	assert.Equal(t, http.StatusBadRequest, get(engine, "/exports/leads.csv?status=Pending").Code)
	assert.Equal(t, http.StatusBadRequest, get(engine, "/exports/leads.csv?tier=platinum").Code)
}

func TestExportOutsideSitesIsEmpty(t *testing.T) {
	rec := get(newEngine(t, []string{"loc-99"}), "/exports/leads.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	rows, err := csv.NewReader(strings.NewReader(rec.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apphttp "recruitment_backend/internal/http"
	"recruitment_backend/platform/httpkit"
	"recruitment_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testConfig struct{}

func (testConfig) GetHTTPAddr() string        { return ":0" }
func (testConfig) GetCORSAllowAll() bool      { return false }
func (testConfig) GetCORSOrigins() []string   { return []string{"http://localhost:4200"} }
func (testConfig) GetCORSAllowCreds() bool    { return true }
func (testConfig) GetJWTAccessSecret() string { return testSecret }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type echoModule struct{}

func (echoModule) Name() string { return "echo" }

func (echoModule) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Public.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	ctx.Protected.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"sites": httpkit.GetIdentity(c).Sites()})
	})
	ctx.Admin.GET("/only", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

func newEngine(health apphttp.HealthChecker) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return New(&apphttp.App{
		Config:      testConfig{},
		Logger:      logger.Discard(),
		Health:      health,
		Gatherer:    prometheus.NewRegistry(),
		PublicRate:  1,
		PublicBurst: 1,
		Modules:     []apphttp.Module{echoModule{}},
	})
}

func token(t *testing.T, roles ...string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   uuid.NewString(),
		"type":  "access",
		"roles": roles,
		"sites": []string{"loc-42"},
		"exp":   time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func get(engine *gin.Engine, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newEngine(pinger{}), "/api/health", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(newEngine(pinger{err: errors.New("down")}), "/api/health", "").Code)
}

func TestRouteGroups(t *testing.T) {
	engine := newEngine(nil)

	rec := get(engine, "/api/v1/public/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, http.StatusTooManyRequests, get(engine, "/api/v1/public/ping", "").Code)

	assert.Equal(t, http.StatusUnauthorized, get(engine, "/api/v1/me", "").Code)
	rec = get(engine, "/api/v1/me", token(t, "coordinator"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "loc-42")

	assert.Equal(t, http.StatusForbidden, get(engine, "/api/v1/admin/only", token(t, "pi")).Code)
	assert.Equal(t, http.StatusNoContent, get(engine, "/api/v1/admin/only", token(t, "oam")).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	assert.Equal(t, http.StatusOK, get(newEngine(nil), "/metrics", "").Code)
}

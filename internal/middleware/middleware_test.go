package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const secret = "test-secret"

func protected(roles ...string) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery())
	g := r.Group("/", JWTAuth(secret), RequireRole(roles...))
	g.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"operator": GetClaims(c).OperatorID})
	})
	r.GET("/boom", func(c *gin.Context) { panic("kaboom") })
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth(t *testing.T) {
	r := protected(RoleCashier, RoleManager)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", "garbage").Code)

	other, err := IssueToken("another-secret", "op-1", "Ana", RoleCashier, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", other).Code)

	expired, err := IssueToken(secret, "op-1", "Ana", RoleCashier, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/me", expired).Code)

	agent, err := IssueToken(secret, "bot", "Agente", RoleAgent, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(r, "/me", agent).Code)

	ok, err := IssueToken(secret, "op-1", "Ana", RoleCashier, time.Hour)
	require.NoError(t, err)
	w := get(r, "/me", ok)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"operator":"op-1"}`, w.Body.String())
}

func TestRecoveryHidesPanics(t *testing.T) {
	w := get(protected(), "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "kaboom")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(2, time.Minute)
	clock := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }

	r := gin.New()
	r.Use(l.Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)
	assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)
	w := get(r, "/", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "61", w.Header().Get("Retry-After"))

	clock = clock.Add(61 * time.Second)
	assert.Equal(t, http.StatusNoContent, get(r, "/", "").Code)

	clock = clock.Add(2 * time.Minute)
	assert.Equal(t, 1, l.purge())
}

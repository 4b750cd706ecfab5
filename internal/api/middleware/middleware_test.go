package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocomet/ride-lifecycle/internal/domain/ride"
	"github.com/gocomet/ride-lifecycle/pkg/auth"
	"github.com/gocomet/ride-lifecycle/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testIssuer() *auth.Issuer {
	return auth.NewIssuer(auth.Config{Secret: "test-secret", Issuer: "ride-lifecycle", Expiration: time.Hour})
}

func whoami(c *gin.Context) {
	actor, ok := ActorFromContext(c)
	c.JSON(http.StatusOK, gin.H{"authenticated": ok, "id": actor.ID, "role": actor.Role, "blocked": IsBlocked(c)})
}

func do(r http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireAuth(t *testing.T) {
	issuer := testIssuer()
	r := gin.New()
	r.GET("/me", RequireAuth(issuer), whoami)

	userID := uuid.New()
	token, _, err := issuer.GenerateToken(userID, "driver", false)
	require.NoError(t, err)

	t.Run("valid token", func(t *testing.T) {
		w := do(r, "/me", token)
		require.Equal(t, http.StatusOK, w.Code)

		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, userID.String(), body["id"])
		assert.Equal(t, "driver", body["role"])
	})

	t.Run("missing token", func(t *testing.T) {
		w := do(r, "/me", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), `"code":"UNAUTHORIZED"`)
	})

	t.Run("garbage token", func(t *testing.T) {
		w := do(r, "/me", "not-a-jwt")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("unknown role", func(t *testing.T) {
		bad, _, err := issuer.GenerateToken(uuid.New(), "guest", false)
		require.NoError(t, err)
		w := do(r, "/me", bad)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("query token", func(t *testing.T) {
		w := do(r, "/me?"+TokenQueryParam+"="+token, "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	issuer := testIssuer()
	r := gin.New()
	r.GET("/me", OptionalAuth(issuer), whoami)

	w := do(r, "/me", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	w = do(r, "/me", "not-a-jwt")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":false`)

	token, _, err := issuer.GenerateToken(uuid.New(), "rider", true)
	require.NoError(t, err)
	w = do(r, "/me", token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)
	assert.Contains(t, w.Body.String(), `"blocked":true`)
}

func TestRejectBlocked(t *testing.T) {
	issuer := testIssuer()
	r := gin.New()
	r.POST("/rides", RequireAuth(issuer), RejectBlocked(), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	blocked, _, err := issuer.GenerateToken(uuid.New(), string(ride.RoleRider), true)
	require.NoError(t, err)
	ok, _, err := issuer.GenerateToken(uuid.New(), string(ride.RoleRider), false)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rides", nil)
	req.Header.Set("Authorization", "Bearer "+blocked)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_BLOCKED")

	req = httptest.NewRequest(http.MethodPost, "/rides", nil)
	req.Header.Set("Authorization", "Bearer "+ok)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger.NewNop()))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := do(r, "/ping", "")
	generated := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
	assert.Equal(t, generated, w.Body.String())

	incoming := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, incoming)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, incoming, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := gin.New()
	r.Use(m.Handler())
	r.GET("/rides/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	do(r, "/rides/"+uuid.NewString(), "")
	do(r, "/rides/"+uuid.NewString(), "")
	do(r, "/health", "")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/rides/:id", "404")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.errors.WithLabelValues(http.MethodGet, "/rides/:id", "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/health", "200")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.errors.WithLabelValues(http.MethodGet, "/health", "200")))
}

package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/rollcall/config"
	"github.com/cppla/rollcall/utils"
)

const secret = "test-secret"

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{})
	os.Exit(m.Run())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) utils.JSONResponse {
	t.Helper()
	var body utils.JSONResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.GET("/who", OperatorRequired(secret), func(c *gin.Context) {
		utils.Success(c, gin.H{"operator": c.GetString(ContextOperatorKey)})
	})
	return r
}

func TestOperatorRequired(t *testing.T) {
	good, err := utils.GenerateToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	foreign, err := utils.GenerateToken("other", "ops", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
		code   int
	}{
		{"missing", "", http.StatusUnauthorized, 40101},
		{"bad scheme", "Basic abc", http.StatusUnauthorized, 40102},
		{"empty token", "Bearer  ", http.StatusUnauthorized, 40103},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, 40105},
		{"ok", "Bearer " + good, http.StatusOK, 0},
	}
	r := authRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/who", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decode(t, w).Code)
		})
	}
}

func TestOperatorRequired_Revoked(t *testing.T) {
	tok, err := utils.GenerateToken(secret, "ops", time.Hour)
	require.NoError(t, err)
	utils.RevokeToken(context.Background(), tok, time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/who", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	authRouter().ServeHTTP(w, req)
	assert.Equal(t, 40104, decode(t, w).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(4))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		statuses = append(statuses, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, statuses)
}

func TestLimiterSet_EvictsIdle(t *testing.T) {
	s := &limiterSet{limiters: map[string]*rateLimiter{}, limit: 1, burst: 1}
	now := time.Now()
	assert.True(t, s.allow("a", now))
	assert.True(t, s.allow("b", now.Add(limiterIdle+time.Second)))
	assert.Len(t, s.limiters, 1)
}

func TestGroupRequired(t *testing.T) {
	r := gin.New()
	r.GET("/groups/:group_id", GroupRequired(func(g int64) bool { return g == -100 }), func(c *gin.Context) {
		utils.Success(c, int64(GroupFrom(c)))
	})

	tests := []struct {
		path   string
		status int
		code   int
	}{
		{"/groups/-100", http.StatusOK, 0},
		{"/groups/-200", http.StatusNotFound, 40410},
		{"/groups/abc", http.StatusBadRequest, 40010},
		{"/groups/0", http.StatusBadRequest, 40010},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, tt.path)
		body := decode(t, w)
		assert.Equal(t, tt.code, body.Code, tt.path)
		if tt.code == 0 {
			assert.Equal(t, float64(-100), body.Data)
		}
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, "pong", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

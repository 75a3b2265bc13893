package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(NewRateLimiter(1, 2), NewSecurityLogger(nil)))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		origin  string
		allowed []string
		want    bool
	}{
		{"", nil, false},
		{"http://dash.local:3000", nil, true},
		{"http://dash.local:3000", []string{"http://dash.local:3000/"}, true},
		{"http://dash.local:3000", []string{"dash.local:3000"}, true},
		{"http://evil.example", []string{"http://dash.local:3000"}, false},
		{"http://evil.example", []string{"*"}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OriginAllowed(tt.origin, tt.allowed), "%s vs %v", tt.origin, tt.allowed)
	}
}

func TestAgentAuthMiddleware(t *testing.T) {
	auth, err := services.NewAuthService("0123456789abcdef0123456789abcdef", time.Hour, nil)
	require.NoError(t, err)
	token, _, err := auth.GenerateToken("web-1")
	require.NoError(t, err)

	r := gin.New()
	r.Use(AgentAuthMiddleware(auth, NewSecurityLogger(nil)))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextAgentID))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "web-1", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token[:len(token)-4]+"AAAA")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestValidAgentID(t *testing.T) {
	assert.True(t, ValidAgentID("web-1.prod_eu"))
	assert.False(t, ValidAgentID(""))
	assert.False(t, ValidAgentID("../etc/passwd"))
	assert.False(t, ValidAgentID("has space"))
}

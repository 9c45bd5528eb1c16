package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/placement-attendance-api/pkg/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func clientIPFor(t *testing.T, proxies []string, forwarded string) string {
	t.Helper()
	r, err := newRouter(&config.Config{TrustedProxies: proxies}, zap.NewNop(), nil)
	require.NoError(t, err)
	r.GET("/whoami", func(c *gin.Context) { c.String(http.StatusOK, c.ClientIP()) })

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.RemoteAddr = "203.0.113.9:41234"
	req.Header.Set("X-Forwarded-For", forwarded)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestRouterIgnoresForwardedForByDefault(t *testing.T) {
	assert.Equal(t, "203.0.113.9", clientIPFor(t, nil, "10.0.0.1"))
}

func TestRouterHonoursConfiguredProxy(t *testing.T) {
	assert.Equal(t, "10.0.0.1", clientIPFor(t, []string{"203.0.113.0/24"}, "10.0.0.1"))
}

func TestRouterRejectsInvalidProxy(t *testing.T) {
	_, err := newRouter(&config.Config{TrustedProxies: []string{"not-an-address"}}, zap.NewNop(), nil)
	assert.Error(t, err)
}

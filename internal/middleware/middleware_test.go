package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/placement-attendance-api/internal/models"
	appErrors "github.com/noah-isme/placement-attendance-api/pkg/errors"
	"github.com/noah-isme/placement-attendance-api/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

var tokens = validatorStub{
	"student": {UserID: "stu-1", Role: models.RoleStudent},
	"admin":   {UserID: "adm-1", Role: models.RoleAdmin},
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndRBAC(t *testing.T) {
	r := gin.New()
	var actor string
	r.GET("/students/:studentId/sessions", JWT(tokens), RBAC(string(models.RoleAdmin), SelfParam), func(c *gin.Context) {
		actor = c.GetString(logger.ActorKey)
		c.Status(http.StatusOK)
	})
	r.GET("/admin", JWT(tokens), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/admin", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/admin", "forged").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "student").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", "admin").Code)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/students/stu-1/sessions", "student").Code)
	assert.Equal(t, "stu-1", actor)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/students/stu-2/sessions", "student").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/students/stu-2/sessions", "admin").Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	r := gin.New()
	r.GET("/x", JWT(tokens), func(c *gin.Context) { c.Status(http.StatusOK) })
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Token admin")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid authorization header")
}

type counterStub struct {
	counts map[string]int64
	err    error
}

func (c *counterStub) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if c.err != nil {
		return 0, 0, c.err
	}
	c.counts[key]++
	return c.counts[key], 20 * time.Second, nil
}

func TestRateLimitPerCaller(t *testing.T) {
	counter := &counterStub{counts: map[string]int64{}}
	r := gin.New()
	r.POST("/mark", JWT(tokens), RateLimit(counter, "mark", 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/mark", "student").Code)
	second := serve(r, http.MethodPost, "/mark", "student")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	third := serve(r, http.MethodPost, "/mark", "student")
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	assert.Equal(t, "20", third.Header().Get("Retry-After"))
	assert.Contains(t, third.Body.String(), appErrors.ErrRateLimited.Code)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/mark", "admin").Code)
	assert.Equal(t, int64(3), counter.counts["placement:ratelimit:mark:stu-1"])
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.POST("/mark", RateLimit(&counterStub{err: errors.New("redis down")}, "mark", 1, time.Minute, nil), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/mark", "").Code)
	}
}

func TestResponseMetaAndCacheHit(t *testing.T) {
	r := gin.New()
	var meta map[string]interface{}
	r.GET("/report", WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	w := serve(r, http.MethodGet, "/report", "")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cacheHit"])
	assert.Contains(t, meta, "processingTimeMs")
}

func TestAuditLogsSuccessfulMutations(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.PUT("/sites/:id", JWT(tokens), Audit(zap.New(core), "update", "site"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.DELETE("/sites/:id", JWT(tokens), Audit(zap.New(core), "delete", "site"), func(c *gin.Context) {
		c.Status(http.StatusConflict)
	})

	serve(r, http.MethodPut, "/sites/site-1", "admin")
	serve(r, http.MethodDelete, "/sites/site-1", "admin")

	entries := logs.FilterMessage("audit").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "update", fields["action"])
	assert.Equal(t, "site-1", fields["resource_id"])
	assert.Equal(t, "adm-1", fields["actor_id"])
}

type requestLog []string

func (l *requestLog) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	*l = append(*l, method+" "+path+" "+http.StatusText(status))
}

func TestMetricsUsesRouteTemplates(t *testing.T) {
	var seen requestLog
	r := gin.New()
	r.Use(Metrics(&seen, "/health"))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/photos/:token", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodGet, "/health", "")
	serve(r, http.MethodGet, "/photos/abc.def", "")
	serve(r, http.MethodGet, "/nope/xyz", "")

	assert.Equal(t, requestLog{"GET /photos/:token OK", "GET unmatched Not Found"}, seen)
}

package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsmahammad/UniversityERP/internal/models"
	"github.com/itsmahammad/UniversityERP/internal/service"
	"github.com/itsmahammad/UniversityERP/pkg/response"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.JSON(http.StatusOK, gin.H{"role": claims.Role})
	})
	router.GET("/protected", handlers...)
	return router
}

func perform(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) response.Envelope {
	t.Helper()
	var env response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestJWTMiddleware(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher}}
	router := newRouter(JWT(validator))

	rec := perform(router, "Bearer abc.def.ghi")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc.def.ghi", validator.seen)

	for _, header := range []string{"", "Basic abc", "Bearer ", "token"} {
		rec := perform(router, header)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
	}
}

func TestJWTMiddlewareRejectsInvalidToken(t *testing.T) {
	router := newRouter(JWT(&stubValidator{err: errors.New("token is expired")}))

	rec := perform(router, "Bearer expired")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", decodeEnvelope(t, rec).Message)
}

func TestRequireAdmin(t *testing.T) {
	cases := map[models.UserRole]int{
		models.RoleSuperAdmin:    http.StatusOK,
		models.RoleAcademicAdmin: http.StatusOK,
		models.RoleHrAdmin:       http.StatusOK,
		models.RoleTeacher:       http.StatusForbidden,
		models.RoleStudent:       http.StatusForbidden,
	}
	for role, want := range cases {
		router := newRouter(JWT(&stubValidator{claims: &models.JWTClaims{UserID: "u", Role: role}}), RequireAdmin())
		assert.Equal(t, want, perform(router, "Bearer t").Code, "role %s", role)
	}
}

func TestRequireSuperAdmin(t *testing.T) {
	router := newRouter(JWT(&stubValidator{claims: &models.JWTClaims{UserID: "u", Role: models.RoleAcademicAdmin}}), RequireSuperAdmin())
	assert.Equal(t, http.StatusForbidden, perform(router, "Bearer t").Code)

	router = newRouter(JWT(&stubValidator{claims: &models.JWTClaims{UserID: "u", Role: models.RoleSuperAdmin}}), RequireSuperAdmin())
	assert.Equal(t, http.StatusOK, perform(router, "Bearer t").Code)
}

func TestRBACWithoutClaims(t *testing.T) {
	router := newRouter(RequireAdmin())
	assert.Equal(t, http.StatusUnauthorized, perform(router, "").Code)
}

func TestMetricsMiddlewareRecordsRoute(t *testing.T) {
	metrics := service.NewMetricsService()
	router := newRouter(Metrics(metrics), JWT(&stubValidator{claims: &models.JWTClaims{Role: models.RoleTeacher}}))

	perform(router, "Bearer t")
	perform(router, "")

	assert.Equal(t, 2, testutil.CollectAndCount(metrics.Registry(), "uerp_http_requests_total"))
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/cached", ResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		response.JSON(c, http.StatusOK, []string{}, nil, Meta(c))
	})
	router.GET("/plain", func(c *gin.Context) {
		assert.Nil(t, Meta(c))
		c.Status(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cached", nil))
	env := decodeEnvelope(t, rec)
	require.NotNil(t, env.Meta)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/plain", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMetricsMiddlewareBucketsUnknownPaths(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))

	for _, path := range []string{"/a", "/b", "/c/d"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(metrics.Registry(), "uerp_http_requests_total"))
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (v *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	v.seen = token
	return v.claims, v.err
}

func newProtectedRouter(tokens tokenValidator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/timetables", JWT(tokens), RequireRoles(roles...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func call(router *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/timetables", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAndRoles(t *testing.T) {
	admin := &validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin}}
	teacher := &validatorStub{claims: &models.JWTClaims{UserID: "u-2", Role: models.RoleTeacher}}
	rejecting := &validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}

	cases := []struct {
		name   string
		tokens *validatorStub
		header string
		status int
	}{
		{"missing header", admin, "", http.StatusUnauthorized},
		{"wrong scheme", admin, "Basic abc", http.StatusUnauthorized},
		{"empty token", admin, "Bearer  ", http.StatusUnauthorized},
		{"rejected token", rejecting, "Bearer abc", http.StatusUnauthorized},
		{"role not allowed", teacher, "Bearer abc", http.StatusForbidden},
		{"admin", admin, "bearer abc", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := call(newProtectedRouter(tc.tokens, models.RoleAdmin, models.RoleSuperAdmin), tc.header)
			assert.Equal(t, tc.status, w.Code)
		})
	}
	assert.Equal(t, "abc", admin.seen)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/timetables", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := call(router, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	metrics := service.NewMetricsService()
	router := gin.New()
	router.Use(Metrics(metrics))
	router.GET("/timetables/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/timetables/"+id, nil))
	}
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/timetables/:id",status="200"} 2`), body)
	assert.Contains(t, body, `path="unmatched"`)
}

package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/pmb-exam-scheduling/internal/config"
	"github.com/iliyamo/pmb-exam-scheduling/internal/handler"
	"github.com/iliyamo/pmb-exam-scheduling/internal/middleware"
	"github.com/iliyamo/pmb-exam-scheduling/internal/model"
	"github.com/iliyamo/pmb-exam-scheduling/internal/utils"
)

const secret = "router-test"

func newServer() *echo.Echo {
	e := echo.New()
	RegisterRoutes(e, nil)
	RegisterApplicant(e, &handler.ScheduleHandler{}, secret,
		middleware.NewRedisCache(config.CacheConfig{}, nil),
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil),
	)
	RegisterAdmin(e, &handler.AdminSlotHandler{}, &handler.AdminReferenceHandler{}, &handler.AdminApplicantHandler{}, secret)
	return e
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, 1, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestRoleScopes(t *testing.T) {
	e := newServer()
	cases := []struct {
		name, method, path, auth string
		want                     int
	}{
		{"no token on admin", http.MethodGet, "/v1/admin/slots", "", http.StatusUnauthorized},
		{"applicant on admin", http.MethodDelete, "/v1/admin/slots/1", bearer(t, model.RoleApplicant), http.StatusForbidden},
		{"admin on applicant", http.MethodPost, "/v1/applicant/slot", bearer(t, model.RoleAdmin), http.StatusForbidden},
		{"no token on applicant", http.MethodGet, "/v1/applicant/card", "", http.StatusUnauthorized},
		{"applicant on dashboard", http.MethodGet, "/v1/admin/dashboard", bearer(t, model.RoleApplicant), http.StatusForbidden},
		{"applicant on applicant list", http.MethodGet, "/v1/admin/slots/1/applicants", bearer(t, model.RoleApplicant), http.StatusForbidden},
		{"no token on room delete", http.MethodDelete, "/v1/admin/rooms/1", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.auth != "" {
				req.Header.Set(echo.HeaderAuthorization, tc.auth)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newServer()
	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

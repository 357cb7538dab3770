package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/complaint-api/internal/dto"
	"github.com/campusdesk/complaint-api/internal/middleware"
	"github.com/campusdesk/complaint-api/internal/models"
	"github.com/campusdesk/complaint-api/internal/service"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
)

type dashboardServiceMock struct {
	cacheHit bool
}

func (m *dashboardServiceMock) Admin(ctx context.Context, actor models.Actor) (*dto.AdminDashboardResponse, bool, error) {
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleSuperAdmin {
		return nil, false, appErrors.ErrForbidden
	}
	return &dto.AdminDashboardResponse{
		Stats:       models.ComplaintStats{Total: 7, Open: 3},
		GeneratedAt: time.Now().UTC(),
	}, m.cacheHit, nil
}

func (m *dashboardServiceMock) Overview(ctx context.Context, actor models.Actor) (*dto.OverviewResponse, bool, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, false, appErrors.ErrForbidden
	}
	return &dto.OverviewResponse{
		Stats:            models.ComplaintStats{Total: 7},
		SatisfactionRate: 90,
		GeneratedAt:      time.Now().UTC(),
	}, m.cacheHit, nil
}

func buildDashboardRouter(mock *dashboardServiceMock, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "test-user", Role: models.UserRole(role)})
		}
		c.Next()
	})
	router.Use(middleware.WithResponseMeta())

	h := NewDashboardHandler(mock, metrics)
	router.GET("/dashboard/admin", h.Admin)
	router.GET("/dashboard/overview", h.Overview)
	router.GET("/dashboard/system", h.System)
	return router
}

func dashboardRequest(router *gin.Engine, path, role string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if role != "" {
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDashboardAdminEndpoint(t *testing.T) {
	router := buildDashboardRouter(&dashboardServiceMock{cacheHit: true}, nil)

	resp := dashboardRequest(router, "/dashboard/admin", "admin")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"total":7`)
	require.Contains(t, resp.Body.String(), `"cache_hit":true`)
	require.Contains(t, resp.Body.String(), "processing_time_ms")
}

func TestDashboardAdminUnauthorized(t *testing.T) {
	router := buildDashboardRouter(&dashboardServiceMock{}, nil)

	resp := dashboardRequest(router, "/dashboard/admin", "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestDashboardAdminForbiddenForStudents(t *testing.T) {
	router := buildDashboardRouter(&dashboardServiceMock{}, nil)

	resp := dashboardRequest(router, "/dashboard/admin", "student")
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestDashboardOverviewEndpoint(t *testing.T) {
	router := buildDashboardRouter(&dashboardServiceMock{}, nil)

	resp := dashboardRequest(router, "/dashboard/overview", "superadmin")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), `"satisfaction_rate":90`)

	resp = dashboardRequest(router, "/dashboard/overview", "admin")
	require.Equal(t, http.StatusForbidden, resp.Code)
}

func TestDashboardSystemEndpoint(t *testing.T) {
	metrics := service.NewMetricsService()
	router := buildDashboardRouter(&dashboardServiceMock{}, metrics)

	resp := dashboardRequest(router, "/dashboard/system", "superadmin")
	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), "goroutines")

	resp = dashboardRequest(router, "/dashboard/system", "admin")
	require.Equal(t, http.StatusForbidden, resp.Code)
}

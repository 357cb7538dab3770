package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdesk/complaint-api/internal/models"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
)

type staticSnapshotter struct {
	snapshot []models.Complaint
	err      error
	calls    int
}

func (s *staticSnapshotter) Snapshot(ctx context.Context) ([]models.Complaint, error) {
	s.calls++
	return s.snapshot, s.err
}

type memoryCacheRepo struct {
	store map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	m.store[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.store = make(map[string][]byte)
	return nil
}

func dashboardSnapshot() []models.Complaint {
	rating := 4
	resolved := complaintWith("r1", models.StatusResolved, models.PriorityLow)
	resolved.FeedbackRating = &rating
	return []models.Complaint{
		complaintWith("o1", models.StatusOpen, models.PriorityLow),
		complaintWith("o2", models.StatusOpen, models.PriorityCritical),
		complaintWith("p1", models.StatusInProgress, models.PriorityHigh),
		resolved,
		complaintWith("x1", models.StatusRejected, models.PriorityMedium),
	}
}

func TestAdminDashboardComposition(t *testing.T) {
	src := &staticSnapshotter{snapshot: dashboardSnapshot()}
	svc := NewDashboardService(src, nil, nil, DashboardServiceConfig{})

	resp, cached, err := svc.Admin(context.Background(), adminActor)

	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 5, resp.Stats.Total)
	assert.Equal(t, 2, resp.Stats.Open)
	assert.Equal(t, 1, resp.Stats.Resolved)
	assert.InDelta(t, 20.0, resp.ResolutionRate, 0.001)
	// 1 resolved out of 4 non-rejected.
	assert.InDelta(t, 25.0, resp.GenuineRate, 0.001)
	require.Len(t, resp.Pending, 3)
	assert.Equal(t, "o2", resp.Pending[0].ID, "critical complaints lead the queue")
}

func TestAdminDashboardRequiresAdmin(t *testing.T) {
	svc := NewDashboardService(&staticSnapshotter{}, nil, nil, DashboardServiceConfig{})
	_, _, err := svc.Admin(context.Background(), student)
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestAdminDashboardUsesCache(t *testing.T) {
	src := &staticSnapshotter{snapshot: dashboardSnapshot()}
	cacheSvc := NewCacheService(&memoryCacheRepo{}, nil, time.Minute, nil, true)
	svc := NewDashboardService(src, cacheSvc, nil, DashboardServiceConfig{})

	_, cached, err := svc.Admin(context.Background(), adminActor)
	require.NoError(t, err)
	assert.False(t, cached)

	_, cached, err = svc.Admin(context.Background(), adminActor)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, src.calls, "snapshot is hit once while the cache is warm")

	require.NoError(t, svc.Invalidate(context.Background()))
	_, cached, err = svc.Admin(context.Background(), adminActor)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, src.calls)
}

func TestOverviewComposition(t *testing.T) {
	src := &staticSnapshotter{snapshot: dashboardSnapshot()}
	svc := NewDashboardService(src, nil, nil, DashboardServiceConfig{})

	resp, _, err := svc.Overview(context.Background(), superActor)

	require.NoError(t, err)
	assert.InDelta(t, 4.0, resp.AverageRating, 0.001)
	assert.InDelta(t, 80.0, resp.SatisfactionRate, 0.001)
	assert.NotEmpty(t, resp.Categories)
	require.Len(t, resp.RecentCritical, 1)
	assert.Equal(t, "o2", resp.RecentCritical[0].ID)
	require.Len(t, resp.RecentlyResolved, 1)
	assert.Equal(t, "r1", resp.RecentlyResolved[0].ID)
}

func TestOverviewSuperadminOnly(t *testing.T) {
	svc := NewDashboardService(&staticSnapshotter{}, nil, nil, DashboardServiceConfig{})
	_, _, err := svc.Overview(context.Background(), adminActor)
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestDashboardSnapshotError(t *testing.T) {
	svc := NewDashboardService(&staticSnapshotter{err: errors.New("db down")}, nil, nil, DashboardServiceConfig{})
	_, _, err := svc.Admin(context.Background(), adminActor)
	assertErrorCode(t, err, appErrors.ErrInternal.Code)
}

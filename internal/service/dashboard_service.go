package service

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/campusdesk/complaint-api/internal/dto"
	"github.com/campusdesk/complaint-api/internal/models"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
)

const (
	dashboardCachePattern = "dash:*"
	adminDashboardKey     = "dash:admin"
	overviewDashboardKey  = "dash:overview"
)

type complaintSnapshotter interface {
	Snapshot(ctx context.Context) ([]models.Complaint, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	PendingLimit int
	RecentLimit  int
}

// DashboardService composes derived dashboard payloads from the complaint
// snapshot. Every figure is recomputed on cache miss; nothing is stored.
type DashboardService struct {
	complaints complaintSnapshotter
	cache      *CacheService
	logger     *zap.Logger
	now        func() time.Time
	cfg        DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(complaints complaintSnapshotter, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.PendingLimit <= 0 {
		cfg.PendingLimit = 50
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{complaints: complaints, cache: cache, logger: logger, now: time.Now, cfg: cfg}
}

// Admin returns the admin dashboard and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context, actor models.Actor) (*dto.AdminDashboardResponse, bool, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		var cached dto.AdminDashboardResponse
		hit, err := s.cache.Get(ctx, adminDashboardKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	stats := AggregateStats(snapshot)

	pending := PendingForAdmin(snapshot)
	if len(pending) > s.cfg.PendingLimit {
		pending = pending[:s.cfg.PendingLimit]
	}
	summaries := make([]dto.ComplaintSummary, 0, len(pending))
	for i := range pending {
		summaries = append(summaries, summarizeComplaint(&pending[i], actor))
	}

	resp := &dto.AdminDashboardResponse{
		Stats:          stats,
		ResolutionRate: ResolutionRate(stats),
		GenuineRate:    GenuineRate(stats),
		Pending:        summaries,
		GeneratedAt:    s.now().UTC(),
	}
	s.persistCache(ctx, adminDashboardKey, resp)
	return resp, false, nil
}

// Overview returns the system-wide dashboard and indicates cache utilisation.
func (s *DashboardService) Overview(ctx context.Context, actor models.Actor) (*dto.OverviewResponse, bool, error) {
	if actor.Role != models.RoleSuperAdmin {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "superadmin role required")
	}
	if s.cache != nil {
		var cached dto.OverviewResponse
		hit, err := s.cache.Get(ctx, overviewDashboardKey, &cached)
		if err != nil {
			return nil, false, err
		}
		if hit {
			return &cached, true, nil
		}
	}

	snapshot, err := s.snapshot(ctx)
	if err != nil {
		return nil, false, err
	}
	stats := AggregateStats(snapshot)
	avgRating := AverageRating(snapshot)

	resp := &dto.OverviewResponse{
		Stats:          stats,
		ResolutionRate: ResolutionRate(stats),
		GenuineRate:    GenuineRate(stats),
		// A 5-star average maps onto a 100-point satisfaction scale.
		SatisfactionRate: avgRating * 20,
		AverageRating:    avgRating,
		Categories:       CategoryDistribution(snapshot),
		RecentCritical:   s.recent(snapshot, actor, func(c *models.Complaint) bool { return c.Priority == models.PriorityCritical && !c.Status.IsTerminal() }),
		RecentlyResolved: s.recent(snapshot, actor, func(c *models.Complaint) bool { return c.Status == models.StatusResolved }),
		GeneratedAt:      s.now().UTC(),
	}
	s.persistCache(ctx, overviewDashboardKey, resp)
	return resp, false, nil
}

// Invalidate flushes all cached dashboard payloads.
func (s *DashboardService) Invalidate(ctx context.Context) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, dashboardCachePattern)
}

func (s *DashboardService) snapshot(ctx context.Context) ([]models.Complaint, error) {
	snapshot, err := s.complaints.Snapshot(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint snapshot")
	}
	return snapshot, nil
}

// recent picks the newest matching complaints, newest first.
func (s *DashboardService) recent(snapshot []models.Complaint, actor models.Actor, match func(*models.Complaint) bool) []dto.ComplaintSummary {
	picked := make([]models.Complaint, 0)
	for i := range snapshot {
		if match(&snapshot[i]) {
			picked = append(picked, snapshot[i])
		}
	}
	sort.SliceStable(picked, func(i, j int) bool {
		return picked[i].CreatedAt.After(picked[j].CreatedAt)
	})
	if len(picked) > s.cfg.RecentLimit {
		picked = picked[:s.cfg.RecentLimit]
	}
	summaries := make([]dto.ComplaintSummary, 0, len(picked))
	for i := range picked {
		summaries = append(summaries, summarizeComplaint(&picked[i], actor))
	}
	return summaries
}

func (s *DashboardService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil && s.logger != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}

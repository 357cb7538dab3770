package dto

import (
	"time"

	"github.com/campusdesk/complaint-api/internal/models"
)

// AdminDashboardResponse backs the admin landing page: status counts plus the
// triage queue of open and in-progress complaints in priority order.
type AdminDashboardResponse struct {
	Stats          models.ComplaintStats `json:"stats"`
	ResolutionRate float64               `json:"resolution_rate"`
	GenuineRate    float64               `json:"genuine_rate"`
	Pending        []ComplaintSummary    `json:"pending"`
	GeneratedAt    time.Time             `json:"generated_at"`
}

// OverviewResponse backs the superadmin dashboard: system-wide stats,
// category distribution, satisfaction and recent activity.
type OverviewResponse struct {
	Stats            models.ComplaintStats  `json:"stats"`
	ResolutionRate   float64                `json:"resolution_rate"`
	GenuineRate      float64                `json:"genuine_rate"`
	SatisfactionRate float64                `json:"satisfaction_rate"`
	AverageRating    float64                `json:"average_rating"`
	Categories       []models.CategoryCount `json:"categories"`
	RecentCritical   []ComplaintSummary     `json:"recent_critical"`
	RecentlyResolved []ComplaintSummary     `json:"recently_resolved"`
	GeneratedAt      time.Time              `json:"generated_at"`
}

package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campusdesk/complaint-api/internal/models"
)

func complaintWith(id string, status models.Status, priority models.Priority) models.Complaint {
	return models.Complaint{
		ID:            id,
		Title:         "t-" + id,
		Category:      "Hostel",
		Priority:      priority,
		Status:        status,
		SubmittedByID: "student-1",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestAggregateStats(t *testing.T) {
	snapshot := []models.Complaint{
		complaintWith("a", models.StatusOpen, models.PriorityCritical),
		complaintWith("b", models.StatusInProgress, models.PriorityHigh),
		complaintWith("c", models.StatusResolved, models.PriorityLow),
		complaintWith("d", models.StatusResolved, models.PriorityCritical),
		complaintWith("e", models.StatusRejected, models.PriorityMedium),
		complaintWith("f", models.StatusClosed, models.PriorityLow),
		complaintWith("g", models.StatusEscalated, models.PriorityHigh),
	}

	stats := AggregateStats(snapshot)

	assert.Equal(t, 7, stats.Total)
	assert.Equal(t, 1, stats.Open)
	assert.Equal(t, 1, stats.InProgress)
	assert.Equal(t, 2, stats.Resolved)
	assert.Equal(t, 1, stats.Closed)
	assert.Equal(t, 1, stats.Escalated)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 2, stats.Critical)
}

func TestGenuineRateExcludesRejected(t *testing.T) {
	stats := models.ComplaintStats{Total: 10, Resolved: 4, Rejected: 2}
	assert.InDelta(t, 50.0, GenuineRate(stats), 0.001)
}

func TestGenuineRateZeroDenominator(t *testing.T) {
	assert.Zero(t, GenuineRate(models.ComplaintStats{}))
	assert.Zero(t, GenuineRate(models.ComplaintStats{Total: 3, Rejected: 3}))
}

func TestResolutionRate(t *testing.T) {
	assert.InDelta(t, 25.0, ResolutionRate(models.ComplaintStats{Total: 8, Resolved: 2}), 0.001)
	assert.Zero(t, ResolutionRate(models.ComplaintStats{}))
}

func TestSubmitterCredibilitySkipsAnonymous(t *testing.T) {
	anon := complaintWith("x", models.StatusResolved, models.PriorityLow)
	anon.Anonymous = true
	other := complaintWith("y", models.StatusResolved, models.PriorityLow)
	other.SubmittedByID = "student-2"
	snapshot := []models.Complaint{
		complaintWith("a", models.StatusResolved, models.PriorityLow),
		complaintWith("b", models.StatusRejected, models.PriorityLow),
		complaintWith("c", models.StatusOpen, models.PriorityLow),
		anon,
		other,
	}

	cred := SubmitterCredibility("student-1", snapshot)

	assert.Equal(t, 3, cred.Total)
	assert.Equal(t, 1, cred.Genuine)
	assert.Equal(t, 1, cred.Rejected)
	assert.InDelta(t, 50.0, cred.PercentGenuine, 0.001)
}

func TestSubmitterCredibilityNoDecided(t *testing.T) {
	snapshot := []models.Complaint{complaintWith("a", models.StatusOpen, models.PriorityLow)}
	cred := SubmitterCredibility("student-1", snapshot)
	assert.Equal(t, 1, cred.Total)
	assert.Zero(t, cred.PercentGenuine)
}

func TestPendingForAdminOrdersByPriorityStable(t *testing.T) {
	snapshot := []models.Complaint{
		complaintWith("low-1", models.StatusOpen, models.PriorityLow),
		complaintWith("crit-1", models.StatusInProgress, models.PriorityCritical),
		complaintWith("resolved", models.StatusResolved, models.PriorityCritical),
		complaintWith("high-1", models.StatusOpen, models.PriorityHigh),
		complaintWith("crit-2", models.StatusOpen, models.PriorityCritical),
		complaintWith("high-2", models.StatusInProgress, models.PriorityHigh),
	}

	pending := PendingForAdmin(snapshot)

	ids := make([]string, 0, len(pending))
	for _, c := range pending {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"crit-1", "crit-2", "high-1", "high-2", "low-1"}, ids)
}

func TestCategoryDistribution(t *testing.T) {
	categorized := func(id, category string) models.Complaint {
		c := complaintWith(id, models.StatusOpen, models.PriorityLow)
		c.Category = category
		return c
	}
	snapshot := []models.Complaint{
		categorized("a", "Hostel"),
		categorized("b", "Cafeteria"),
		categorized("c", "Cafeteria"),
		categorized("d", "Academic"),
		categorized("e", "Hostel"),
		categorized("f", "Transportation"),
	}

	dist := CategoryDistribution(snapshot)

	assert.Equal(t, "Hostel", dist[0].Category)
	assert.Equal(t, 2, dist[0].Count)
	assert.Equal(t, "Cafeteria", dist[1].Category)
	assert.Equal(t, 2, dist[1].Count)
	assert.Equal(t, "Academic", dist[2].Category)
	assert.Equal(t, "Transportation", dist[3].Category)
}

func TestAverageRating(t *testing.T) {
	rated := func(id string, rating int) models.Complaint {
		c := complaintWith(id, models.StatusResolved, models.PriorityLow)
		c.FeedbackRating = &rating
		return c
	}
	snapshot := []models.Complaint{
		rated("a", 5),
		rated("b", 3),
		complaintWith("c", models.StatusResolved, models.PriorityLow),
	}

	assert.InDelta(t, 4.0, AverageRating(snapshot), 0.001)
	assert.Zero(t, AverageRating(nil))
}

package service

import (
	"sort"

	"github.com/campusdesk/complaint-api/internal/models"
)

// The derivation layer is pure: every function takes a complaint snapshot and
// computes without mutating it, so results are re-computable on each call.

// AggregateStats partitions the snapshot by status and counts critical
// priority complaints.
func AggregateStats(complaints []models.Complaint) models.ComplaintStats {
	stats := models.ComplaintStats{Total: len(complaints)}
	for i := range complaints {
		switch complaints[i].Status {
		case models.StatusOpen:
			stats.Open++
		case models.StatusInProgress:
			stats.InProgress++
		case models.StatusResolved:
			stats.Resolved++
		case models.StatusClosed:
			stats.Closed++
		case models.StatusEscalated:
			stats.Escalated++
		case models.StatusRejected:
			stats.Rejected++
		}
		if complaints[i].Priority == models.PriorityCritical {
			stats.Critical++
		}
	}
	return stats
}

// GenuineRate is the share of resolved complaints among non-rejected ones,
// as a percentage. Zero when the denominator is zero.
func GenuineRate(stats models.ComplaintStats) float64 {
	denom := stats.Total - stats.Rejected
	if denom <= 0 {
		return 0
	}
	return float64(stats.Resolved) / float64(denom) * 100
}

// ResolutionRate is resolved over total, as a percentage.
func ResolutionRate(stats models.ComplaintStats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Resolved) / float64(stats.Total) * 100
}

// SubmitterCredibility derives the genuine-vs-rejected ratio over one
// submitter's non-anonymous complaints. PercentGenuine considers only
// decided complaints (resolved or rejected).
func SubmitterCredibility(userID string, complaints []models.Complaint) models.SubmitterCredibility {
	var cred models.SubmitterCredibility
	for i := range complaints {
		c := &complaints[i]
		if c.SubmittedByID != userID || c.Anonymous {
			continue
		}
		cred.Total++
		switch c.Status {
		case models.StatusResolved:
			cred.Genuine++
		case models.StatusRejected:
			cred.Rejected++
		}
	}
	if decided := cred.Genuine + cred.Rejected; decided > 0 {
		cred.PercentGenuine = float64(cred.Genuine) / float64(decided) * 100
	}
	return cred
}

// PendingForAdmin returns the triage queue: open and in-progress complaints
// ordered Critical first. The sort is stable so equal priorities keep their
// snapshot order.
func PendingForAdmin(complaints []models.Complaint) []models.Complaint {
	pending := make([]models.Complaint, 0)
	for i := range complaints {
		if complaints[i].Status == models.StatusOpen || complaints[i].Status == models.StatusInProgress {
			pending = append(pending, complaints[i])
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Priority.Rank() < pending[j].Priority.Rank()
	})
	return pending
}

// CategoryDistribution counts complaints per category, sorted descending by
// count with first-seen category order breaking ties.
func CategoryDistribution(complaints []models.Complaint) []models.CategoryCount {
	counts := make(map[string]int)
	order := make([]string, 0)
	for i := range complaints {
		category := complaints[i].Category
		if _, seen := counts[category]; !seen {
			order = append(order, category)
		}
		counts[category]++
	}

	result := make([]models.CategoryCount, 0, len(order))
	for _, category := range order {
		result = append(result, models.CategoryCount{Category: category, Count: counts[category]})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	return result
}

// AverageRating is the mean feedback rating across rated complaints, zero
// when none are rated.
func AverageRating(complaints []models.Complaint) float64 {
	var sum, count int
	for i := range complaints {
		if complaints[i].FeedbackRating != nil {
			sum += *complaints[i].FeedbackRating
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return float64(sum) / float64(count)
}

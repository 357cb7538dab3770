package models

import "time"

// ComplaintStats partitions a complaint snapshot by status, plus the count of
// critical-priority complaints.
type ComplaintStats struct {
	Total      int `json:"total"`
	Open       int `json:"open"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
	Escalated  int `json:"escalated"`
	Rejected   int `json:"rejected"`
	Critical   int `json:"critical"`
}

// SubmitterCredibility is the derived genuine-vs-rejected ratio for one
// submitter's non-anonymous complaints, used to inform admin triage.
type SubmitterCredibility struct {
	Total          int     `json:"total"`
	Genuine        int     `json:"genuine"`
	Rejected       int     `json:"rejected"`
	PercentGenuine float64 `json:"percent_genuine"`
}

// CategoryCount pairs a category with its complaint count.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SystemMetrics is an in-process runtime snapshot for the operations panel.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}

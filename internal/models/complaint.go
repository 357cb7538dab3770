package models

import "time"

// Status enumerates the complaint lifecycle states. The wire strings match the
// values the frontend renders, including the space in "In Progress".
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "In Progress"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
	StatusEscalated  Status = "Escalated"
	StatusRejected   Status = "Rejected"
)

// IsTerminal reports whether no further workflow transition is permitted.
// Feedback is the only write accepted on a terminal complaint, and only on
// Resolved.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed || s == StatusRejected
}

// IsValid reports whether s is one of the six enumerated states.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusEscalated, StatusRejected:
		return true
	}
	return false
}

// allowedTransitions is the directed status graph. Terminal states have no
// outgoing edges.
var allowedTransitions = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusResolved, StatusClosed, StatusEscalated, StatusRejected},
	StatusInProgress: {StatusResolved, StatusClosed, StatusEscalated, StatusRejected},
	StatusEscalated:  {StatusInProgress, StatusResolved, StatusClosed, StatusRejected},
}

// CanTransition reports whether the status graph contains the edge from -> to.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority is an orthogonal complaint attribute; it never gates transitions.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Rank orders priorities for triage queues: Critical first, Low last.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	}
	return 4
}

// IsValid reports whether p is one of the four priority levels.
func (p Priority) IsValid() bool {
	return p.Rank() < 4
}

// Categories is the fixed complaint category set.
var Categories = []string{
	"Infrastructure",
	"Cafeteria",
	"Library",
	"Transportation",
	"Academic",
	"Hostel",
	"Administrative",
	"Other",
}

// IsValidCategory reports whether the category belongs to the fixed set.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Complaint is the core record tracked from submission to resolution,
// rejection or closure. Version guards the optimistic load-mutate-save cycle:
// every lifecycle mutation bumps it, and a stale writer loses with a conflict.
type Complaint struct {
	ID              string     `db:"id" json:"id"`
	Title           string     `db:"title" json:"title"`
	Description     string     `db:"description" json:"description"`
	Category        string     `db:"category" json:"category"`
	Priority        Priority   `db:"priority" json:"priority"`
	Status          Status     `db:"status" json:"status"`
	Anonymous       bool       `db:"anonymous" json:"anonymous"`
	SubmittedByID   string     `db:"submitted_by" json:"-"`
	AssignedToID    *string    `db:"assigned_to" json:"-"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	FeedbackRating  *int       `db:"feedback_rating" json:"-"`
	FeedbackComment *string    `db:"feedback_comment" json:"-"`
	FeedbackAt      *time.Time `db:"feedback_at" json:"-"`
	Version         int64      `db:"version" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`

	// Joined columns, populated by list/detail queries.
	SubmitterName      string  `db:"submitter_name" json:"-"`
	SubmitterEmail     string  `db:"submitter_email" json:"-"`
	AssigneeName       *string `db:"assignee_name" json:"-"`
	AssigneeDepartment *string `db:"assignee_department" json:"-"`
}

// Feedback returns the one-time resolution rating when set.
func (c *Complaint) Feedback() *Feedback {
	if c.FeedbackRating == nil {
		return nil
	}
	fb := Feedback{Rating: *c.FeedbackRating}
	if c.FeedbackComment != nil {
		fb.Comment = *c.FeedbackComment
	}
	if c.FeedbackAt != nil {
		fb.SubmittedAt = *c.FeedbackAt
	}
	return &fb
}

// Feedback is the submitter's one-time rating of the resolution.
type Feedback struct {
	Rating      int       `json:"rating"`
	Comment     string    `json:"comment,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// StatusHistoryEntry records one status change. Immutable once appended.
type StatusHistoryEntry struct {
	ID            string    `db:"id" json:"id"`
	ComplaintID   string    `db:"complaint_id" json:"-"`
	Status        Status    `db:"status" json:"status"`
	Comment       string    `db:"comment" json:"comment,omitempty"`
	UpdatedByID   string    `db:"updated_by" json:"updated_by_id"`
	UpdatedByName string    `db:"updated_by_name" json:"updated_by_name"`
	CreatedAt     time.Time `db:"created_at" json:"timestamp"`
}

// AssignmentEntry records one assignment. The complaint's current assignee is
// always the target of the last entry.
type AssignmentEntry struct {
	ID             string    `db:"id" json:"id"`
	ComplaintID    string    `db:"complaint_id" json:"-"`
	AssignedToID   string    `db:"assigned_to" json:"assigned_to_id"`
	AssignedToName string    `db:"assigned_to_name" json:"assigned_to_name"`
	AssignedByID   string    `db:"assigned_by" json:"assigned_by_id"`
	AssignedByName string    `db:"assigned_by_name" json:"assigned_by_name"`
	Department     string    `db:"department" json:"department,omitempty"`
	Note           string    `db:"note" json:"note,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"timestamp"`
}

// InfoRequest is an admin question to the submitter. Answered flips to true
// exactly when a matching InfoSubmission is recorded.
type InfoRequest struct {
	ID              string    `db:"id" json:"id"`
	ComplaintID     string    `db:"complaint_id" json:"-"`
	Question        string    `db:"question" json:"question"`
	RequestedByID   string    `db:"requested_by" json:"requested_by_id"`
	RequestedByName string    `db:"requested_by_name" json:"requested_by_name"`
	Answered        bool      `db:"answered" json:"answered"`
	CreatedAt       time.Time `db:"created_at" json:"timestamp"`
}

// InfoSubmission is the submitter's answer to the most recent unanswered
// InfoRequest at submission time.
type InfoSubmission struct {
	ID            string    `db:"id" json:"id"`
	ComplaintID   string    `db:"complaint_id" json:"-"`
	RequestID     string    `db:"request_id" json:"request_id"`
	Response      string    `db:"response" json:"response"`
	SubmittedByID string    `db:"submitted_by" json:"submitted_by_id"`
	CreatedAt     time.Time `db:"created_at" json:"timestamp"`
}

// AdminReply is a free-form admin message on the complaint thread.
type AdminReply struct {
	ID          string    `db:"id" json:"id"`
	ComplaintID string    `db:"complaint_id" json:"-"`
	AdminID     string    `db:"admin_id" json:"admin_id"`
	AdminName   string    `db:"admin_name" json:"admin_name"`
	Message     string    `db:"message" json:"message"`
	CreatedAt   time.Time `db:"created_at" json:"timestamp"`
}

// Attachment references a stored file by relative path and MIME type.
// SubmissionID is set when the file arrived with an info submission.
type Attachment struct {
	ID           string    `db:"id" json:"id"`
	ComplaintID  string    `db:"complaint_id" json:"-"`
	SubmissionID *string   `db:"submission_id" json:"submission_id,omitempty"`
	Name         string    `db:"name" json:"name"`
	Path         string    `db:"path" json:"-"`
	MIMEType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// ComplaintFilter captures filtering criteria for listing complaints.
type ComplaintFilter struct {
	Status      string
	Category    string
	Priority    string
	SubmittedBy string
	Page        int
	PageSize    int
}

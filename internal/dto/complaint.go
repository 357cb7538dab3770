package dto

import (
	"time"

	"github.com/campusdesk/complaint-api/internal/models"
)

// AttachmentView decorates an attachment with a signed download token.
type AttachmentView struct {
	models.Attachment
	DownloadToken string    `json:"download_token,omitempty"`
	TokenExpires  time.Time `json:"token_expires,omitempty"`
}

// ComplaintDetail is the full complaint payload returned by detail and
// mutation endpoints. Submitter is nil when the complaint is anonymous and
// the reader is neither the owner nor an admin.
type ComplaintDetail struct {
	ID                 string                       `json:"id"`
	Title              string                       `json:"title"`
	Description        string                       `json:"description"`
	Category           string                       `json:"category"`
	Priority           models.Priority              `json:"priority"`
	Status             models.Status                `json:"status"`
	Anonymous          bool                         `json:"anonymous"`
	Submitter          *models.UserRef              `json:"submitted_by,omitempty"`
	Assignee           *models.UserRef              `json:"assigned_to,omitempty"`
	RejectionReason    string                       `json:"rejection_reason,omitempty"`
	Feedback           *models.Feedback             `json:"feedback,omitempty"`
	PendingInfoRequest bool                         `json:"pending_info_request"`
	StatusHistory      []models.StatusHistoryEntry  `json:"status_history"`
	AssignmentHistory  []models.AssignmentEntry     `json:"assignment_history"`
	InfoRequests       []models.InfoRequest         `json:"additional_info_requests"`
	InfoSubmissions    []models.InfoSubmission      `json:"additional_info_submissions"`
	AdminReplies       []models.AdminReply          `json:"admin_replies"`
	Attachments        []AttachmentView             `json:"attachments"`
	Credibility        *models.SubmitterCredibility `json:"submitter_credibility,omitempty"`
	CreatedAt          time.Time                    `json:"created_at"`
	UpdatedAt          time.Time                    `json:"updated_at"`
}

// ComplaintSummary is the trimmed list-view projection.
type ComplaintSummary struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Category  string          `json:"category"`
	Priority  models.Priority `json:"priority"`
	Status    models.Status   `json:"status"`
	Anonymous bool            `json:"anonymous"`
	Submitter *models.UserRef `json:"submitted_by,omitempty"`
	Assignee  *models.UserRef `json:"assigned_to,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

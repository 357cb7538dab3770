package models

import "time"

// Audit actions recorded for traceability.
const (
	AuditActionLogin           = "auth.login"
	AuditActionRegister        = "auth.register"
	AuditActionComplaintCreate = "complaint.create"
	AuditActionStatusUpdate    = "complaint.status"
	AuditActionPriorityUpdate  = "complaint.priority"
	AuditActionAssign          = "complaint.assign"
	AuditActionReject          = "complaint.reject"
	AuditActionRequestInfo     = "complaint.request_info"
	AuditActionSubmitInfo      = "complaint.submit_info"
	AuditActionReply           = "complaint.reply"
	AuditActionFeedback        = "complaint.feedback"
	AuditActionDelete          = "complaint.delete"
)

// AuditLog captures who did what to which resource.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent  string    `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

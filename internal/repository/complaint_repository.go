package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusdesk/complaint-api/internal/models"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
)

// ComplaintRepository manages persistence for complaints and their append-only
// side records. Every lifecycle mutation runs in one transaction guarded by an
// optimistic version check on the complaint row, so concurrent writers on the
// same complaint serialize: the loser sees zero affected rows and gets a
// Conflict instead of silently overwriting.
type ComplaintRepository struct {
	db *sqlx.DB
}

// NewComplaintRepository constructs a ComplaintRepository.
func NewComplaintRepository(db *sqlx.DB) *ComplaintRepository {
	return &ComplaintRepository{db: db}
}

const complaintSelect = `SELECT c.id, c.title, c.description, c.category, c.priority, c.status, c.anonymous,
        c.submitted_by, c.assigned_to, c.rejection_reason, c.feedback_rating, c.feedback_comment, c.feedback_at,
        c.version, c.created_at, c.updated_at,
        u.full_name AS submitter_name, u.email AS submitter_email,
        a.full_name AS assignee_name, a.department AS assignee_department
        FROM complaints c
        JOIN users u ON u.id = c.submitted_by
        LEFT JOIN users a ON a.id = c.assigned_to`

// Create inserts a new complaint with its initial attachments.
func (r *ComplaintRepository) Create(ctx context.Context, complaint *models.Complaint, attachments []models.Attachment) error {
	if complaint.ID == "" {
		complaint.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	complaint.Version = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create complaint: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO complaints (id, title, description, category, priority, status, anonymous, submitted_by, version, created_at, updated_at)
        VALUES (:id, :title, :description, :category, :priority, :status, :anonymous, :submitted_by, :version, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, complaint); err != nil {
		return fmt.Errorf("create complaint: %w", err)
	}

	for i := range attachments {
		if err := insertAttachment(ctx, tx, complaint.ID, &attachments[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create complaint: %w", err)
	}
	return nil
}

// FindByID fetches one complaint row with joined submitter/assignee columns.
func (r *ComplaintRepository) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	var complaint models.Complaint
	if err := r.db.GetContext(ctx, &complaint, complaintSelect+" WHERE c.id = $1", id); err != nil {
		return nil, err
	}
	return &complaint, nil
}

// List returns complaints matching the filter plus the total count.
func (r *ComplaintRepository) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("c.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Priority != "" {
		conditions = append(conditions, fmt.Sprintf("c.priority = $%d", len(args)+1))
		args = append(args, filter.Priority)
	}
	if filter.SubmittedBy != "" {
		conditions = append(conditions, fmt.Sprintf("c.submitted_by = $%d", len(args)+1))
		args = append(args, filter.SubmittedBy)
	}

	where := strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("%s WHERE %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d", complaintSelect, where, size, offset)
	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list complaints: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM complaints c WHERE %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count complaints: %w", err)
	}
	return complaints, total, nil
}

// Snapshot returns every complaint in creation order. The derivation layer
// recomputes its aggregates from this on each call.
func (r *ComplaintRepository) Snapshot(ctx context.Context) ([]models.Complaint, error) {
	var complaints []models.Complaint
	if err := r.db.SelectContext(ctx, &complaints, complaintSelect+" ORDER BY c.created_at ASC"); err != nil {
		return nil, fmt.Errorf("snapshot complaints: %w", err)
	}
	return complaints, nil
}

// StatusHistory returns the append-only status trail, oldest first.
func (r *ComplaintRepository) StatusHistory(ctx context.Context, complaintID string) ([]models.StatusHistoryEntry, error) {
	const query = `SELECT h.id, h.complaint_id, h.status, h.comment, h.updated_by, u.full_name AS updated_by_name, h.created_at
        FROM complaint_status_history h JOIN users u ON u.id = h.updated_by
        WHERE h.complaint_id = $1 ORDER BY h.created_at ASC`
	var entries []models.StatusHistoryEntry
	if err := r.db.SelectContext(ctx, &entries, query, complaintID); err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return entries, nil
}

// Assignments returns the assignment trail, oldest first.
func (r *ComplaintRepository) Assignments(ctx context.Context, complaintID string) ([]models.AssignmentEntry, error) {
	const query = `SELECT h.id, h.complaint_id, h.assigned_to, t.full_name AS assigned_to_name,
        h.assigned_by, b.full_name AS assigned_by_name, h.department, h.note, h.created_at
        FROM complaint_assignments h
        JOIN users t ON t.id = h.assigned_to
        JOIN users b ON b.id = h.assigned_by
        WHERE h.complaint_id = $1 ORDER BY h.created_at ASC`
	var entries []models.AssignmentEntry
	if err := r.db.SelectContext(ctx, &entries, query, complaintID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return entries, nil
}

// InfoRequests returns the info-request thread questions, oldest first.
func (r *ComplaintRepository) InfoRequests(ctx context.Context, complaintID string) ([]models.InfoRequest, error) {
	const query = `SELECT q.id, q.complaint_id, q.question, q.requested_by, u.full_name AS requested_by_name, q.answered, q.created_at
        FROM complaint_info_requests q JOIN users u ON u.id = q.requested_by
        WHERE q.complaint_id = $1 ORDER BY q.created_at ASC`
	var requests []models.InfoRequest
	if err := r.db.SelectContext(ctx, &requests, query, complaintID); err != nil {
		return nil, fmt.Errorf("list info requests: %w", err)
	}
	return requests, nil
}

// InfoSubmissions returns the info-request thread answers, oldest first.
func (r *ComplaintRepository) InfoSubmissions(ctx context.Context, complaintID string) ([]models.InfoSubmission, error) {
	const query = `SELECT id, complaint_id, request_id, response, submitted_by, created_at
        FROM complaint_info_submissions WHERE complaint_id = $1 ORDER BY created_at ASC`
	var submissions []models.InfoSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, complaintID); err != nil {
		return nil, fmt.Errorf("list info submissions: %w", err)
	}
	return submissions, nil
}

// AdminReplies returns admin thread messages, oldest first.
func (r *ComplaintRepository) AdminReplies(ctx context.Context, complaintID string) ([]models.AdminReply, error) {
	const query = `SELECT m.id, m.complaint_id, m.admin_id, u.full_name AS admin_name, m.message, m.created_at
        FROM complaint_admin_replies m JOIN users u ON u.id = m.admin_id
        WHERE m.complaint_id = $1 ORDER BY m.created_at ASC`
	var replies []models.AdminReply
	if err := r.db.SelectContext(ctx, &replies, query, complaintID); err != nil {
		return nil, fmt.Errorf("list admin replies: %w", err)
	}
	return replies, nil
}

// Attachments returns complaint attachments, oldest first.
func (r *ComplaintRepository) Attachments(ctx context.Context, complaintID string) ([]models.Attachment, error) {
	const query = `SELECT id, complaint_id, submission_id, name, path, mime_type, size_bytes, created_at
        FROM complaint_attachments WHERE complaint_id = $1 ORDER BY created_at ASC`
	var attachments []models.Attachment
	if err := r.db.SelectContext(ctx, &attachments, query, complaintID); err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	return attachments, nil
}

// StatusUpdateParams carries one versioned status transition.
type StatusUpdateParams struct {
	ComplaintID     string
	Version         int64
	Status          models.Status
	Priority        *models.Priority
	RejectionReason *string
	History         models.StatusHistoryEntry
}

// UpdateStatus applies a status transition and appends the history entry.
func (r *ComplaintRepository) UpdateStatus(ctx context.Context, p StatusUpdateParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin status update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE complaints SET status = $1, priority = COALESCE($2, priority), rejection_reason = COALESCE($3, rejection_reason),
         version = version + 1, updated_at = $4 WHERE id = $5 AND version = $6`,
		p.Status, p.Priority, p.RejectionReason, time.Now().UTC(), p.ComplaintID, p.Version)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if err := r.ensureApplied(ctx, tx, res, p.ComplaintID); err != nil {
		return err
	}

	if err := insertStatusHistory(ctx, tx, p.ComplaintID, &p.History); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status update: %w", err)
	}
	return nil
}

// UpdatePriority changes the priority only. No history entry: priority is an
// orthogonal attribute without a state machine of its own.
func (r *ComplaintRepository) UpdatePriority(ctx context.Context, complaintID string, version int64, priority models.Priority) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE complaints SET priority = $1, version = version + 1, updated_at = $2 WHERE id = $3 AND version = $4`,
		priority, time.Now().UTC(), complaintID, version)
	if err != nil {
		return fmt.Errorf("update priority: %w", err)
	}
	return r.ensureAppliedDB(ctx, res, complaintID)
}

// AssignParams carries one versioned assignment. Status, when set, moves the
// complaint under the same version guard so the assignment and its transition
// commit or fail together.
type AssignParams struct {
	ComplaintID   string
	Version       int64
	AssignedTo    string
	Status        *models.Status
	StatusHistory *models.StatusHistoryEntry
	History       models.AssignmentEntry
}

// Assign sets the current assignee and appends the assignment entry.
func (r *ComplaintRepository) Assign(ctx context.Context, p AssignParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assign: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE complaints SET assigned_to = $1, status = COALESCE($2, status), version = version + 1, updated_at = $3 WHERE id = $4 AND version = $5`,
		p.AssignedTo, p.Status, time.Now().UTC(), p.ComplaintID, p.Version)
	if err != nil {
		return fmt.Errorf("assign complaint: %w", err)
	}
	if err := r.ensureApplied(ctx, tx, res, p.ComplaintID); err != nil {
		return err
	}

	h := &p.History
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	h.ComplaintID = p.ComplaintID
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO complaint_assignments (id, complaint_id, assigned_to, assigned_by, department, note, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.ComplaintID, h.AssignedToID, h.AssignedByID, h.Department, h.Note, h.CreatedAt); err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}

	if p.StatusHistory != nil {
		if err := insertStatusHistory(ctx, tx, p.ComplaintID, p.StatusHistory); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assign: %w", err)
	}
	return nil
}

// AddInfoRequest appends an unanswered info request.
func (r *ComplaintRepository) AddInfoRequest(ctx context.Context, complaintID string, version int64, req *models.InfoRequest) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin info request: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE complaints SET version = version + 1, updated_at = $1 WHERE id = $2 AND version = $3`,
		time.Now().UTC(), complaintID, version)
	if err != nil {
		return fmt.Errorf("touch complaint: %w", err)
	}
	if err := r.ensureApplied(ctx, tx, res, complaintID); err != nil {
		return err
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	req.ComplaintID = complaintID
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO complaint_info_requests (id, complaint_id, question, requested_by, answered, created_at)
         VALUES ($1, $2, $3, $4, false, $5)`,
		req.ID, req.ComplaintID, req.Question, req.RequestedByID, req.CreatedAt); err != nil {
		return fmt.Errorf("insert info request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit info request: %w", err)
	}
	return nil
}

// AddInfoSubmission appends the answer, marks the request answered and stores
// any uploaded attachments, all in one transaction.
func (r *ComplaintRepository) AddInfoSubmission(ctx context.Context, complaintID string, version int64, sub *models.InfoSubmission, attachments []models.Attachment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin info submission: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE complaints SET version = version + 1, updated_at = $1 WHERE id = $2 AND version = $3`,
		time.Now().UTC(), complaintID, version)
	if err != nil {
		return fmt.Errorf("touch complaint: %w", err)
	}
	if err := r.ensureApplied(ctx, tx, res, complaintID); err != nil {
		return err
	}

	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.ComplaintID = complaintID
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO complaint_info_submissions (id, complaint_id, request_id, response, submitted_by, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		sub.ID, sub.ComplaintID, sub.RequestID, sub.Response, sub.SubmittedByID, sub.CreatedAt); err != nil {
		return fmt.Errorf("insert info submission: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE complaint_info_requests SET answered = true WHERE id = $1`, sub.RequestID); err != nil {
		return fmt.Errorf("mark request answered: %w", err)
	}

	for i := range attachments {
		attachments[i].SubmissionID = &sub.ID
		if err := insertAttachment(ctx, tx, complaintID, &attachments[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit info submission: %w", err)
	}
	return nil
}

// AddReply appends an admin reply.
func (r *ComplaintRepository) AddReply(ctx context.Context, complaintID string, version int64, reply *models.AdminReply) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reply: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx,
		`UPDATE complaints SET version = version + 1, updated_at = $1 WHERE id = $2 AND version = $3`,
		time.Now().UTC(), complaintID, version)
	if err != nil {
		return fmt.Errorf("touch complaint: %w", err)
	}
	if err := r.ensureApplied(ctx, tx, res, complaintID); err != nil {
		return err
	}

	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	reply.ComplaintID = complaintID
	if reply.CreatedAt.IsZero() {
		reply.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO complaint_admin_replies (id, complaint_id, admin_id, message, created_at)
         VALUES ($1, $2, $3, $4, $5)`,
		reply.ID, reply.ComplaintID, reply.AdminID, reply.Message, reply.CreatedAt); err != nil {
		return fmt.Errorf("insert admin reply: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reply: %w", err)
	}
	return nil
}

// SetFeedback records the one-time resolution rating.
func (r *ComplaintRepository) SetFeedback(ctx context.Context, complaintID string, version int64, fb models.Feedback) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE complaints SET feedback_rating = $1, feedback_comment = $2, feedback_at = $3,
         version = version + 1, updated_at = $4 WHERE id = $5 AND version = $6`,
		fb.Rating, fb.Comment, fb.SubmittedAt, time.Now().UTC(), complaintID, version)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	return r.ensureAppliedDB(ctx, res, complaintID)
}

// Delete removes a complaint permanently. Side records cascade via foreign
// keys. This is the administrative override outside the state machine.
func (r *ComplaintRepository) Delete(ctx context.Context, complaintID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM complaints WHERE id = $1`, complaintID)
	if err != nil {
		return fmt.Errorf("delete complaint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete complaint: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ensureApplied distinguishes a lost version race from a missing complaint
// after a zero-row versioned update.
func (r *ComplaintRepository) ensureApplied(ctx context.Context, tx *sqlx.Tx, res sql.Result, complaintID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := tx.GetContext(ctx, &exists, "SELECT 1 FROM complaints WHERE id = $1 LIMIT 1", complaintID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("check complaint: %w", err)
	}
	return appErrors.ErrConflict
}

func (r *ComplaintRepository) ensureAppliedDB(ctx context.Context, res sql.Result, complaintID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, "SELECT 1 FROM complaints WHERE id = $1 LIMIT 1", complaintID); err != nil {
		if err == sql.ErrNoRows {
			return sql.ErrNoRows
		}
		return fmt.Errorf("check complaint: %w", err)
	}
	return appErrors.ErrConflict
}

func insertStatusHistory(ctx context.Context, tx *sqlx.Tx, complaintID string, entry *models.StatusHistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.ComplaintID = complaintID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO complaint_status_history (id, complaint_id, status, comment, updated_by, created_at)
         VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.ComplaintID, entry.Status, entry.Comment, entry.UpdatedByID, entry.CreatedAt); err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}

func insertAttachment(ctx context.Context, tx *sqlx.Tx, complaintID string, att *models.Attachment) error {
	if att.ID == "" {
		att.ID = uuid.NewString()
	}
	att.ComplaintID = complaintID
	if att.CreatedAt.IsZero() {
		att.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO complaint_attachments (id, complaint_id, submission_id, name, path, mime_type, size_bytes, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		att.ID, att.ComplaintID, att.SubmissionID, att.Name, att.Path, att.MIMEType, att.SizeBytes, att.CreatedAt); err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

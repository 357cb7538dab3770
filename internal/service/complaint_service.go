package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusdesk/complaint-api/internal/dto"
	"github.com/campusdesk/complaint-api/internal/models"
	"github.com/campusdesk/complaint-api/internal/repository"
	"github.com/campusdesk/complaint-api/pkg/config"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
	"github.com/campusdesk/complaint-api/pkg/storage"
)

type complaintRepository interface {
	Create(ctx context.Context, complaint *models.Complaint, attachments []models.Attachment) error
	FindByID(ctx context.Context, id string) (*models.Complaint, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error)
	Snapshot(ctx context.Context) ([]models.Complaint, error)
	StatusHistory(ctx context.Context, complaintID string) ([]models.StatusHistoryEntry, error)
	Assignments(ctx context.Context, complaintID string) ([]models.AssignmentEntry, error)
	InfoRequests(ctx context.Context, complaintID string) ([]models.InfoRequest, error)
	InfoSubmissions(ctx context.Context, complaintID string) ([]models.InfoSubmission, error)
	AdminReplies(ctx context.Context, complaintID string) ([]models.AdminReply, error)
	Attachments(ctx context.Context, complaintID string) ([]models.Attachment, error)
	UpdateStatus(ctx context.Context, p repository.StatusUpdateParams) error
	UpdatePriority(ctx context.Context, complaintID string, version int64, priority models.Priority) error
	Assign(ctx context.Context, p repository.AssignParams) error
	AddInfoRequest(ctx context.Context, complaintID string, version int64, req *models.InfoRequest) error
	AddInfoSubmission(ctx context.Context, complaintID string, version int64, sub *models.InfoSubmission, attachments []models.Attachment) error
	AddReply(ctx context.Context, complaintID string, version int64, reply *models.AdminReply) error
	SetFeedback(ctx context.Context, complaintID string, version int64, fb models.Feedback) error
	Delete(ctx context.Context, complaintID string) error
}

type userDirectory interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
}

type fileStore interface {
	Save(relPath string, data []byte) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

// AttachmentUpload is one decoded multipart file accepted on submission.
type AttachmentUpload struct {
	Name     string
	MIMEType string
	Data     []byte
}

// CreateComplaintRequest holds payload for submitting a complaint.
type CreateComplaintRequest struct {
	Title       string             `json:"title" validate:"required"`
	Description string             `json:"description" validate:"required"`
	Category    string             `json:"category" validate:"required"`
	Priority    string             `json:"priority"`
	Anonymous   bool               `json:"anonymous"`
	Attachments []AttachmentUpload `json:"-"`
}

// UpdateStatusRequest holds payload for a status transition.
type UpdateStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Comment  string `json:"comment"`
	Priority string `json:"priority"`
}

// UpdatePriorityRequest holds payload for changing priority only.
type UpdatePriorityRequest struct {
	Priority string `json:"priority" validate:"required"`
}

// AssignComplaintRequest holds payload for assigning a complaint.
type AssignComplaintRequest struct {
	AssignedTo string `json:"assigned_to" validate:"required"`
	Department string `json:"department"`
	Note       string `json:"note"`
}

// RejectComplaintRequest holds payload for rejecting a complaint.
type RejectComplaintRequest struct {
	Reason string `json:"reason"`
}

// RequestInfoRequest holds an admin question to the submitter.
type RequestInfoRequest struct {
	Question string `json:"question" validate:"required"`
}

// SubmitInfoRequest holds the submitter's answer to the pending question.
type SubmitInfoRequest struct {
	Response    string             `json:"response" validate:"required"`
	Attachments []AttachmentUpload `json:"-"`
}

// ReplyRequest holds a free-form admin message.
type ReplyRequest struct {
	Message string `json:"message" validate:"required"`
}

// FeedbackRequest holds the one-time resolution rating.
type FeedbackRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// ComplaintService drives the complaint lifecycle. All state transitions go
// through it; handlers never touch the repository directly.
type ComplaintService struct {
	repo      complaintRepository
	users     userDirectory
	audit     auditRecorder
	files     fileStore
	signer    *storage.SignedURLSigner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger

	maxUploadBytes int64
	allowedMIMEs   map[string]struct{}
}

// NewComplaintService constructs the complaint service.
func NewComplaintService(repo complaintRepository, users userDirectory, audit auditRecorder, files fileStore, signer *storage.SignedURLSigner, cache *CacheService, cfg config.AttachmentsConfig, validate *validator.Validate, logger *zap.Logger) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(strings.TrimSpace(m))] = struct{}{}
	}
	return &ComplaintService{
		repo:           repo,
		users:          users,
		audit:          audit,
		files:          files,
		signer:         signer,
		cache:          cache,
		validator:      validate,
		logger:         logger,
		maxUploadBytes: cfg.MaxFileSizeBytes,
		allowedMIMEs:   allowed,
	}
}

// Create registers a new complaint in the Open state.
func (s *ComplaintService) Create(ctx context.Context, actor models.Actor, req CreateComplaintRequest) (*dto.ComplaintDetail, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may submit complaints")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid complaint payload")
	}
	if !models.IsValidCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown complaint category")
	}
	priority := models.PriorityMedium
	if req.Priority != "" {
		priority = models.Priority(req.Priority)
		if !priority.IsValid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
	}

	complaint := &models.Complaint{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(req.Title),
		Description:   req.Description,
		Category:      req.Category,
		Priority:      priority,
		Status:        models.StatusOpen,
		Anonymous:     req.Anonymous,
		SubmittedByID: actor.ID,
	}

	attachments, err := s.storeUploads(complaint.ID, nil, req.Attachments)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, complaint, attachments); err != nil {
		s.discardFiles(attachments)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}

	s.recordAudit(ctx, actor, models.AuditActionComplaintCreate, complaint.ID, map[string]interface{}{
		"category": complaint.Category,
		"priority": complaint.Priority,
	})
	s.invalidateDashboards(ctx)
	return s.Get(ctx, actor, complaint.ID)
}

// Get returns the full complaint payload visible to the actor.
func (s *ComplaintService) Get(ctx context.Context, actor models.Actor, id string) (*dto.ComplaintDetail, error) {
	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent && complaint.SubmittedByID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "complaint belongs to another student")
	}
	return s.detail(ctx, actor, complaint)
}

// List returns complaints visible to the actor. Students only ever see their
// own submissions regardless of the requested filter.
func (s *ComplaintService) List(ctx context.Context, actor models.Actor, filter models.ComplaintFilter) ([]dto.ComplaintSummary, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		filter.SubmittedBy = actor.ID
	}
	// Normalize paging here so the envelope reports the page size actually
	// queried, not whatever the caller asked for.
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	complaints, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	summaries := make([]dto.ComplaintSummary, 0, len(complaints))
	for i := range complaints {
		summaries = append(summaries, summarizeComplaint(&complaints[i], actor))
	}
	return summaries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateStatus applies one transition along the status graph.
func (s *ComplaintService) UpdateStatus(ctx context.Context, actor models.Actor, id string, req UpdateStatusRequest) (*dto.ComplaintDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	target := models.Status(req.Status)
	if !target.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}
	if target == models.StatusRejected {
		// Rejection carries a mandatory reason and has its own operation.
		return nil, appErrors.Clone(appErrors.ErrValidation, "use the reject operation to reject a complaint")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("complaint is %s and can no longer change status", complaint.Status))
	}
	if !models.CanTransition(complaint.Status, target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("cannot move from %s to %s", complaint.Status, target))
	}

	var priority *models.Priority
	if req.Priority != "" {
		p := models.Priority(req.Priority)
		if !p.IsValid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
		}
		priority = &p
	}

	actorName, err := s.actorName(ctx, actor)
	if err != nil {
		return nil, err
	}
	params := repository.StatusUpdateParams{
		ComplaintID: id,
		Version:     complaint.Version,
		Status:      target,
		Priority:    priority,
		History: models.StatusHistoryEntry{
			Status:        target,
			Comment:       req.Comment,
			UpdatedByID:   actor.ID,
			UpdatedByName: actorName,
		},
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		return nil, s.mutationError(err, "failed to update status")
	}

	s.recordAudit(ctx, actor, models.AuditActionStatusUpdate, id, map[string]interface{}{
		"from": complaint.Status,
		"to":   target,
	})
	s.invalidateDashboards(ctx)
	return s.Get(ctx, actor, id)
}

// UpdatePriority changes the priority without touching status or history.
func (s *ComplaintService) UpdatePriority(ctx context.Context, actor models.Actor, id string, req UpdatePriorityRequest) (*dto.ComplaintDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid priority payload")
	}
	priority := models.Priority(req.Priority)
	if !priority.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown priority")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdatePriority(ctx, id, complaint.Version, priority); err != nil {
		return nil, s.mutationError(err, "failed to update priority")
	}

	s.recordAudit(ctx, actor, models.AuditActionPriorityUpdate, id, map[string]interface{}{
		"from": complaint.Priority,
		"to":   priority,
	})
	s.invalidateDashboards(ctx)
	return s.Get(ctx, actor, id)
}

// Assign routes the complaint to an admin and moves it to In Progress when
// it is still Open.
func (s *ComplaintService) Assign(ctx context.Context, actor models.Actor, id string, req AssignComplaintRequest) (*dto.ComplaintDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("complaint is %s and can no longer be assigned", complaint.Status))
	}

	assignee, err := s.users.FindByID(ctx, req.AssignedTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnknownAssignee, "assignee does not exist")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve assignee")
	}
	if !assignee.Role.IsAdmin() || !assignee.Active {
		return nil, appErrors.Clone(appErrors.ErrUnknownAssignee, "assignee is not an active admin")
	}

	actorName, err := s.actorName(ctx, actor)
	if err != nil {
		return nil, err
	}
	department := req.Department
	if department == "" {
		department = assignee.Department
	}
	params := repository.AssignParams{
		ComplaintID: id,
		Version:     complaint.Version,
		AssignedTo:  assignee.ID,
		History: models.AssignmentEntry{
			AssignedToID:   assignee.ID,
			AssignedToName: assignee.FullName,
			AssignedByID:   actor.ID,
			AssignedByName: actorName,
			Department:     department,
			Note:           req.Note,
		},
	}
	// Assignment of an Open complaint starts work on it. The transition rides
	// the same versioned write as the assignment, so a concurrent status
	// change makes the whole operation fail rather than partially apply.
	if complaint.Status == models.StatusOpen {
		status := models.StatusInProgress
		params.Status = &status
		params.StatusHistory = &models.StatusHistoryEntry{
			Status:        models.StatusInProgress,
			Comment:       fmt.Sprintf("assigned to %s", assignee.FullName),
			UpdatedByID:   actor.ID,
			UpdatedByName: actorName,
		}
	}
	if err := s.repo.Assign(ctx, params); err != nil {
		return nil, s.mutationError(err, "failed to assign complaint")
	}

	s.recordAudit(ctx, actor, models.AuditActionAssign, id, map[string]interface{}{
		"assigned_to": assignee.ID,
	})
	s.invalidateDashboards(ctx)
	return s.Get(ctx, actor, id)
}

// Reject moves the complaint to the terminal Rejected state with a reason.
func (s *ComplaintService) Reject(ctx context.Context, actor models.Actor, id string, req RejectComplaintRequest) (*dto.ComplaintDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrMissingReason, "rejection requires a reason")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("complaint is %s and can no longer be rejected", complaint.Status))
	}

	actorName, err := s.actorName(ctx, actor)
	if err != nil {
		return nil, err
	}
	params := repository.StatusUpdateParams{
		ComplaintID:     id,
		Version:         complaint.Version,
		Status:          models.StatusRejected,
		RejectionReason: &reason,
		History: models.StatusHistoryEntry{
			Status:        models.StatusRejected,
			Comment:       reason,
			UpdatedByID:   actor.ID,
			UpdatedByName: actorName,
		},
	}
	if err := s.repo.UpdateStatus(ctx, params); err != nil {
		return nil, s.mutationError(err, "failed to reject complaint")
	}

	s.recordAudit(ctx, actor, models.AuditActionReject, id, map[string]interface{}{"reason": reason})
	s.invalidateDashboards(ctx)
	return s.Get(ctx, actor, id)
}

// RequestInfo records an admin question. Only one unanswered question may be
// outstanding at a time.
func (s *ComplaintService) RequestInfo(ctx context.Context, actor models.Actor, id string, req RequestInfoRequest) (*dto.ComplaintDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid info request payload")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("complaint is %s, no further information can be requested", complaint.Status))
	}
	requests, err := s.repo.InfoRequests(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load info requests")
	}
	for i := range requests {
		if !requests[i].Answered {
			return nil, appErrors.Clone(appErrors.ErrRequestAlreadyPending, "an unanswered information request already exists")
		}
	}

	actorName, err := s.actorName(ctx, actor)
	if err != nil {
		return nil, err
	}
	entry := &models.InfoRequest{
		Question:        strings.TrimSpace(req.Question),
		RequestedByID:   actor.ID,
		RequestedByName: actorName,
	}
	if err := s.repo.AddInfoRequest(ctx, id, complaint.Version, entry); err != nil {
		return nil, s.mutationError(err, "failed to record info request")
	}

	s.recordAudit(ctx, actor, models.AuditActionRequestInfo, id, nil)
	return s.Get(ctx, actor, id)
}

// SubmitInfo records the submitter's answer to the pending question and marks
// it answered.
func (s *ComplaintService) SubmitInfo(ctx context.Context, actor models.Actor, id string, req SubmitInfoRequest) (*dto.ComplaintDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid info submission payload")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.SubmittedByID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the submitter may answer an information request")
	}
	if complaint.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("complaint is %s, the information request is void", complaint.Status))
	}

	requests, err := s.repo.InfoRequests(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load info requests")
	}
	var pending *models.InfoRequest
	for i := range requests {
		if !requests[i].Answered {
			pending = &requests[i]
		}
	}
	if pending == nil {
		return nil, appErrors.Clone(appErrors.ErrNoPendingRequest, "no unanswered information request")
	}

	sub := &models.InfoSubmission{
		RequestID:     pending.ID,
		Response:      strings.TrimSpace(req.Response),
		SubmittedByID: actor.ID,
	}
	attachments, err := s.storeUploads(id, &sub.ID, req.Attachments)
	if err != nil {
		return nil, err
	}
	if err := s.repo.AddInfoSubmission(ctx, id, complaint.Version, sub, attachments); err != nil {
		s.discardFiles(attachments)
		return nil, s.mutationError(err, "failed to record info submission")
	}

	s.recordAudit(ctx, actor, models.AuditActionSubmitInfo, id, map[string]interface{}{"request_id": pending.ID})
	return s.Get(ctx, actor, id)
}

// AddReply records an admin message on the complaint thread.
func (s *ComplaintService) AddReply(ctx context.Context, actor models.Actor, id string, req ReplyRequest) (*dto.ComplaintDetail, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reply payload")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	actorName, err := s.actorName(ctx, actor)
	if err != nil {
		return nil, err
	}
	reply := &models.AdminReply{
		AdminID:   actor.ID,
		AdminName: actorName,
		Message:   strings.TrimSpace(req.Message),
	}
	if err := s.repo.AddReply(ctx, id, complaint.Version, reply); err != nil {
		return nil, s.mutationError(err, "failed to record reply")
	}

	s.recordAudit(ctx, actor, models.AuditActionReply, id, nil)
	return s.Get(ctx, actor, id)
}

// AddFeedback records the submitter's one-time rating of a resolved complaint.
func (s *ComplaintService) AddFeedback(ctx context.Context, actor models.Actor, id string, req FeedbackRequest) (*dto.ComplaintDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid feedback payload")
	}

	complaint, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if complaint.SubmittedByID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the submitter may rate the resolution")
	}
	if complaint.Status != models.StatusResolved {
		return nil, appErrors.Clone(appErrors.ErrNotResolved, "feedback is only accepted on resolved complaints")
	}
	if complaint.FeedbackRating != nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRated, "feedback was already submitted")
	}

	fb := models.Feedback{Rating: req.Rating, Comment: strings.TrimSpace(req.Comment), SubmittedAt: time.Now().UTC()}
	if err := s.repo.SetFeedback(ctx, id, complaint.Version, fb); err != nil {
		return nil, s.mutationError(err, "failed to record feedback")
	}

	s.recordAudit(ctx, actor, models.AuditActionFeedback, id, map[string]interface{}{"rating": req.Rating})
	s.invalidateDashboards(ctx)
	return s.Get(ctx, actor, id)
}

// Delete removes the complaint and all dependent records.
func (s *ComplaintService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	attachments, err := s.repo.Attachments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete complaint")
	}
	s.discardFiles(attachments)

	s.recordAudit(ctx, actor, models.AuditActionDelete, id, nil)
	s.invalidateDashboards(ctx)
	return nil
}

// ListAdmins returns the active admins available as assignment targets.
func (s *ComplaintService) ListAdmins(ctx context.Context, actor models.Actor) ([]models.UserRef, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	admins, err := s.users.ListByRole(ctx, models.RoleAdmin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admins")
	}
	refs := make([]models.UserRef, 0, len(admins))
	for i := range admins {
		refs = append(refs, admins[i].Ref())
	}
	return refs, nil
}

// OpenAttachment validates a signed download token and opens the file. The
// token is the credential: no session is required.
func (s *ComplaintService) OpenAttachment(ctx context.Context, token string) (*models.Attachment, *os.File, error) {
	complaintID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	attachments, err := s.repo.Attachments(ctx, complaintID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}
	for i := range attachments {
		if attachments[i].Path == relPath {
			f, err := s.files.Open(relPath)
			if err != nil {
				return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "attachment file missing")
			}
			return &attachments[i], f, nil
		}
	}
	return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "attachment not found")
}

func (s *ComplaintService) load(ctx context.Context, id string) (*models.Complaint, error) {
	complaint, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	return complaint, nil
}

func (s *ComplaintService) detail(ctx context.Context, actor models.Actor, complaint *models.Complaint) (*dto.ComplaintDetail, error) {
	history, err := s.repo.StatusHistory(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load status history")
	}
	assignments, err := s.repo.Assignments(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	requests, err := s.repo.InfoRequests(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load info requests")
	}
	submissions, err := s.repo.InfoSubmissions(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load info submissions")
	}
	replies, err := s.repo.AdminReplies(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load replies")
	}
	attachments, err := s.repo.Attachments(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attachments")
	}

	pending := false
	for i := range requests {
		if !requests[i].Answered {
			pending = true
		}
	}

	views := make([]dto.AttachmentView, 0, len(attachments))
	for i := range attachments {
		view := dto.AttachmentView{Attachment: attachments[i]}
		if s.signer != nil {
			token, expires, err := s.signer.Generate(complaint.ID, attachments[i].Path)
			if err == nil {
				view.DownloadToken = token
				view.TokenExpires = expires
			}
		}
		views = append(views, view)
	}

	detail := &dto.ComplaintDetail{
		ID:                 complaint.ID,
		Title:              complaint.Title,
		Description:        complaint.Description,
		Category:           complaint.Category,
		Priority:           complaint.Priority,
		Status:             complaint.Status,
		Anonymous:          complaint.Anonymous,
		Submitter:          submitterRef(complaint, actor),
		Assignee:           assigneeRef(complaint),
		Feedback:           complaint.Feedback(),
		PendingInfoRequest: pending,
		StatusHistory:      history,
		AssignmentHistory:  assignments,
		InfoRequests:       requests,
		InfoSubmissions:    submissions,
		AdminReplies:       replies,
		Attachments:        views,
		CreatedAt:          complaint.CreatedAt,
		UpdatedAt:          complaint.UpdatedAt,
	}
	if complaint.RejectionReason != nil {
		detail.RejectionReason = *complaint.RejectionReason
	}

	// Credibility informs admin triage, and only for submitters who signed
	// their complaint.
	if actor.Role.IsAdmin() && !complaint.Anonymous {
		snapshot, err := s.repo.Snapshot(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive submitter credibility")
		}
		cred := SubmitterCredibility(complaint.SubmittedByID, snapshot)
		detail.Credibility = &cred
	}
	return detail, nil
}

func (s *ComplaintService) actorName(ctx context.Context, actor models.Actor) (string, error) {
	user, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve acting user")
	}
	return user.FullName, nil
}

// storeUploads validates and persists uploaded files, returning attachment
// records pointing at the stored paths.
func (s *ComplaintService) storeUploads(complaintID string, submissionID *string, uploads []AttachmentUpload) ([]models.Attachment, error) {
	if len(uploads) == 0 {
		return nil, nil
	}
	attachments := make([]models.Attachment, 0, len(uploads))
	for _, up := range uploads {
		if s.maxUploadBytes > 0 && int64(len(up.Data)) > s.maxUploadBytes {
			s.discardFiles(attachments)
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment %s exceeds the size limit", up.Name))
		}
		if len(s.allowedMIMEs) > 0 {
			if _, ok := s.allowedMIMEs[strings.ToLower(up.MIMEType)]; !ok {
				s.discardFiles(attachments)
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment type %s is not allowed", up.MIMEType))
			}
		}
		name := filepath.Base(up.Name)
		relPath := fmt.Sprintf("%s/%s_%s", complaintID, uuid.NewString(), name)
		if _, err := s.files.Save(relPath, up.Data); err != nil {
			s.discardFiles(attachments)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
		attachments = append(attachments, models.Attachment{
			SubmissionID: submissionID,
			Name:         name,
			Path:         relPath,
			MIMEType:     up.MIMEType,
			SizeBytes:    int64(len(up.Data)),
		})
	}
	return attachments, nil
}

func (s *ComplaintService) discardFiles(attachments []models.Attachment) {
	for i := range attachments {
		if err := s.files.Delete(attachments[i].Path); err != nil {
			s.logger.Warn("failed to remove attachment file", zap.String("path", attachments[i].Path), zap.Error(err))
		}
	}
}

func (s *ComplaintService) mutationError(err error, msg string) error {
	if appErr, ok := err.(*appErrors.Error); ok {
		return appErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, msg)
}

func (s *ComplaintService) recordAudit(ctx context.Context, actor models.Actor, action, resourceID string, values map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actor.ID,
		Action:     action,
		Resource:   "complaint",
		ResourceID: &resourceID,
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *ComplaintService) invalidateDashboards(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, dashboardCachePattern); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
	}
}

func requireAdmin(actor models.Actor) error {
	if !actor.Role.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}

// summarizeComplaint builds the list projection. The submitter is withheld
// on anonymous complaints from everyone but the submitter themselves.
func summarizeComplaint(c *models.Complaint, actor models.Actor) dto.ComplaintSummary {
	summary := dto.ComplaintSummary{
		ID:        c.ID,
		Title:     c.Title,
		Category:  c.Category,
		Priority:  c.Priority,
		Status:    c.Status,
		Anonymous: c.Anonymous,
		Assignee:  assigneeRef(c),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	summary.Submitter = submitterRef(c, actor)
	return summary
}

func submitterRef(c *models.Complaint, actor models.Actor) *models.UserRef {
	if c.Anonymous && actor.ID != c.SubmittedByID {
		return nil
	}
	return &models.UserRef{ID: c.SubmittedByID, FullName: c.SubmitterName, Email: c.SubmitterEmail}
}

func assigneeRef(c *models.Complaint) *models.UserRef {
	if c.AssignedToID == nil {
		return nil
	}
	ref := &models.UserRef{ID: *c.AssignedToID}
	if c.AssigneeName != nil {
		ref.FullName = *c.AssigneeName
	}
	if c.AssigneeDepartment != nil {
		ref.Department = *c.AssigneeDepartment
	}
	return ref
}

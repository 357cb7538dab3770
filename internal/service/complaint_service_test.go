package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusdesk/complaint-api/internal/models"
	"github.com/campusdesk/complaint-api/internal/repository"
	"github.com/campusdesk/complaint-api/pkg/config"
	appErrors "github.com/campusdesk/complaint-api/pkg/errors"
	"github.com/campusdesk/complaint-api/pkg/storage"
)

type fakeComplaintRepo struct {
	complaints  map[string]*models.Complaint
	history     map[string][]models.StatusHistoryEntry
	assignments map[string][]models.AssignmentEntry
	requests    map[string][]models.InfoRequest
	submissions map[string][]models.InfoSubmission
	replies     map[string][]models.AdminReply
	attachments map[string][]models.Attachment
	seq         int

	// bumpOnRead simulates a concurrent writer: every FindByID advances the
	// stored version after handing out the stale copy.
	bumpOnRead bool

	// resolveOnRead additionally commits a Resolved transition behind the
	// caller's back, modelling another admin winning the write race.
	resolveOnRead bool
}

func newFakeComplaintRepo() *fakeComplaintRepo {
	return &fakeComplaintRepo{
		complaints:  make(map[string]*models.Complaint),
		history:     make(map[string][]models.StatusHistoryEntry),
		assignments: make(map[string][]models.AssignmentEntry),
		requests:    make(map[string][]models.InfoRequest),
		submissions: make(map[string][]models.InfoSubmission),
		replies:     make(map[string][]models.AdminReply),
		attachments: make(map[string][]models.Attachment),
	}
}

func (f *fakeComplaintRepo) nextID() string {
	f.seq++
	return fmt.Sprintf("id-%d", f.seq)
}

// guard mirrors the repository's version check: missing rows surface as
// sql.ErrNoRows, stale versions as ErrConflict.
func (f *fakeComplaintRepo) guard(id string, version int64) (*models.Complaint, error) {
	c, ok := f.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if c.Version != version {
		return nil, appErrors.Clone(appErrors.ErrConflict, "concurrent update lost")
	}
	return c, nil
}

func (f *fakeComplaintRepo) Create(ctx context.Context, complaint *models.Complaint, attachments []models.Attachment) error {
	if complaint.ID == "" {
		complaint.ID = f.nextID()
	}
	complaint.Version = 1
	now := time.Now().UTC()
	complaint.CreatedAt = now
	complaint.UpdatedAt = now
	clone := *complaint
	f.complaints[complaint.ID] = &clone
	for i := range attachments {
		attachments[i].ComplaintID = complaint.ID
		f.attachments[complaint.ID] = append(f.attachments[complaint.ID], attachments[i])
	}
	return nil
}

func (f *fakeComplaintRepo) FindByID(ctx context.Context, id string) (*models.Complaint, error) {
	c, ok := f.complaints[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	if f.bumpOnRead {
		c.Version++
	}
	if f.resolveOnRead {
		c.Status = models.StatusResolved
		c.Version++
	}
	return &clone, nil
}

func (f *fakeComplaintRepo) List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, int, error) {
	var out []models.Complaint
	for _, c := range f.complaints {
		if filter.SubmittedBy != "" && c.SubmittedByID != filter.SubmittedBy {
			continue
		}
		if filter.Status != "" && string(c.Status) != filter.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeComplaintRepo) Snapshot(ctx context.Context) ([]models.Complaint, error) {
	var out []models.Complaint
	for _, c := range f.complaints {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeComplaintRepo) StatusHistory(ctx context.Context, id string) ([]models.StatusHistoryEntry, error) {
	return f.history[id], nil
}

func (f *fakeComplaintRepo) Assignments(ctx context.Context, id string) ([]models.AssignmentEntry, error) {
	return f.assignments[id], nil
}

func (f *fakeComplaintRepo) InfoRequests(ctx context.Context, id string) ([]models.InfoRequest, error) {
	return f.requests[id], nil
}

func (f *fakeComplaintRepo) InfoSubmissions(ctx context.Context, id string) ([]models.InfoSubmission, error) {
	return f.submissions[id], nil
}

func (f *fakeComplaintRepo) AdminReplies(ctx context.Context, id string) ([]models.AdminReply, error) {
	return f.replies[id], nil
}

func (f *fakeComplaintRepo) Attachments(ctx context.Context, id string) ([]models.Attachment, error) {
	return f.attachments[id], nil
}

func (f *fakeComplaintRepo) UpdateStatus(ctx context.Context, p repository.StatusUpdateParams) error {
	c, err := f.guard(p.ComplaintID, p.Version)
	if err != nil {
		return err
	}
	c.Status = p.Status
	if p.Priority != nil {
		c.Priority = *p.Priority
	}
	if p.RejectionReason != nil {
		c.RejectionReason = p.RejectionReason
	}
	c.Version++
	entry := p.History
	entry.ID = f.nextID()
	entry.ComplaintID = p.ComplaintID
	entry.CreatedAt = time.Now().UTC()
	f.history[p.ComplaintID] = append(f.history[p.ComplaintID], entry)
	return nil
}

func (f *fakeComplaintRepo) UpdatePriority(ctx context.Context, id string, version int64, priority models.Priority) error {
	c, err := f.guard(id, version)
	if err != nil {
		return err
	}
	c.Priority = priority
	c.Version++
	return nil
}

func (f *fakeComplaintRepo) Assign(ctx context.Context, p repository.AssignParams) error {
	c, err := f.guard(p.ComplaintID, p.Version)
	if err != nil {
		return err
	}
	c.AssignedToID = &p.AssignedTo
	if p.Status != nil {
		c.Status = *p.Status
	}
	c.Version++
	entry := p.History
	entry.ID = f.nextID()
	entry.ComplaintID = p.ComplaintID
	entry.CreatedAt = time.Now().UTC()
	f.assignments[p.ComplaintID] = append(f.assignments[p.ComplaintID], entry)
	if p.StatusHistory != nil {
		sh := *p.StatusHistory
		sh.ID = f.nextID()
		sh.ComplaintID = p.ComplaintID
		sh.CreatedAt = time.Now().UTC()
		f.history[p.ComplaintID] = append(f.history[p.ComplaintID], sh)
	}
	return nil
}

func (f *fakeComplaintRepo) AddInfoRequest(ctx context.Context, id string, version int64, req *models.InfoRequest) error {
	c, err := f.guard(id, version)
	if err != nil {
		return err
	}
	c.Version++
	req.ID = f.nextID()
	req.ComplaintID = id
	req.CreatedAt = time.Now().UTC()
	f.requests[id] = append(f.requests[id], *req)
	return nil
}

func (f *fakeComplaintRepo) AddInfoSubmission(ctx context.Context, id string, version int64, sub *models.InfoSubmission, attachments []models.Attachment) error {
	c, err := f.guard(id, version)
	if err != nil {
		return err
	}
	c.Version++
	sub.ID = f.nextID()
	sub.ComplaintID = id
	sub.CreatedAt = time.Now().UTC()
	f.submissions[id] = append(f.submissions[id], *sub)
	for i := range f.requests[id] {
		if f.requests[id][i].ID == sub.RequestID {
			f.requests[id][i].Answered = true
		}
	}
	for i := range attachments {
		attachments[i].ComplaintID = id
		f.attachments[id] = append(f.attachments[id], attachments[i])
	}
	return nil
}

func (f *fakeComplaintRepo) AddReply(ctx context.Context, id string, version int64, reply *models.AdminReply) error {
	c, err := f.guard(id, version)
	if err != nil {
		return err
	}
	c.Version++
	reply.ID = f.nextID()
	reply.ComplaintID = id
	reply.CreatedAt = time.Now().UTC()
	f.replies[id] = append(f.replies[id], *reply)
	return nil
}

func (f *fakeComplaintRepo) SetFeedback(ctx context.Context, id string, version int64, fb models.Feedback) error {
	c, err := f.guard(id, version)
	if err != nil {
		return err
	}
	c.FeedbackRating = &fb.Rating
	c.FeedbackComment = &fb.Comment
	at := fb.SubmittedAt
	c.FeedbackAt = &at
	c.Version++
	return nil
}

func (f *fakeComplaintRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.complaints[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.complaints, id)
	delete(f.attachments, id)
	return nil
}

type fakeUserDirectory struct {
	users map[string]*models.User
}

func (f *fakeUserDirectory) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserDirectory) ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.Role == role && u.Active {
			out = append(out, *u)
		}
	}
	return out, nil
}

type fakeAuditRecorder struct {
	entries []models.AuditLog
}

func (f *fakeAuditRecorder) CreateAuditLog(ctx context.Context, entry *models.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

type fakeFileStore struct {
	files map[string][]byte
}

func (f *fakeFileStore) Save(relPath string, data []byte) (string, error) {
	if f.files == nil {
		f.files = make(map[string][]byte)
	}
	f.files[relPath] = data
	return relPath, nil
}

func (f *fakeFileStore) Open(relPath string) (*os.File, error) {
	return nil, errors.New("not supported in fake")
}

func (f *fakeFileStore) Delete(relPath string) error {
	delete(f.files, relPath)
	return nil
}

var (
	student    = models.Actor{ID: "student-1", Role: models.RoleStudent}
	otherStud  = models.Actor{ID: "student-2", Role: models.RoleStudent}
	adminActor = models.Actor{ID: "admin-1", Role: models.RoleAdmin}
	superActor = models.Actor{ID: "super-1", Role: models.RoleSuperAdmin}
)

func newTestService(t *testing.T) (*ComplaintService, *fakeComplaintRepo, *fakeUserDirectory, *fakeAuditRecorder) {
	t.Helper()
	repo := newFakeComplaintRepo()
	users := &fakeUserDirectory{users: map[string]*models.User{
		"student-1": {ID: "student-1", FullName: "Ana Student", Email: "ana@example.edu", Role: models.RoleStudent, Active: true},
		"student-2": {ID: "student-2", FullName: "Ben Student", Email: "ben@example.edu", Role: models.RoleStudent, Active: true},
		"admin-1":   {ID: "admin-1", FullName: "Cara Admin", Email: "cara@example.edu", Role: models.RoleAdmin, Department: "Facilities", Active: true},
		"admin-2":   {ID: "admin-2", FullName: "Dan Admin", Email: "dan@example.edu", Role: models.RoleAdmin, Department: "Hostel", Active: true},
		"super-1":   {ID: "super-1", FullName: "Eve Super", Email: "eve@example.edu", Role: models.RoleSuperAdmin, Active: true},
	}}
	audit := &fakeAuditRecorder{}
	files := &fakeFileStore{}
	signer := storage.NewSignedURLSigner("test-secret", 30*time.Minute)
	cfg := config.AttachmentsConfig{MaxFileSizeBytes: 1024, AllowedMIMEs: []string{"image/png", "application/pdf"}}
	svc := NewComplaintService(repo, users, audit, files, signer, nil, cfg, validator.New(), zap.NewNop())
	return svc, repo, users, audit
}

func seedComplaint(t *testing.T, svc *ComplaintService) string {
	t.Helper()
	detail, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title:       "Broken heater",
		Description: "Room 12 heater has been dead for a week",
		Category:    "Hostel",
		Priority:    "High",
	})
	require.NoError(t, err)
	return detail.ID
}

func TestCreateComplaintStartsOpen(t *testing.T) {
	svc, repo, _, audit := newTestService(t)

	detail, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title:       "Broken heater",
		Description: "No heat in room 12",
		Category:    "Hostel",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, detail.Status)
	assert.Equal(t, models.PriorityMedium, detail.Priority)
	assert.Empty(t, detail.StatusHistory, "creation writes no history entry")
	require.NotNil(t, detail.Submitter)
	assert.Equal(t, student.ID, detail.Submitter.ID)
	assert.Equal(t, int64(1), repo.complaints[detail.ID].Version)
	assert.Len(t, audit.entries, 1)
	assert.Equal(t, models.AuditActionComplaintCreate, audit.entries[0].Action)
}

func TestCreateComplaintRejectsAdmins(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), adminActor, CreateComplaintRequest{
		Title: "x", Description: "y", Category: "Hostel",
	})
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestCreateComplaintUnknownCategory(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	_, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title: "x", Description: "y", Category: "Parking",
	})
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestGetForbiddenForOtherStudent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.Get(context.Background(), otherStud, id)
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestAnonymousMasksSubmitterFromAdmins(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	detail, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title: "Harassment report", Description: "details", Category: "Administrative", Anonymous: true,
	})
	require.NoError(t, err)
	require.NotNil(t, detail.Submitter, "the owner still sees their own identity")

	asAdmin, err := svc.Get(context.Background(), adminActor, detail.ID)
	require.NoError(t, err)
	assert.Nil(t, asAdmin.Submitter)
	assert.Nil(t, asAdmin.Credibility, "credibility is never derived for anonymous complaints")
}

func TestAdminDetailIncludesCredibility(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.Get(context.Background(), adminActor, id)
	require.NoError(t, err)
	require.NotNil(t, detail.Credibility)
	assert.Equal(t, 1, detail.Credibility.Total)

	asOwner, err := svc.Get(context.Background(), student, id)
	require.NoError(t, err)
	assert.Nil(t, asOwner.Credibility)
}

func TestUpdateStatusHappyPath(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.UpdateStatus(context.Background(), adminActor, id, UpdateStatusRequest{
		Status:  string(models.StatusInProgress),
		Comment: "on it",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, detail.Status)
	require.Len(t, detail.StatusHistory, 1)
	assert.Equal(t, "Cara Admin", detail.StatusHistory[0].UpdatedByName)
	assert.Equal(t, int64(2), repo.complaints[id].Version)
}

func TestUpdateStatusInvalidEdge(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	repo.complaints[id].Status = models.StatusInProgress

	_, err := svc.UpdateStatus(context.Background(), adminActor, id, UpdateStatusRequest{
		Status: string(models.StatusOpen),
	})
	assertErrorCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestUpdateStatusTerminalBlocked(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	repo.complaints[id].Status = models.StatusResolved

	_, err := svc.UpdateStatus(context.Background(), adminActor, id, UpdateStatusRequest{
		Status: string(models.StatusClosed),
	})
	assertErrorCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestUpdateStatusRejectedNeedsRejectOperation(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.UpdateStatus(context.Background(), adminActor, id, UpdateStatusRequest{
		Status: string(models.StatusRejected),
	})
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.UpdateStatus(context.Background(), student, id, UpdateStatusRequest{
		Status: string(models.StatusInProgress),
	})
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestUpdateStatusVersionConflict(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	// A competing writer lands between the service's load and its save.
	repo.bumpOnRead = true

	_, err := svc.UpdateStatus(context.Background(), adminActor, id, UpdateStatusRequest{
		Status: string(models.StatusInProgress),
	})
	assertErrorCode(t, err, appErrors.ErrConflict.Code)
}

func TestUpdatePriorityWritesNoHistory(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.UpdatePriority(context.Background(), adminActor, id, UpdatePriorityRequest{Priority: "Critical"})

	require.NoError(t, err)
	assert.Equal(t, models.PriorityCritical, detail.Priority)
	assert.Empty(t, detail.StatusHistory)
	assert.Equal(t, int64(2), repo.complaints[id].Version)
}

func TestAssignMovesOpenToInProgress(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "admin-2"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, detail.Status)
	require.NotNil(t, detail.Assignee)
	assert.Equal(t, "admin-2", detail.Assignee.ID)
	require.Len(t, detail.AssignmentHistory, 1)
	assert.Equal(t, "Hostel", detail.AssignmentHistory[0].Department, "department defaults to the assignee's")
	require.Len(t, detail.StatusHistory, 1)
	assert.Equal(t, models.StatusInProgress, detail.StatusHistory[0].Status)
}

func TestAssignLosesRaceToConcurrentResolve(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	// Another admin resolves the complaint between our load and our write.
	repo.resolveOnRead = true

	_, err := svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "admin-2"})

	assertErrorCode(t, err, appErrors.ErrConflict.Code)
	stored := repo.complaints[id]
	assert.Equal(t, models.StatusResolved, stored.Status, "the committed resolution must stand")
	assert.Nil(t, stored.AssignedToID, "a lost race leaves no assignment behind")
	assert.Empty(t, repo.assignments[id])
	assert.Empty(t, repo.history[id])
}

func TestAssignOpenIsOneVersionedWrite(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "admin-2"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, detail.Status)
	// One guarded write covers the assignment and the transition together.
	assert.Equal(t, int64(2), repo.complaints[id].Version)
}

func TestAssignKeepsEscalatedStatus(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	repo.complaints[id].Status = models.StatusEscalated

	detail, err := svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "admin-2"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusEscalated, detail.Status)
	assert.Empty(t, detail.StatusHistory)
}

func TestAssignUnknownAssignee(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "ghost"})
	assertErrorCode(t, err, appErrors.ErrUnknownAssignee.Code)
}

func TestAssignStudentAssigneeRejected(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "student-2"})
	assertErrorCode(t, err, appErrors.ErrUnknownAssignee.Code)
}

func TestRejectRequiresReason(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.Reject(context.Background(), adminActor, id, RejectComplaintRequest{Reason: "  "})
	assertErrorCode(t, err, appErrors.ErrMissingReason.Code)
}

func TestRejectSetsReasonAndTerminalState(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.Reject(context.Background(), adminActor, id, RejectComplaintRequest{Reason: "duplicate of another report"})

	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, detail.Status)
	assert.Equal(t, "duplicate of another report", detail.RejectionReason)

	// Terminal: no further workflow writes.
	_, err = svc.Assign(context.Background(), adminActor, id, AssignComplaintRequest{AssignedTo: "admin-2"})
	assertErrorCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestRequestInfoSinglePending(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "Which room exactly?"})
	require.NoError(t, err)
	assert.True(t, detail.PendingInfoRequest)

	_, err = svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "Another question"})
	assertErrorCode(t, err, appErrors.ErrRequestAlreadyPending.Code)
}

func TestSubmitInfoAnswersPendingRequest(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	_, err := svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "Which room exactly?"})
	require.NoError(t, err)

	detail, err := svc.SubmitInfo(context.Background(), student, id, SubmitInfoRequest{Response: "Room 12, second floor"})

	require.NoError(t, err)
	assert.False(t, detail.PendingInfoRequest)
	require.Len(t, detail.InfoSubmissions, 1)
	assert.Equal(t, detail.InfoRequests[0].ID, detail.InfoSubmissions[0].RequestID)
	assert.True(t, detail.InfoRequests[0].Answered)

	// A second RequestInfo is allowed once the first is answered.
	_, err = svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "Since when?"})
	require.NoError(t, err)
}

func TestSubmitInfoWithoutPendingRequest(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.SubmitInfo(context.Background(), student, id, SubmitInfoRequest{Response: "unsolicited"})
	assertErrorCode(t, err, appErrors.ErrNoPendingRequest.Code)
}

func TestSubmitInfoOnlySubmitter(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	_, err := svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "q"})
	require.NoError(t, err)

	_, err = svc.SubmitInfo(context.Background(), otherStud, id, SubmitInfoRequest{Response: "not mine"})
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestSubmitInfoVoidAfterRejection(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	_, err := svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "q"})
	require.NoError(t, err)
	_, err = svc.Reject(context.Background(), adminActor, id, RejectComplaintRequest{Reason: "spam"})
	require.NoError(t, err)

	_, err = svc.SubmitInfo(context.Background(), student, id, SubmitInfoRequest{Response: "late answer"})
	assertErrorCode(t, err, appErrors.ErrInvalidTransition.Code)
}

func TestRejectAllowedWhileInfoRequestPending(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	_, err := svc.RequestInfo(context.Background(), adminActor, id, RequestInfoRequest{Question: "q"})
	require.NoError(t, err)

	detail, err := svc.Reject(context.Background(), adminActor, id, RejectComplaintRequest{Reason: "no evidence"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, detail.Status)
}

func TestReplyRecordsAdminMessage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	detail, err := svc.AddReply(context.Background(), adminActor, id, ReplyRequest{Message: "We have ordered the part."})

	require.NoError(t, err)
	require.Len(t, detail.AdminReplies, 1)
	assert.Equal(t, "Cara Admin", detail.AdminReplies[0].AdminName)
}

func TestFeedbackOnlyOnResolved(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	_, err := svc.AddFeedback(context.Background(), student, id, FeedbackRequest{Rating: 5})
	assertErrorCode(t, err, appErrors.ErrNotResolved.Code)

	repo.complaints[id].Status = models.StatusResolved
	detail, err := svc.AddFeedback(context.Background(), student, id, FeedbackRequest{Rating: 4, Comment: "quick fix"})
	require.NoError(t, err)
	require.NotNil(t, detail.Feedback)
	assert.Equal(t, 4, detail.Feedback.Rating)

	_, err = svc.AddFeedback(context.Background(), student, id, FeedbackRequest{Rating: 5})
	assertErrorCode(t, err, appErrors.ErrAlreadyRated.Code)
}

func TestFeedbackOnlySubmitter(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)
	repo.complaints[id].Status = models.StatusResolved

	_, err := svc.AddFeedback(context.Background(), otherStud, id, FeedbackRequest{Rating: 1})
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	svc, repo, _, _ := newTestService(t)
	id := seedComplaint(t, svc)

	err := svc.Delete(context.Background(), student, id)
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)

	err = svc.Delete(context.Background(), adminActor, id)
	require.NoError(t, err)
	assert.NotContains(t, repo.complaints, id)

	err = svc.Delete(context.Background(), superActor, id)
	assertErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestListScopesStudentsToOwnComplaints(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	seedComplaint(t, svc)

	mine, _, err := svc.List(context.Background(), student, models.ComplaintFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	theirs, _, err := svc.List(context.Background(), otherStud, models.ComplaintFilter{SubmittedBy: "student-1"})
	require.NoError(t, err)
	assert.Empty(t, theirs, "a student cannot widen the filter to another submitter")
}

func TestListClampsOversizedPage(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	seedComplaint(t, svc)

	_, pagination, err := svc.List(context.Background(), adminActor, models.ComplaintFilter{Page: 0, PageSize: 500})

	require.NoError(t, err)
	// The envelope reports the size the query actually used.
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestListAdminsReturnsActiveAdmins(t *testing.T) {
	svc, _, users, _ := newTestService(t)
	users.users["admin-2"].Active = false

	refs, err := svc.ListAdmins(context.Background(), adminActor)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "admin-1", refs[0].ID)
}

func TestAttachmentsStoredAndTokenised(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	detail, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title: "leak", Description: "water leak", Category: "Infrastructure",
		Attachments: []AttachmentUpload{{Name: "photo.png", MIMEType: "image/png", Data: []byte("png-bytes")}},
	})

	require.NoError(t, err)
	require.Len(t, detail.Attachments, 1)
	assert.Equal(t, "photo.png", detail.Attachments[0].Name)
	assert.NotEmpty(t, detail.Attachments[0].DownloadToken)
}

func TestAttachmentRejectsDisallowedMIME(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title: "leak", Description: "water leak", Category: "Infrastructure",
		Attachments: []AttachmentUpload{{Name: "run.exe", MIMEType: "application/octet-stream", Data: []byte("bin")}},
	})
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestAttachmentRejectsOversize(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	_, err := svc.Create(context.Background(), student, CreateComplaintRequest{
		Title: "leak", Description: "water leak", Category: "Infrastructure",
		Attachments: []AttachmentUpload{{Name: "big.png", MIMEType: "image/png", Data: make([]byte, 2048)}},
	})
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected typed error, got %v", err)
	assert.Equal(t, code, appErr.Code)
}

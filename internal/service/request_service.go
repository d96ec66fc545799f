package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
)

type requestRepository interface {
	CreateWithinCapacity(ctx context.Context, request *models.DissertationRequest) (bool, error)
	FindByID(ctx context.Context, id string) (*models.DissertationRequest, error)
	FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error)
	ListDetailsBySession(ctx context.Context, sessionID string) ([]models.RequestDetail, error)
	ListDetailsByProfessor(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.RequestDetail, int, error)
	ListDetailsByStudent(ctx context.Context, studentID string) ([]models.RequestDetail, error)
	HasPendingForSession(ctx context.Context, studentID, sessionID string) (bool, error)
	HasApprovedElsewhere(ctx context.Context, studentID, professorID string) (bool, error)
	CountApproved(ctx context.Context, sessionID string) (int, error)
	Approve(ctx context.Context, requestID, sessionID, studentID string, cascade bool) (bool, int64, error)
	Reject(ctx context.Context, id, reason string) error
	MarkWaitingForReupload(ctx context.Context, id, reason string) error
	AttachSignedFile(ctx context.Context, id, filename string) error
	AttachProfessorFile(ctx context.Context, id, filename string) error
}

type requestSessionReader interface {
	FindByID(ctx context.Context, id string) (*models.RegistrationSession, error)
	FindOwned(ctx context.Context, id, professorID string) (*models.RegistrationSession, error)
}

type documentScheduler interface {
	ScheduleCoordinationForm(requestID string)
}

type documentLinker interface {
	DocumentsFor(request models.DissertationRequest) []dto.Document
}

type listingInvalidator interface {
	InvalidateListings(ctx context.Context)
}

type lifecycleRecorder interface {
	RecordLifecycleTransition(action string)
}

// RequestConfig carries the request-lifecycle business toggles.
type RequestConfig struct {
	CascadeWithdraw bool
}

// RequestService manages the dissertation-request lifecycle: submission,
// the professor's decisions and the document attachments that follow an
// approval.
type RequestService struct {
	repo      requestRepository
	sessions  requestSessionReader
	documents documentScheduler
	links     documentLinker
	listings  listingInvalidator
	audit     auditRecorder
	metrics   lifecycleRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    RequestConfig
	now       func() time.Time
}

// NewRequestService constructs a RequestService. The document scheduler,
// linker, listing invalidator, audit recorder and metrics may be nil.
func NewRequestService(repo requestRepository, sessions requestSessionReader, documents documentScheduler, links documentLinker, listings listingInvalidator, audit auditRecorder, metrics lifecycleRecorder, validate *validator.Validate, logger *zap.Logger, config RequestConfig) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &RequestService{
		repo:      repo,
		sessions:  sessions,
		documents: documents,
		links:     links,
		listings:  listings,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit files a new pending request against an open session. The insert
// itself is capacity-guarded; every precondition failure surfaces as a
// user-correctable 400.
func (s *RequestService) Submit(ctx context.Context, studentID string, payload models.SubmitRequestPayload) (*dto.Request, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}

	session, err := s.sessions.FindByID(ctx, payload.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.AcceptsRequestsAt(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "session is not accepting requests")
	}

	pending, err := s.repo.HasPendingForSession(ctx, studentID, session.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending requests")
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a pending request for this session")
	}

	// An approved supervision anywhere closes the door on new requests.
	approvedAnywhere, err := s.repo.HasApprovedElsewhere(ctx, studentID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check approved requests")
	}
	if approvedAnywhere {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have an approved request")
	}

	request := &models.DissertationRequest{
		SessionID:         session.ID,
		StudentID:         studentID,
		ProfessorID:       session.ProfessorID,
		DissertationTitle: payload.DissertationTitle,
	}
	inserted, err := s.repo.CreateWithinCapacity(ctx, request)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}
	if !inserted {
		return nil, appErrors.Clone(appErrors.ErrSessionFull, "session has reached its capacity")
	}

	if s.documents != nil {
		s.documents.ScheduleCoordinationForm(request.ID)
	}
	s.invalidateListings(ctx)
	s.recordAudit(ctx, studentID, models.AuditActionRequestSubmit, request.ID)

	result := s.toDTO(*request)
	return &result, nil
}

// ListForStudent returns the student's requests across all sessions.
func (s *RequestService) ListForStudent(ctx context.Context, studentID string) ([]dto.RequestDetail, error) {
	details, err := s.repo.ListDetailsByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return s.toDetailDTOs(details), nil
}

// ListForProfessor returns the professor's requests with an optional
// status filter and pagination.
func (s *RequestService) ListForProfessor(ctx context.Context, professorID string, filter models.RequestFilter) ([]dto.RequestDetail, models.Pagination, error) {
	if filter.Status != "" {
		switch filter.Status {
		case models.RequestStatusPending, models.RequestStatusApproved, models.RequestStatusRejected, models.RequestStatusWaitingForReupload:
		default:
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrValidation, "unknown status filter")
		}
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	details, total, err := s.repo.ListDetailsByProfessor(ctx, professorID, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	pagination := models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return s.toDetailDTOs(details), pagination, nil
}

// ListBySession returns all requests on one of the professor's sessions.
func (s *RequestService) ListBySession(ctx context.Context, professorID, sessionID string) ([]dto.RequestDetail, error) {
	if _, err := s.sessions.FindOwned(ctx, sessionID, professorID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}

	details, err := s.repo.ListDetailsBySession(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list session requests")
	}
	return s.toDetailDTOs(details), nil
}

// GetAuthorized returns a request detail after verifying the caller is
// one of its two parties.
func (s *RequestService) GetAuthorized(ctx context.Context, requestID, userID string) (*dto.RequestDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if detail.StudentID != userID && detail.ProfessorID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")
	}

	result := dto.FromRequestDetail(*detail)
	result.Documents = s.documentsFor(detail.DissertationRequest)
	return &result, nil
}

// Approve accepts a pending request. The state flip runs as a single
// conditional update; when it does not land, the cause is re-diagnosed
// so the professor gets a precise error instead of a generic one.
func (s *RequestService) Approve(ctx context.Context, professorID, requestID string) (*dto.ApprovalResult, error) {
	request, err := s.findOwnedByProfessor(ctx, requestID, professorID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending requests can be approved")
	}

	approved, deleted, err := s.repo.Approve(ctx, request.ID, request.SessionID, request.StudentID, s.config.CascadeWithdraw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve request")
	}
	if !approved {
		return nil, s.diagnoseApprovalFailure(ctx, request)
	}

	s.invalidateListings(ctx)
	s.recordAudit(ctx, professorID, models.AuditActionRequestApprove, request.ID)

	updated, err := s.repo.FindByID(ctx, request.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload request")
	}
	return &dto.ApprovalResult{Request: s.toDTO(*updated), DeletedRequestsCount: int(deleted)}, nil
}

// Reject declines a pending request with a mandatory reason. Rejection
// is terminal.
func (s *RequestService) Reject(ctx context.Context, professorID, requestID string, payload models.ReasonPayload) (*dto.Request, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a rejection reason is required")
	}

	request, err := s.findOwnedByProfessor(ctx, requestID, professorID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending requests can be rejected")
	}

	if err := s.repo.Reject(ctx, request.ID, payload.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject request")
	}

	s.invalidateListings(ctx)
	s.recordAudit(ctx, professorID, models.AuditActionRequestReject, request.ID)

	request.Status = models.RequestStatusRejected
	request.RejectionReason = &payload.Reason
	result := s.toDTO(*request)
	return &result, nil
}

// RequestReupload sends an approved request back to the student for a
// fresh signed document. The previously uploaded file is discarded.
func (s *RequestService) RequestReupload(ctx context.Context, professorID, requestID string, payload models.ReasonPayload) (*dto.Request, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "a reupload reason is required")
	}

	request, err := s.findOwnedByProfessor(ctx, requestID, professorID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only approved requests can be sent back for reupload")
	}
	if request.SignedCoordinationRequestFile == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no signed document has been uploaded yet")
	}

	if err := s.repo.MarkWaitingForReupload(ctx, request.ID, payload.Reason); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to request reupload")
	}

	s.recordAudit(ctx, professorID, models.AuditActionRequestReupload, request.ID)

	request.Status = models.RequestStatusWaitingForReupload
	request.ReuploadReason = &payload.Reason
	request.SignedCoordinationRequestFile = nil
	result := s.toDTO(*request)
	return &result, nil
}

// AttachSignedFile records the student's signed coordination request.
// Allowed from approved and waiting_for_reupload; either way the record
// settles back into approved.
func (s *RequestService) AttachSignedFile(ctx context.Context, studentID, requestID, filename string) (*dto.Request, error) {
	request, err := s.findByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another student")
	}
	if request.Status != models.RequestStatusApproved && request.Status != models.RequestStatusWaitingForReupload {
		return nil, appErrors.Clone(appErrors.ErrConflict, "signed documents can only be uploaded for approved requests")
	}

	if err := s.repo.AttachSignedFile(ctx, request.ID, filename); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach signed document")
	}

	s.recordAudit(ctx, studentID, models.AuditActionFileUpload, request.ID)

	request.Status = models.RequestStatusApproved
	request.ReuploadReason = nil
	request.SignedCoordinationRequestFile = &filename
	result := s.toDTO(*request)
	return &result, nil
}

// AttachProfessorFile records the professor's review document on an
// approved request.
func (s *RequestService) AttachProfessorFile(ctx context.Context, professorID, requestID, filename string) (*dto.Request, error) {
	request, err := s.findOwnedByProfessor(ctx, requestID, professorID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.RequestStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "review documents can only be uploaded for approved requests")
	}
	if request.SignedCoordinationRequestFile == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "the student has not uploaded a signed document yet")
	}

	if err := s.repo.AttachProfessorFile(ctx, request.ID, filename); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to attach review document")
	}

	s.recordAudit(ctx, professorID, models.AuditActionFileUpload, request.ID)

	request.ProfessorReviewFile = &filename
	result := s.toDTO(*request)
	return &result, nil
}

func (s *RequestService) diagnoseApprovalFailure(ctx context.Context, request *models.DissertationRequest) error {
	session, err := s.sessions.FindByID(ctx, request.SessionID)
	if err == nil {
		approved, countErr := s.repo.CountApproved(ctx, request.SessionID)
		if countErr == nil && approved >= session.MaxStudents {
			return appErrors.Clone(appErrors.ErrSessionFull, "session has reached its capacity")
		}
	}

	elsewhere, err := s.repo.HasApprovedElsewhere(ctx, request.StudentID, request.ProfessorID)
	if err == nil && elsewhere {
		return appErrors.Clone(appErrors.ErrConflict, "student already has an approved request with another professor")
	}

	return appErrors.Clone(appErrors.ErrConflict, "request is no longer pending")
}

func (s *RequestService) findByID(ctx context.Context, requestID string) (*models.DissertationRequest, error) {
	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) findOwnedByProfessor(ctx context.Context, requestID, professorID string) (*models.DissertationRequest, error) {
	request, err := s.findByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.ProfessorID != professorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another professor")
	}
	return request, nil
}

func (s *RequestService) toDTO(request models.DissertationRequest) dto.Request {
	result := dto.FromRequest(request)
	result.Documents = s.documentsFor(request)
	return result
}

func (s *RequestService) toDetailDTOs(details []models.RequestDetail) []dto.RequestDetail {
	result := make([]dto.RequestDetail, 0, len(details))
	for _, detail := range details {
		mapped := dto.FromRequestDetail(detail)
		mapped.Documents = s.documentsFor(detail.DissertationRequest)
		result = append(result, mapped)
	}
	return result
}

func (s *RequestService) documentsFor(request models.DissertationRequest) []dto.Document {
	if s.links == nil {
		return nil
	}
	return s.links.DocumentsFor(request)
}

func (s *RequestService) invalidateListings(ctx context.Context) {
	if s.listings == nil {
		return
	}
	s.listings.InvalidateListings(ctx)
}

func (s *RequestService) recordAudit(ctx context.Context, userID, action, requestID string) {
	if s.metrics != nil {
		s.metrics.RecordLifecycleTransition(action)
	}
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "dissertation_request",
		ResourceID: &requestID,
	}); err != nil {
		s.logger.Warn("failed to record request audit log", zap.Error(err))
	}
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
)

const studentListingCachePrefix = "sessions:active:"

type sessionRepository interface {
	Create(ctx context.Context, session *models.RegistrationSession) error
	FindOwned(ctx context.Context, id, professorID string) (*models.RegistrationSession, error)
	ListByProfessor(ctx context.Context, professorID string) ([]models.SessionWithCounts, error)
	ListActiveForStudent(ctx context.Context, studentID string, now time.Time) ([]models.SessionForStudent, error)
	Update(ctx context.Context, session *models.RegistrationSession) error
	DeleteCascade(ctx context.Context, id string) error
	HasOverlapping(ctx context.Context, professorID string, start, end time.Time, excludeID string) (bool, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionRequestCounter interface {
	CountApproved(ctx context.Context, sessionID string) (int, error)
}

type listingCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheLookupRecorder interface {
	RecordCacheLookup(hit bool)
}

// SessionConfig carries the business toggles for session management.
type SessionConfig struct {
	AllowOverlap    bool
	CacheEnabled    bool
	CacheTTL        time.Duration
	DefaultDuration time.Duration
}

// SessionService manages the registration-session lifecycle.
type SessionService struct {
	repo      sessionRepository
	requests  sessionRequestCounter
	cache     listingCache
	audit     auditRecorder
	metrics   cacheLookupRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    SessionConfig
	now       func() time.Time
}

// NewSessionService constructs a SessionService. The cache, audit
// recorder and metrics may be nil.
func NewSessionService(repo sessionRepository, requests sessionRequestCounter, cache listingCache, audit auditRecorder, metrics cacheLookupRecorder, validate *validator.Validate, logger *zap.Logger, config SessionConfig) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SessionService{
		repo:      repo,
		requests:  requests,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create opens a new registration session owned by the professor.
func (s *SessionService) Create(ctx context.Context, professorID string, req models.CreateSessionRequest) (*dto.Session, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	if !req.EndDate.After(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}

	if !s.config.AllowOverlap {
		overlapping, err := s.repo.HasOverlapping(ctx, professorID, req.StartDate, req.EndDate, "")
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check overlapping sessions")
		}
		if overlapping {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active session already covers this period")
		}
	}

	session := &models.RegistrationSession{
		ProfessorID: professorID,
		Title:       req.Title,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		MaxStudents: req.MaxStudents,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.invalidateListings(ctx)
	s.recordAudit(ctx, professorID, models.AuditActionSessionCreate, session.ID)

	result := dto.FromSession(*session)
	return &result, nil
}

// ListByProfessor returns the professor's sessions with occupancy counts.
func (s *SessionService) ListByProfessor(ctx context.Context, professorID string) ([]dto.SessionWithCounts, error) {
	sessions, err := s.repo.ListByProfessor(ctx, professorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}
	result := make([]dto.SessionWithCounts, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, dto.FromSessionWithCounts(session))
	}
	return result, nil
}

// GetOwned returns a single session owned by the professor.
func (s *SessionService) GetOwned(ctx context.Context, professorID, sessionID string) (*dto.SessionWithCounts, error) {
	session, err := s.findOwned(ctx, sessionID, professorID)
	if err != nil {
		return nil, err
	}
	approved, err := s.requests.CountApproved(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved requests")
	}
	result := dto.FromSessionWithCounts(models.SessionWithCounts{RegistrationSession: *session, ApprovedCount: approved})
	return &result, nil
}

// ListActiveForStudent returns sessions currently open for requests,
// annotated with the calling student's own request state. Listings are
// cached per student for a short TTL when the cache is enabled.
func (s *SessionService) ListActiveForStudent(ctx context.Context, studentID string) ([]dto.StudentSession, error) {
	cacheKey := studentListingCachePrefix + studentID
	if s.cacheEnabled() {
		var cached []dto.StudentSession
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.recordCacheLookup(true)
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("session listing cache read failed", zap.Error(err))
		}
		s.recordCacheLookup(false)
	}

	sessions, err := s.repo.ListActiveForStudent(ctx, studentID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list active sessions")
	}
	result := make([]dto.StudentSession, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, dto.FromSessionForStudent(session))
	}

	if s.cacheEnabled() {
		if err := s.cache.Set(ctx, cacheKey, result, s.config.CacheTTL); err != nil {
			s.logger.Warn("session listing cache write failed", zap.Error(err))
		}
	}
	return result, nil
}

// Update applies a partial update to an owned session. The capacity can
// never be lowered below the current number of approved requests.
func (s *SessionService) Update(ctx context.Context, professorID, sessionID string, patch models.SessionPatch) (*dto.Session, error) {
	session, err := s.findOwned(ctx, sessionID, professorID)
	if err != nil {
		return nil, err
	}

	if patch.Title != nil {
		session.Title = *patch.Title
	}
	if patch.Description != nil {
		session.Description = *patch.Description
	}
	if patch.StartDate != nil {
		session.StartDate = *patch.StartDate
	}
	if patch.EndDate != nil {
		session.EndDate = *patch.EndDate
	}
	if patch.MaxStudents != nil {
		session.MaxStudents = *patch.MaxStudents
	}
	if patch.IsActive != nil {
		session.IsActive = *patch.IsActive
	}

	if !session.EndDate.After(session.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}
	if session.MaxStudents < 1 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_students must be at least 1")
	}

	approved, err := s.requests.CountApproved(ctx, sessionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved requests")
	}
	if session.MaxStudents < approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("max_students cannot drop below the %d already approved requests", approved))
	}

	if !s.config.AllowOverlap && session.IsActive && (patch.StartDate != nil || patch.EndDate != nil || patch.IsActive != nil) {
		overlapping, err := s.repo.HasOverlapping(ctx, professorID, session.StartDate, session.EndDate, sessionID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check overlapping sessions")
		}
		if overlapping {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an active session already covers this period")
		}
	}

	if err := s.repo.Update(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	s.invalidateListings(ctx)
	s.recordAudit(ctx, professorID, models.AuditActionSessionUpdate, sessionID)

	result := dto.FromSession(*session)
	return &result, nil
}

// Delete removes an owned session and its pending requests. A session
// holding approved requests cannot be deleted.
func (s *SessionService) Delete(ctx context.Context, professorID, sessionID string) error {
	if _, err := s.findOwned(ctx, sessionID, professorID); err != nil {
		return err
	}

	approved, err := s.requests.CountApproved(ctx, sessionID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count approved requests")
	}
	if approved > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "session has approved requests and cannot be deleted")
	}

	if err := s.repo.DeleteCascade(ctx, sessionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete session")
	}

	s.invalidateListings(ctx)
	s.recordAudit(ctx, professorID, models.AuditActionSessionDelete, sessionID)
	return nil
}

// DeactivateExpired flips is_active off on sessions whose end date has
// passed. Intended to run periodically from the server loop.
func (s *SessionService) DeactivateExpired(ctx context.Context) (int64, error) {
	affected, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate expired sessions")
	}
	if affected > 0 {
		s.invalidateListings(ctx)
		s.logger.Info("deactivated expired sessions", zap.Int64("count", affected))
	}
	return affected, nil
}

// InvalidateListings drops the cached student listings. Exposed so the
// request lifecycle can reflect occupancy changes immediately.
func (s *SessionService) InvalidateListings(ctx context.Context) {
	s.invalidateListings(ctx)
}

func (s *SessionService) findOwned(ctx context.Context, sessionID, professorID string) (*models.RegistrationSession, error) {
	session, err := s.repo.FindOwned(ctx, sessionID, professorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *SessionService) recordCacheLookup(hit bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordCacheLookup(hit)
}

func (s *SessionService) cacheEnabled() bool {
	return s.config.CacheEnabled && s.cache != nil
}

func (s *SessionService) invalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, studentListingCachePrefix+"*"); err != nil {
		s.logger.Warn("session listing cache invalidation failed", zap.Error(err))
	}
}

func (s *SessionService) recordAudit(ctx context.Context, userID, action, resourceID string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   "registration_session",
		ResourceID: &resourceID,
	}); err != nil {
		s.logger.Warn("failed to record session audit log", zap.Error(err))
	}
}

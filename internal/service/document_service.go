package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/dissertation-portal-api/internal/models"
	"github.com/noah-isme/dissertation-portal-api/pkg/export"
	"github.com/noah-isme/dissertation-portal-api/pkg/jobs"
	"github.com/noah-isme/dissertation-portal-api/pkg/storage"
)

const jobTypeCoordinationForm = "coordination_form"

type documentRequestStore interface {
	FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error)
	SetPreliminaryFile(ctx context.Context, id, filename string) error
}

type formRenderer interface {
	Render(form export.CoordinationForm) ([]byte, error)
}

type documentFileStorage interface {
	Save(filename string, data []byte) (string, error)
}

type formGenerationRecorder interface {
	RecordFormGenerated()
}

// DocumentConfig tunes the background form-generation workers.
type DocumentConfig struct {
	Enabled     bool
	Concurrency int
	MaxRetries  int
}

// DocumentService renders the coordination-request form for each new
// request in the background and attaches it as the preliminary document.
type DocumentService struct {
	repo     documentRequestStore
	renderer formRenderer
	storage  documentFileStorage
	metrics  formGenerationRecorder
	logger   *zap.Logger
	queue    *jobs.Queue
	enabled  bool
	now      func() time.Time
}

// NewDocumentService constructs the service and its worker queue. The
// metrics recorder may be nil.
func NewDocumentService(repo documentRequestStore, renderer formRenderer, fileStorage documentFileStorage, metrics formGenerationRecorder, logger *zap.Logger, cfg DocumentConfig) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DocumentService{
		repo:     repo,
		renderer: renderer,
		storage:  fileStorage,
		metrics:  metrics,
		logger:   logger,
		enabled:  cfg.Enabled,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("documents", s.handle, jobs.QueueConfig{
		Workers:    cfg.Concurrency,
		MaxRetries: cfg.MaxRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *DocumentService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *DocumentService) Stop() {
	if !s.enabled {
		return
	}
	s.queue.Stop()
}

// ScheduleCoordinationForm queues form generation for a request. Failures
// to enqueue are logged, not surfaced: the submission itself already
// succeeded and the form can be regenerated.
func (s *DocumentService) ScheduleCoordinationForm(requestID string) {
	if !s.enabled {
		return
	}
	err := s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobTypeCoordinationForm,
		Payload: requestID,
	})
	if err != nil {
		s.logger.Warn("failed to enqueue coordination form", zap.String("request_id", requestID), zap.Error(err))
	}
}

func (s *DocumentService) handle(ctx context.Context, job jobs.Job) error {
	requestID, ok := job.Payload.(string)
	if !ok || requestID == "" {
		return fmt.Errorf("coordination form job carries no request id")
	}

	detail, err := s.repo.FindDetailByID(ctx, requestID)
	if err != nil {
		return fmt.Errorf("load request %s: %w", requestID, err)
	}

	pdfBytes, err := s.renderer.Render(export.CoordinationForm{
		StudentName:    detail.StudentFirstName + " " + detail.StudentLastName,
		StudentEmail:   detail.StudentEmail,
		ProfessorName:  detail.ProfessorFirstName + " " + detail.ProfessorLastName,
		ProfessorEmail: detail.ProfessorEmail,
		SessionTitle:   detail.SessionTitle,
		Title:          detail.DissertationTitle,
		SubmittedAt:    detail.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("render coordination form for %s: %w", requestID, err)
	}

	filename := storage.StoredName(detail.StudentID, "coordination-request.pdf", s.now())
	if _, err := s.storage.Save(filename, pdfBytes); err != nil {
		return fmt.Errorf("store coordination form for %s: %w", requestID, err)
	}
	if err := s.repo.SetPreliminaryFile(ctx, requestID, filename); err != nil {
		return fmt.Errorf("attach coordination form for %s: %w", requestID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordFormGenerated()
	}
	s.logger.Info("coordination form generated",
		zap.String("request_id", requestID),
		zap.String("filename", filename))
	return nil
}

package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
	"github.com/noah-isme/dissertation-portal-api/pkg/storage"
)

type uploadRequestReader interface {
	FindByID(ctx context.Context, id string) (*models.DissertationRequest, error)
}

type uploadFileStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Open(filename string) (*os.File, error)
}

type uploadSignedURLSigner interface {
	Generate(id, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (id, relPath string, expiresAt time.Time, err error)
}

// DocumentUpload carries upload metadata and a rewindable stream.
type DocumentUpload struct {
	Filename string
	Size     int64
	Content  io.ReadSeeker
}

// DocumentDownload bundles an open file with streaming metadata.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// UploadConfig holds validation parameters for document uploads.
type UploadConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	APIPrefix    string
}

// UploadService validates and stores document uploads and brokers
// token-signed downloads.
type UploadService struct {
	requests uploadRequestReader
	storage  uploadFileStorage
	signer   uploadSignedURLSigner
	logger   *zap.Logger
	cfg      UploadConfig
	mimeSet  map[string]struct{}
	now      func() time.Time
}

// NewUploadService constructs the service with defaults.
func NewUploadService(requests uploadRequestReader, fileStorage uploadFileStorage, signer uploadSignedURLSigner, logger *zap.Logger, cfg UploadConfig) *UploadService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf"}
	}
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &UploadService{
		requests: requests,
		storage:  fileStorage,
		signer:   signer,
		logger:   logger,
		cfg:      cfg,
		mimeSet:  mimeSet,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Store validates the upload and writes it under the canonical
// {uploader}_{timestamp}_{filename} name, returning the stored name.
func (s *UploadService) Store(ctx context.Context, uploaderID string, upload DocumentUpload) (string, error) {
	if upload.Content == nil || upload.Size <= 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if upload.Size > s.cfg.MaxFileSize {
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds %d bytes limit", s.cfg.MaxFileSize))
	}

	mimeType, err := s.detectMime(upload)
	if err != nil {
		return "", err
	}
	if _, allowed := s.mimeSet[strings.ToLower(mimeType)]; !allowed {
		return "", appErrors.Clone(appErrors.ErrValidation, "only PDF documents are accepted")
	}

	filename := storage.StoredName(uploaderID, upload.Filename, s.now())
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	stored, err := s.storage.SaveStream(filename, upload.Content)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist document")
	}
	return stored, nil
}

// DocumentsFor builds the signed download descriptors for every file
// slot the request has populated.
func (s *UploadService) DocumentsFor(request models.DissertationRequest) []dto.Document {
	kinds := []models.DocumentKind{models.DocumentPreliminary, models.DocumentSignedRequest, models.DocumentProfessorReview}
	documents := make([]dto.Document, 0, len(kinds))
	for _, kind := range kinds {
		file := request.FileFor(kind)
		if file == nil || *file == "" {
			continue
		}
		doc := dto.Document{Kind: kind, Filename: *file}
		if s.signer != nil {
			token, _, err := s.signer.Generate(request.ID, *file)
			if err != nil {
				s.logger.Warn("failed to sign download token", zap.String("request_id", request.ID), zap.Error(err))
			} else {
				base := strings.TrimRight(s.cfg.APIPrefix, "/")
				doc.DownloadURL = fmt.Sprintf("%s/requests/%s/documents/%s/download?token=%s", base, request.ID, kind, token)
			}
		}
		documents = append(documents, doc)
	}
	return documents
}

// Download validates the token against the request's file slot and opens
// the stored document. Only the two parties of a request may download.
func (s *UploadService) Download(ctx context.Context, requestID string, kind models.DocumentKind, token string, actor *models.JWTClaims) (*DocumentDownload, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if !models.ValidDocumentKind(kind) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown document kind")
	}

	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	if request.StudentID != actor.UserID && request.ProfessorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")
	}

	file := request.FileFor(kind)
	if file == nil || *file == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document not uploaded yet")
	}

	tokenRequestID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token")
	}
	if tokenRequestID != request.ID || relPath != *file {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}

	handle, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open document")
	}
	info, err := handle.Stat()
	if err != nil {
		handle.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read document metadata")
	}
	return &DocumentDownload{
		File:      handle,
		Filename:  filepath.Base(relPath),
		MimeType:  "application/pdf",
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

// detectMime sniffs the stream content; client-declared types are
// never consulted.
func (s *UploadService) detectMime(upload DocumentUpload) (string, error) {
	header := make([]byte, 512)
	n, err := upload.Content.Read(header)
	if err != nil && err != io.EOF {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to inspect file")
	}
	if _, err := upload.Content.Seek(0, io.SeekStart); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset upload stream")
	}
	if n == 0 {
		return "", appErrors.Clone(appErrors.ErrValidation, "empty file")
	}
	return http.DetectContentType(header[:n]), nil
}

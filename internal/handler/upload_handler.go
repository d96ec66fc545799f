package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	"github.com/noah-isme/dissertation-portal-api/internal/service"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
	"github.com/noah-isme/dissertation-portal-api/pkg/response"
)

type uploadService interface {
	Store(ctx context.Context, uploaderID string, upload service.DocumentUpload) (string, error)
	Download(ctx context.Context, requestID string, kind models.DocumentKind, token string, actor *models.JWTClaims) (*service.DocumentDownload, error)
}

type documentAttacher interface {
	AttachSignedFile(ctx context.Context, studentID, requestID, filename string) (*dto.Request, error)
	AttachProfessorFile(ctx context.Context, professorID, requestID, filename string) (*dto.Request, error)
}

// UploadHandler manages signed document uploads and downloads.
type UploadHandler struct {
	uploads  uploadService
	requests documentAttacher
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(uploads uploadService, requests documentAttacher) *UploadHandler {
	return &UploadHandler{uploads: uploads, requests: requests}
}

// UploadSigned godoc
// @Summary Upload the signed coordination document
// @Description Attach the countersigned coordination PDF to an approved request
// @Tags Documents
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Request ID"
// @Param file formData file true "Signed PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /student/requests/{id}/signed-document [post]
func (h *UploadHandler) UploadSigned(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upload, err := h.formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename, err := h.uploads.Store(c.Request.Context(), claims.UserID, *upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	request, err := h.requests.AttachSignedFile(c.Request.Context(), claims.UserID, c.Param("id"), filename)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// UploadResponse godoc
// @Summary Upload the professor response document
// @Description Attach the professor's signed review PDF to an approved request
// @Tags Documents
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Request ID"
// @Param file formData file true "Response PDF"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /professor/requests/{id}/response-document [post]
func (h *UploadHandler) UploadResponse(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	upload, err := h.formUpload(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename, err := h.uploads.Store(c.Request.Context(), claims.UserID, *upload)
	if err != nil {
		response.Error(c, err)
		return
	}

	request, err := h.requests.AttachProfessorFile(c.Request.Context(), claims.UserID, c.Param("id"), filename)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// Download godoc
// @Summary Download a request document via signed token
// @Tags Documents
// @Security BearerAuth
// @Produce octet-stream
// @Param id path string true "Request ID"
// @Param kind path string true "Document kind"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/documents/{kind}/download [get]
func (h *UploadHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	kind := models.DocumentKind(c.Param("kind"))
	result, err := h.uploads.Download(c.Request.Context(), c.Param("id"), kind, token, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

func (h *UploadHandler) formUpload(c *gin.Context) (*service.DocumentUpload, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	defer src.Close() //nolint:errcheck

	buf, err := io.ReadAll(src)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to buffer file")
	}

	return &service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		Content:  bytes.NewReader(buf),
	}, nil
}

package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/middleware"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	"github.com/noah-isme/dissertation-portal-api/internal/service"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
)

type uploadServiceMock struct {
	storedName string
	storeErr   error

	lastUploaderID string
	lastFilename   string
	lastSize       int64
	lastContent    []byte
}

func (m *uploadServiceMock) Store(ctx context.Context, uploaderID string, upload service.DocumentUpload) (string, error) {
	m.lastUploaderID = uploaderID
	m.lastFilename = upload.Filename
	m.lastSize = upload.Size
	m.lastContent, _ = io.ReadAll(upload.Content)
	if m.storeErr != nil {
		return "", m.storeErr
	}
	return m.storedName, nil
}

func (m *uploadServiceMock) Download(ctx context.Context, requestID string, kind models.DocumentKind, token string, actor *models.JWTClaims) (*service.DocumentDownload, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "document not uploaded yet")
}

type documentAttacherMock struct {
	resp *dto.Request
	err  error

	lastUserID    string
	lastRequestID string
	lastFilename  string
}

func (m *documentAttacherMock) AttachSignedFile(ctx context.Context, studentID, requestID, filename string) (*dto.Request, error) {
	m.lastUserID = studentID
	m.lastRequestID = requestID
	m.lastFilename = filename
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func (m *documentAttacherMock) AttachProfessorFile(ctx context.Context, professorID, requestID, filename string) (*dto.Request, error) {
	m.lastUserID = professorID
	m.lastRequestID = requestID
	m.lastFilename = filename
	if m.err != nil {
		return nil, m.err
	}
	return m.resp, nil
}

func multipartBody(t *testing.T, fieldName, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile(fieldName, filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestUploadHandlerUploadSigned(t *testing.T) {
	gin.SetMode(gin.TestMode)
	uploads := &uploadServiceMock{storedName: "stu-1_1700000000000_signed.pdf"}
	attacher := &documentAttacherMock{resp: &dto.Request{ID: "req-1", Status: models.RequestStatusApproved}}
	h := NewUploadHandler(uploads, attacher)

	body, contentType := multipartBody(t, "file", "signed.pdf", []byte("%PDF-1.4 fake"))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/student/requests/req-1/signed-document", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	h.UploadSigned(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "stu-1", uploads.lastUploaderID)
	assert.Equal(t, "signed.pdf", uploads.lastFilename)
	assert.Equal(t, []byte("%PDF-1.4 fake"), uploads.lastContent)
	assert.Equal(t, "stu-1_1700000000000_signed.pdf", attacher.lastFilename)
	assert.Equal(t, "req-1", attacher.lastRequestID)
}

func TestUploadHandlerUploadSignedMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUploadHandler(&uploadServiceMock{}, &documentAttacherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/student/requests/req-1/signed-document", bytes.NewReader(nil))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	h.UploadSigned(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerUploadResponseRejectedUpstream(t *testing.T) {
	gin.SetMode(gin.TestMode)
	uploads := &uploadServiceMock{storeErr: appErrors.Clone(appErrors.ErrValidation, "only PDF documents are accepted")}
	h := NewUploadHandler(uploads, &documentAttacherMock{})

	body, contentType := multipartBody(t, "file", "review.docx", []byte("not a pdf"))
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/professor/requests/req-1/response-document", body)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "prof-1", Role: models.RoleProfessor})

	h.UploadResponse(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewUploadHandler(&uploadServiceMock{}, &documentAttacherMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/requests/req-1/documents/signed-request/download", nil)
	c.Request = req
	c.Params = gin.Params{
		{Key: "id", Value: "req-1"},
		{Key: "kind", Value: "signed-request"},
	}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	h.Download(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/middleware"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
)

type requestServiceMock struct {
	submitResp  *dto.Request
	submitErr   error
	details     []dto.RequestDetail
	pagination  models.Pagination
	getResp     *dto.RequestDetail
	getErr      error
	approveResp *dto.ApprovalResult
	approveErr  error
	decided     *dto.Request
	decideErr   error

	lastStudentID   string
	lastProfessorID string
	lastRequestID   string
	lastFilter      models.RequestFilter
	lastReason      string
}

func (m *requestServiceMock) Submit(ctx context.Context, studentID string, payload models.SubmitRequestPayload) (*dto.Request, error) {
	m.lastStudentID = studentID
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return m.submitResp, nil
}

func (m *requestServiceMock) ListForStudent(ctx context.Context, studentID string) ([]dto.RequestDetail, error) {
	m.lastStudentID = studentID
	return m.details, nil
}

func (m *requestServiceMock) ListForProfessor(ctx context.Context, professorID string, filter models.RequestFilter) ([]dto.RequestDetail, models.Pagination, error) {
	m.lastProfessorID = professorID
	m.lastFilter = filter
	return m.details, m.pagination, nil
}

func (m *requestServiceMock) ListBySession(ctx context.Context, professorID, sessionID string) ([]dto.RequestDetail, error) {
	m.lastProfessorID = professorID
	m.lastRequestID = sessionID
	return m.details, nil
}

func (m *requestServiceMock) GetAuthorized(ctx context.Context, requestID, userID string) (*dto.RequestDetail, error) {
	m.lastRequestID = requestID
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.getResp, nil
}

func (m *requestServiceMock) Approve(ctx context.Context, professorID, requestID string) (*dto.ApprovalResult, error) {
	m.lastProfessorID = professorID
	m.lastRequestID = requestID
	if m.approveErr != nil {
		return nil, m.approveErr
	}
	return m.approveResp, nil
}

func (m *requestServiceMock) Reject(ctx context.Context, professorID, requestID string, payload models.ReasonPayload) (*dto.Request, error) {
	m.lastProfessorID = professorID
	m.lastRequestID = requestID
	m.lastReason = payload.Reason
	if m.decideErr != nil {
		return nil, m.decideErr
	}
	return m.decided, nil
}

func (m *requestServiceMock) RequestReupload(ctx context.Context, professorID, requestID string, payload models.ReasonPayload) (*dto.Request, error) {
	m.lastProfessorID = professorID
	m.lastRequestID = requestID
	m.lastReason = payload.Reason
	if m.decideErr != nil {
		return nil, m.decideErr
	}
	return m.decided, nil
}

func studentContext(t *testing.T, method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})
	return c, w
}

func TestRequestHandlerSubmit(t *testing.T) {
	svc := &requestServiceMock{submitResp: &dto.Request{ID: "req-1", Status: models.RequestStatusPending}}
	h := NewRequestHandler(svc)

	body, _ := json.Marshal(models.SubmitRequestPayload{SessionID: "ses-1", DissertationTitle: "Graph sampling"})
	c, w := studentContext(t, http.MethodPost, "/student/requests", body)

	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "stu-1", svc.lastStudentID)
	assert.Contains(t, w.Body.String(), "req-1")
}

func TestRequestHandlerSubmitSessionFull(t *testing.T) {
	svc := &requestServiceMock{submitErr: appErrors.Clone(appErrors.ErrSessionFull, "session has reached its capacity")}
	h := NewRequestHandler(svc)

	body, _ := json.Marshal(models.SubmitRequestPayload{SessionID: "ses-1", DissertationTitle: "Graph sampling"})
	c, w := studentContext(t, http.MethodPost, "/student/requests", body)

	h.Submit(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_FULL")
}

func TestRequestHandlerListForProfessorParsesQuery(t *testing.T) {
	svc := &requestServiceMock{pagination: models.Pagination{Page: 2, PageSize: 10, TotalCount: 31}}
	h := NewRequestHandler(svc)
	c, w := professorContext(t, http.MethodGet, "/professor/requests?status=pending&page=2&page_size=10", nil)

	h.ListForProfessor(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestStatusPending, svc.lastFilter.Status)
	assert.Equal(t, 2, svc.lastFilter.Page)
	assert.Equal(t, 10, svc.lastFilter.PageSize)
}

func TestRequestHandlerApprove(t *testing.T) {
	svc := &requestServiceMock{approveResp: &dto.ApprovalResult{
		Request:              dto.Request{ID: "req-1", Status: models.RequestStatusApproved},
		DeletedRequestsCount: 2,
	}}
	h := NewRequestHandler(svc)
	c, w := professorContext(t, http.MethodPost, "/professor/requests/req-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	h.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", svc.lastRequestID)
	assert.Contains(t, w.Body.String(), "deleted_requests_count")
}

func TestRequestHandlerRejectInvalidBody(t *testing.T) {
	h := NewRequestHandler(&requestServiceMock{})
	c, w := professorContext(t, http.MethodPost, "/professor/requests/req-1/reject", []byte(`oops`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	h.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerRejectPassesReason(t *testing.T) {
	svc := &requestServiceMock{decided: &dto.Request{ID: "req-1", Status: models.RequestStatusRejected}}
	h := NewRequestHandler(svc)
	body, _ := json.Marshal(models.ReasonPayload{Reason: "topic already taken"})
	c, w := professorContext(t, http.MethodPost, "/professor/requests/req-1/reject", body)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	h.Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "topic already taken", svc.lastReason)
}

func TestRequestHandlerGetForbidden(t *testing.T) {
	svc := &requestServiceMock{getErr: appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")}
	h := NewRequestHandler(svc)
	c, w := studentContext(t, http.MethodGet, "/requests/req-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}

	h.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

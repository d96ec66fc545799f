package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/dissertation-portal-api/internal/dto"
	"github.com/noah-isme/dissertation-portal-api/internal/models"
	appErrors "github.com/noah-isme/dissertation-portal-api/pkg/errors"
	"github.com/noah-isme/dissertation-portal-api/pkg/response"
)

type requestService interface {
	Submit(ctx context.Context, studentID string, payload models.SubmitRequestPayload) (*dto.Request, error)
	ListForStudent(ctx context.Context, studentID string) ([]dto.RequestDetail, error)
	ListForProfessor(ctx context.Context, professorID string, filter models.RequestFilter) ([]dto.RequestDetail, models.Pagination, error)
	ListBySession(ctx context.Context, professorID, sessionID string) ([]dto.RequestDetail, error)
	GetAuthorized(ctx context.Context, requestID, userID string) (*dto.RequestDetail, error)
	Approve(ctx context.Context, professorID, requestID string) (*dto.ApprovalResult, error)
	Reject(ctx context.Context, professorID, requestID string, payload models.ReasonPayload) (*dto.Request, error)
	RequestReupload(ctx context.Context, professorID, requestID string, payload models.ReasonPayload) (*dto.Request, error)
}

// RequestHandler exposes the dissertation request lifecycle endpoints.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler creates a new handler.
func NewRequestHandler(svc requestService) *RequestHandler {
	return &RequestHandler{service: svc}
}

// Submit godoc
// @Summary Submit a dissertation request
// @Description Submit a supervision request against an open session
// @Tags Requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body models.SubmitRequestPayload true "Request payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /student/requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.SubmitRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	request, err := h.service.Submit(c.Request.Context(), claims.UserID, payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, request)
}

// ListForStudent godoc
// @Summary List own requests
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /student/requests [get]
func (h *RequestHandler) ListForStudent(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.service.ListForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, nil)
}

// ListForProfessor godoc
// @Summary List incoming requests
// @Description List requests across the professor's sessions, optionally filtered by status
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /professor/requests [get]
func (h *RequestHandler) ListForProfessor(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	filter := models.RequestFilter{
		Status: models.RequestStatus(c.Query("status")),
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	requests, pagination, err := h.service.ListForProfessor(c.Request.Context(), claims.UserID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, &pagination)
}

// ListBySession godoc
// @Summary List requests of one session
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /professor/sessions/{id}/requests [get]
func (h *RequestHandler) ListBySession(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	requests, err := h.service.ListBySession(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, requests, nil)
}

// Get godoc
// @Summary Get one request
// @Description Fetch a request the caller is a party to
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	request, err := h.service.GetAuthorized(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// Approve godoc
// @Summary Approve a request
// @Description Approve a pending request; the student's other pending requests are withdrawn
// @Tags Requests
// @Security BearerAuth
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /professor/requests/{id}/approve [put]
func (h *RequestHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.service.Approve(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a request
// @Tags Requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.ReasonPayload true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /professor/requests/{id}/reject [put]
func (h *RequestHandler) Reject(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.ReasonPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reason payload"))
		return
	}

	request, err := h.service.Reject(c.Request.Context(), claims.UserID, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

// RequestReupload godoc
// @Summary Request a new signed document
// @Description Ask the student to upload the signed coordination document again
// @Tags Requests
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.ReasonPayload true "Reupload reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /professor/requests/{id}/request-reupload [put]
func (h *RequestHandler) RequestReupload(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload models.ReasonPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reason payload"))
		return
	}

	request, err := h.service.RequestReupload(c.Request.Context(), claims.UserID, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, request, nil)
}

package dto

import (
	"time"

	"github.com/noah-isme/dissertation-portal-api/internal/models"
)

// Request is the wire representation of a dissertation request.
type Request struct {
	ID                string               `json:"id"`
	SessionID         string               `json:"session_id"`
	StudentID         string               `json:"student_id"`
	ProfessorID       string               `json:"professor_id"`
	Status            models.RequestStatus `json:"status"`
	RejectionReason   *string              `json:"rejection_reason,omitempty"`
	ReuploadReason    *string              `json:"reupload_reason,omitempty"`
	DissertationTitle string               `json:"dissertation_title"`
	Documents         []Document           `json:"documents"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Document describes one attached file slot with its signed download URL.
type Document struct {
	Kind        models.DocumentKind `json:"kind"`
	Filename    string              `json:"filename"`
	DownloadURL string              `json:"download_url,omitempty"`
}

// RequestDetail embeds the joined student, professor and session context.
type RequestDetail struct {
	Request
	Student   PersonRef  `json:"student"`
	Professor PersonRef  `json:"professor"`
	Session   SessionRef `json:"session"`
}

// SessionRef is a compact session reference embedded in request listings.
type SessionRef struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

// ApprovalResult reports an approval together with its cascade side effect.
type ApprovalResult struct {
	Request              Request `json:"request"`
	DeletedRequestsCount int     `json:"deleted_requests_count"`
}

// FromRequest maps the persistence struct to its wire shape. Documents are
// attached separately so URL signing stays out of the model layer.
func FromRequest(r models.DissertationRequest) Request {
	return Request{
		ID:                r.ID,
		SessionID:         r.SessionID,
		StudentID:         r.StudentID,
		ProfessorID:       r.ProfessorID,
		Status:            r.Status,
		RejectionReason:   r.RejectionReason,
		ReuploadReason:    r.ReuploadReason,
		DissertationTitle: r.DissertationTitle,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// FromRequestDetail maps a joined request row.
func FromRequestDetail(r models.RequestDetail) RequestDetail {
	return RequestDetail{
		Request: FromRequest(r.DissertationRequest),
		Student: PersonRef{
			ID:        r.StudentID,
			Email:     r.StudentEmail,
			FirstName: r.StudentFirstName,
			LastName:  r.StudentLastName,
		},
		Professor: PersonRef{
			ID:        r.ProfessorID,
			Email:     r.ProfessorEmail,
			FirstName: r.ProfessorFirstName,
			LastName:  r.ProfessorLastName,
		},
		Session: SessionRef{
			ID:        r.SessionID,
			Title:     r.SessionTitle,
			StartDate: r.SessionStartDate,
			EndDate:   r.SessionEndDate,
		},
	}
}

package models

import "time"

// RequestStatus represents the lifecycle state of a dissertation request.
type RequestStatus string

// Lifecycle states. Rejected is terminal; approved and
// waiting_for_reupload admit further transitions.
const (
	RequestStatusPending            RequestStatus = "pending"
	RequestStatusApproved           RequestStatus = "approved"
	RequestStatusRejected           RequestStatus = "rejected"
	RequestStatusWaitingForReupload RequestStatus = "waiting_for_reupload"
)

// DocumentKind identifies which of a request's file slots is addressed.
type DocumentKind string

const (
	DocumentPreliminary     DocumentKind = "preliminary"
	DocumentSignedRequest   DocumentKind = "signed-request"
	DocumentProfessorReview DocumentKind = "professor-review"
)

// ValidDocumentKind reports whether the kind names a known file slot.
func ValidDocumentKind(kind DocumentKind) bool {
	switch kind {
	case DocumentPreliminary, DocumentSignedRequest, DocumentProfessorReview:
		return true
	}
	return false
}

// DissertationRequest is a student's application to a registration
// session. professor_id is copied from the session at creation and never
// changes afterwards.
type DissertationRequest struct {
	ID                            string        `db:"id" json:"id"`
	SessionID                     string        `db:"session_id" json:"session_id"`
	StudentID                     string        `db:"student_id" json:"student_id"`
	ProfessorID                   string        `db:"professor_id" json:"professor_id"`
	Status                        RequestStatus `db:"status" json:"status"`
	RejectionReason               *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReuploadReason                *string       `db:"reupload_reason" json:"reupload_reason,omitempty"`
	DissertationTitle             string        `db:"dissertation_title" json:"dissertation_title"`
	PreliminaryRequestFile        *string       `db:"preliminary_request_file" json:"preliminary_request_file,omitempty"`
	SignedCoordinationRequestFile *string       `db:"signed_coordination_request_file" json:"signed_coordination_request_file,omitempty"`
	ProfessorReviewFile           *string       `db:"professor_review_file" json:"professor_review_file,omitempty"`
	CreatedAt                     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt                     time.Time     `db:"updated_at" json:"updated_at"`
}

// FileFor returns the stored filename for the given document kind.
func (r *DissertationRequest) FileFor(kind DocumentKind) *string {
	switch kind {
	case DocumentPreliminary:
		return r.PreliminaryRequestFile
	case DocumentSignedRequest:
		return r.SignedCoordinationRequestFile
	case DocumentProfessorReview:
		return r.ProfessorReviewFile
	}
	return nil
}

// RequestDetail enriches a request with the joined student, professor and
// session context used by listings.
type RequestDetail struct {
	DissertationRequest
	StudentFirstName   string    `db:"student_first_name" json:"-"`
	StudentLastName    string    `db:"student_last_name" json:"-"`
	StudentEmail       string    `db:"student_email" json:"-"`
	ProfessorFirstName string    `db:"professor_first_name" json:"-"`
	ProfessorLastName  string    `db:"professor_last_name" json:"-"`
	ProfessorEmail     string    `db:"professor_email" json:"-"`
	SessionTitle       string    `db:"session_title" json:"-"`
	SessionStartDate   time.Time `db:"session_start_date" json:"-"`
	SessionEndDate     time.Time `db:"session_end_date" json:"-"`
}

// SubmitRequestPayload holds the student submission body.
type SubmitRequestPayload struct {
	SessionID         string `json:"session_id" validate:"required"`
	DissertationTitle string `json:"dissertation_title" validate:"required"`
}

// ReasonPayload carries the mandatory reason for a rejection or a
// reupload demand.
type ReasonPayload struct {
	Reason string `json:"reason" validate:"required"`
}

// RequestFilter provides filters for professor-side request listings.
type RequestFilter struct {
	Status   RequestStatus
	Page     int
	PageSize int
}

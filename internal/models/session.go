package models

import "time"

// RegistrationSession is a professor-defined, time-boxed window accepting
// student dissertation requests up to a capacity limit.
type RegistrationSession struct {
	ID          string    `db:"id" json:"id"`
	ProfessorID string    `db:"professor_id" json:"professor_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	MaxStudents int       `db:"max_students" json:"max_students"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// AcceptsRequestsAt reports whether the session window is open at the
// given instant.
func (s *RegistrationSession) AcceptsRequestsAt(now time.Time) bool {
	return s.IsActive && !now.Before(s.StartDate) && !now.After(s.EndDate)
}

// SessionWithCounts annotates a session with its approved-request count.
type SessionWithCounts struct {
	RegistrationSession
	ApprovedCount int `db:"approved_count" json:"approved_count"`
}

// SessionForStudent adds the calling student's own request state to the
// per-session annotations.
type SessionForStudent struct {
	SessionWithCounts
	ProfessorFirstName   string  `db:"professor_first_name" json:"-"`
	ProfessorLastName    string  `db:"professor_last_name" json:"-"`
	ProfessorEmail       string  `db:"professor_email" json:"-"`
	StudentRequestID     *string `db:"student_request_id" json:"-"`
	StudentRequestStatus *string `db:"student_request_status" json:"-"`
}

// CreateSessionRequest holds the payload for opening a session.
type CreateSessionRequest struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
	MaxStudents int       `json:"max_students" validate:"required,min=1"`
}

// SessionPatch carries the optional fields of a session update.
type SessionPatch struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
	MaxStudents *int       `json:"max_students"`
	IsActive    *bool      `json:"is_active"`
}

package dto

import (
	"time"

	"github.com/noah-isme/dissertation-portal-api/internal/models"
)

// Session is the wire representation of a registration session,
// decoupled from the persistence struct.
type Session struct {
	ID          string    `json:"id"`
	ProfessorID string    `json:"professor_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	MaxStudents int       `json:"max_students"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SessionWithCounts adds occupancy annotations for professor listings.
type SessionWithCounts struct {
	Session
	ApprovedCount  int `json:"approved_count"`
	AvailableSlots int `json:"available_slots"`
}

// StudentSession is the student-facing listing entry: occupancy plus the
// calling student's own request state and the owning professor.
type StudentSession struct {
	SessionWithCounts
	Professor            PersonRef `json:"professor"`
	StudentRequestID     *string   `json:"student_request_id"`
	StudentRequestStatus *string   `json:"student_request_status"`
}

// PersonRef is a compact user reference embedded in responses.
type PersonRef struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FromSession maps the persistence struct to its wire shape.
func FromSession(s models.RegistrationSession) Session {
	return Session{
		ID:          s.ID,
		ProfessorID: s.ProfessorID,
		Title:       s.Title,
		Description: s.Description,
		StartDate:   s.StartDate,
		EndDate:     s.EndDate,
		MaxStudents: s.MaxStudents,
		IsActive:    s.IsActive,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

// FromSessionWithCounts maps an annotated session row.
func FromSessionWithCounts(s models.SessionWithCounts) SessionWithCounts {
	return SessionWithCounts{
		Session:        FromSession(s.RegistrationSession),
		ApprovedCount:  s.ApprovedCount,
		AvailableSlots: s.MaxStudents - s.ApprovedCount,
	}
}

// FromSessionForStudent maps a student-facing listing row.
func FromSessionForStudent(s models.SessionForStudent) StudentSession {
	return StudentSession{
		SessionWithCounts: FromSessionWithCounts(s.SessionWithCounts),
		Professor: PersonRef{
			ID:        s.ProfessorID,
			Email:     s.ProfessorEmail,
			FirstName: s.ProfessorFirstName,
			LastName:  s.ProfessorLastName,
		},
		StudentRequestID:     s.StudentRequestID,
		StudentRequestStatus: s.StudentRequestStatus,
	}
}

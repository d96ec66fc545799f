package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/dissertation-portal-api/internal/models"
)

// SessionRepository handles persistence of registration sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository constructs the repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create persists a new registration session.
func (r *SessionRepository) Create(ctx context.Context, session *models.RegistrationSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	const query = `INSERT INTO registration_sessions (id, professor_id, title, description, start_date, end_date, max_students, is_active, created_at, updated_at)
        VALUES (:id, :professor_id, :title, :description, :start_date, :end_date, :max_students, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// FindByID returns a session by its ID.
func (r *SessionRepository) FindByID(ctx context.Context, id string) (*models.RegistrationSession, error) {
	const query = `SELECT id, professor_id, title, description, start_date, end_date, max_students, is_active, created_at, updated_at FROM registration_sessions WHERE id = $1`
	var session models.RegistrationSession
	if err := r.db.GetContext(ctx, &session, query, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindOwned returns a session only when it belongs to the given professor.
func (r *SessionRepository) FindOwned(ctx context.Context, id, professorID string) (*models.RegistrationSession, error) {
	const query = `SELECT id, professor_id, title, description, start_date, end_date, max_students, is_active, created_at, updated_at FROM registration_sessions WHERE id = $1 AND professor_id = $2`
	var session models.RegistrationSession
	if err := r.db.GetContext(ctx, &session, query, id, professorID); err != nil {
		return nil, err
	}
	return &session, nil
}

// ListByProfessor returns the professor's sessions annotated with their
// approved-request counts, newest window first.
func (r *SessionRepository) ListByProfessor(ctx context.Context, professorID string) ([]models.SessionWithCounts, error) {
	const query = `SELECT s.id, s.professor_id, s.title, s.description, s.start_date, s.end_date, s.max_students, s.is_active, s.created_at, s.updated_at,
        COUNT(dr.id) FILTER (WHERE dr.status = 'approved') AS approved_count
        FROM registration_sessions s
        LEFT JOIN dissertation_requests dr ON dr.session_id = s.id
        WHERE s.professor_id = $1
        GROUP BY s.id
        ORDER BY s.start_date DESC`
	var sessions []models.SessionWithCounts
	if err := r.db.SelectContext(ctx, &sessions, query, professorID); err != nil {
		return nil, fmt.Errorf("list professor sessions: %w", err)
	}
	return sessions, nil
}

// ListActiveForStudent returns currently open sessions with occupancy,
// professor info and the student's own request state.
func (r *SessionRepository) ListActiveForStudent(ctx context.Context, studentID string, now time.Time) ([]models.SessionForStudent, error) {
	const query = `SELECT s.id, s.professor_id, s.title, s.description, s.start_date, s.end_date, s.max_students, s.is_active, s.created_at, s.updated_at,
        COUNT(dr.id) FILTER (WHERE dr.status = 'approved') AS approved_count,
        u.first_name AS professor_first_name, u.last_name AS professor_last_name, u.email AS professor_email,
        own.id AS student_request_id, own.status AS student_request_status
        FROM registration_sessions s
        JOIN users u ON u.id = s.professor_id
        LEFT JOIN dissertation_requests dr ON dr.session_id = s.id
        LEFT JOIN LATERAL (
            SELECT o.id, o.status FROM dissertation_requests o
            WHERE o.session_id = s.id AND o.student_id = $1
            ORDER BY o.created_at DESC LIMIT 1
        ) own ON TRUE
        WHERE s.is_active = TRUE AND s.start_date <= $2 AND s.end_date >= $2
        GROUP BY s.id, u.first_name, u.last_name, u.email, own.id, own.status
        ORDER BY s.start_date ASC`
	var sessions []models.SessionForStudent
	if err := r.db.SelectContext(ctx, &sessions, query, studentID, now); err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

// Update persists the mutable fields of a session.
func (r *SessionRepository) Update(ctx context.Context, session *models.RegistrationSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE registration_sessions SET title = :title, description = :description, start_date = :start_date, end_date = :end_date, max_students = :max_students, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return nil
}

// DeleteCascade removes the session together with its pending requests in
// one transaction. The caller must have verified that no approved
// requests remain.
func (r *SessionRepository) DeleteCascade(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete session: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM dissertation_requests WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session requests: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM registration_sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete session: %w", err)
	}
	return nil
}

// HasOverlapping reports whether the professor already owns an active
// session whose window intersects [start, end].
func (r *SessionRepository) HasOverlapping(ctx context.Context, professorID string, start, end time.Time, excludeID string) (bool, error) {
	query := `SELECT 1 FROM registration_sessions WHERE professor_id = $1 AND is_active = TRUE AND start_date <= $3 AND end_date >= $2`
	args := []interface{}{professorID, start, end}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id <> $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check overlapping sessions: %w", err)
	}
	return true, nil
}

// DeactivateExpired flips is_active off for sessions whose window has
// passed, returning the number of rows touched.
func (r *SessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE registration_sessions SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND end_date < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired sessions: %w", err)
	}
	return affected, nil
}

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

const requestDetailColumns = `dr.id, dr.session_id, dr.student_id, dr.professor_id, dr.status, dr.rejection_reason, dr.reupload_reason, dr.dissertation_title,
        dr.preliminary_request_file, dr.signed_coordination_request_file, dr.professor_review_file, dr.created_at, dr.updated_at,
        stu.first_name AS student_first_name, stu.last_name AS student_last_name, stu.email AS student_email,
        prof.first_name AS professor_first_name, prof.last_name AS professor_last_name, prof.email AS professor_email,
        s.title AS session_title, s.start_date AS session_start_date, s.end_date AS session_end_date`

const requestDetailJoins = `FROM dissertation_requests dr
        JOIN users stu ON stu.id = dr.student_id
        JOIN users prof ON prof.id = dr.professor_id
        JOIN registration_sessions s ON s.id = dr.session_id`

// RequestRepository handles persistence of dissertation requests. The
// capacity-sensitive writes (submit, approve) are single conditional
// statements so two concurrent calls cannot jointly overshoot a
// session's max_students.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// CreateWithinCapacity inserts a pending request guarded by the session's
// capacity. Returns false without inserting when the session is full.
func (r *RequestRepository) CreateWithinCapacity(ctx context.Context, request *models.DissertationRequest) (bool, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	request.Status = models.RequestStatusPending
	request.CreatedAt = now
	request.UpdatedAt = now

	const query = `INSERT INTO dissertation_requests (id, session_id, student_id, professor_id, status, dissertation_title, created_at, updated_at)
        SELECT $1, $2, $3, $4, $5, $6, $7, $7
        WHERE (SELECT COUNT(*) FROM dissertation_requests WHERE session_id = $2 AND status = 'approved')
            < (SELECT max_students FROM registration_sessions WHERE id = $2)`
	res, err := r.db.ExecContext(ctx, query,
		request.ID, request.SessionID, request.StudentID, request.ProfessorID,
		request.Status, request.DissertationTitle, now)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	return affected == 1, nil
}

// FindByID returns a request by its ID.
func (r *RequestRepository) FindByID(ctx context.Context, id string) (*models.DissertationRequest, error) {
	const query = `SELECT id, session_id, student_id, professor_id, status, rejection_reason, reupload_reason, dissertation_title,
        preliminary_request_file, signed_coordination_request_file, professor_review_file, created_at, updated_at
        FROM dissertation_requests WHERE id = $1`
	var request models.DissertationRequest
	if err := r.db.GetContext(ctx, &request, query, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// FindDetailByID returns a request with joined student, professor and
// session context.
func (r *RequestRepository) FindDetailByID(ctx context.Context, id string) (*models.RequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE dr.id = $1`, requestDetailColumns, requestDetailJoins)
	var detail models.RequestDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListDetailsBySession returns all requests for a session, newest first.
func (r *RequestRepository) ListDetailsBySession(ctx context.Context, sessionID string) ([]models.RequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE dr.session_id = $1 ORDER BY dr.created_at DESC`, requestDetailColumns, requestDetailJoins)
	var details []models.RequestDetail
	if err := r.db.SelectContext(ctx, &details, query, sessionID); err != nil {
		return nil, fmt.Errorf("list session requests: %w", err)
	}
	return details, nil
}

// ListDetailsByProfessor returns the professor's requests across all
// sessions with an optional status filter and pagination.
func (r *RequestRepository) ListDetailsByProfessor(ctx context.Context, professorID string, filter models.RequestFilter) ([]models.RequestDetail, int, error) {
	where := " WHERE dr.professor_id = $1"
	args := []interface{}{professorID}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND dr.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s%s ORDER BY dr.created_at DESC LIMIT %d OFFSET %d`,
		requestDetailColumns, requestDetailJoins, where, size, offset)
	var details []models.RequestDetail
	if err := r.db.SelectContext(ctx, &details, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list professor requests: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s%s", requestDetailJoins, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count professor requests: %w", err)
	}
	return details, total, nil
}

// ListDetailsByStudent returns the student's requests, newest first.
func (r *RequestRepository) ListDetailsByStudent(ctx context.Context, studentID string) ([]models.RequestDetail, error) {
	query := fmt.Sprintf(`SELECT %s %s WHERE dr.student_id = $1 ORDER BY dr.created_at DESC`, requestDetailColumns, requestDetailJoins)
	var details []models.RequestDetail
	if err := r.db.SelectContext(ctx, &details, query, studentID); err != nil {
		return nil, fmt.Errorf("list student requests: %w", err)
	}
	return details, nil
}

// HasPendingForSession reports whether the student already has a pending
// request for the session.
func (r *RequestRepository) HasPendingForSession(ctx context.Context, studentID, sessionID string) (bool, error) {
	const query = `SELECT 1 FROM dissertation_requests WHERE student_id = $1 AND session_id = $2 AND status = 'pending' LIMIT 1`
	return r.exists(ctx, query, studentID, sessionID)
}

// HasApprovedElsewhere reports whether the student holds an approved
// request with any professor other than the given one.
func (r *RequestRepository) HasApprovedElsewhere(ctx context.Context, studentID, professorID string) (bool, error) {
	const query = `SELECT 1 FROM dissertation_requests WHERE student_id = $1 AND professor_id <> $2 AND status = 'approved' LIMIT 1`
	return r.exists(ctx, query, studentID, professorID)
}

// CountApproved returns the number of approved requests on a session.
func (r *RequestRepository) CountApproved(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM dissertation_requests WHERE session_id = $1 AND status = 'approved'`
	var count int
	if err := r.db.GetContext(ctx, &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count approved requests: %w", err)
	}
	return count, nil
}

// Approve flips the request to approved inside a transaction. The UPDATE
// carries the capacity subquery and the cross-professor approval guard,
// so a losing racer sees zero rows and nothing changes. When cascade is
// set, the student's other pending requests are deleted in the same
// transaction; the count of deletions is returned.
func (r *RequestRepository) Approve(ctx context.Context, requestID, sessionID, studentID string, cascade bool) (approved bool, deleted int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("begin approve: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const approveQuery = `UPDATE dissertation_requests SET status = 'approved', updated_at = $4
        WHERE id = $1 AND status = 'pending'
        AND (SELECT COUNT(*) FROM dissertation_requests WHERE session_id = $2 AND status = 'approved')
            < (SELECT max_students FROM registration_sessions WHERE id = $2)
        AND NOT EXISTS (SELECT 1 FROM dissertation_requests WHERE student_id = $3 AND status = 'approved' AND id <> $1)`
	res, err := tx.ExecContext(ctx, approveQuery, requestID, sessionID, studentID, time.Now().UTC())
	if err != nil {
		return false, 0, fmt.Errorf("approve request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("approve request: %w", err)
	}
	if affected == 0 {
		return false, 0, nil
	}

	if cascade {
		const withdrawQuery = `DELETE FROM dissertation_requests WHERE student_id = $1 AND id <> $2 AND status = 'pending'`
		res, err := tx.ExecContext(ctx, withdrawQuery, studentID, requestID)
		if err != nil {
			return false, 0, fmt.Errorf("withdraw pending requests: %w", err)
		}
		deleted, err = res.RowsAffected()
		if err != nil {
			return false, 0, fmt.Errorf("withdraw pending requests: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("commit approve: %w", err)
	}
	return true, deleted, nil
}

// Reject marks a pending request as rejected with the stored reason.
func (r *RequestRepository) Reject(ctx context.Context, id, reason string) error {
	const query = `UPDATE dissertation_requests SET status = 'rejected', rejection_reason = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// MarkWaitingForReupload moves an approved request into the reupload
// cycle, clearing the previously signed file.
func (r *RequestRepository) MarkWaitingForReupload(ctx context.Context, id, reason string) error {
	const query = `UPDATE dissertation_requests SET status = 'waiting_for_reupload', reupload_reason = $2, signed_coordination_request_file = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark waiting for reupload: %w", err)
	}
	return nil
}

// AttachSignedFile records the student's signed coordination request.
// Attaching always settles the record back into approved, closing any
// open reupload cycle.
func (r *RequestRepository) AttachSignedFile(ctx context.Context, id, filename string) error {
	const query = `UPDATE dissertation_requests SET signed_coordination_request_file = $2, status = 'approved', reupload_reason = NULL, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, filename, time.Now().UTC()); err != nil {
		return fmt.Errorf("attach signed file: %w", err)
	}
	return nil
}

// AttachProfessorFile records the professor's review document.
func (r *RequestRepository) AttachProfessorFile(ctx context.Context, id, filename string) error {
	const query = `UPDATE dissertation_requests SET professor_review_file = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, filename, time.Now().UTC()); err != nil {
		return fmt.Errorf("attach professor file: %w", err)
	}
	return nil
}

// SetPreliminaryFile records the generated coordination-form document.
func (r *RequestRepository) SetPreliminaryFile(ctx context.Context, id, filename string) error {
	const query = `UPDATE dissertation_requests SET preliminary_request_file = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, filename, time.Now().UTC()); err != nil {
		return fmt.Errorf("set preliminary file: %w", err)
	}
	return nil
}

func (r *RequestRepository) exists(ctx context.Context, query string, args ...interface{}) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("existence check: %w", err)
	}
	return true, nil
}

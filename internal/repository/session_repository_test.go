package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/dissertation-portal-api/internal/models"
)

func newSessionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func sessionColumns() []string {
	return []string{"id", "professor_id", "title", "description", "start_date", "end_date", "max_students", "is_active", "created_at", "updated_at"}
}

func TestSessionRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registration_sessions")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	session := &models.RegistrationSession{
		ProfessorID: "prof-1",
		Title:       "Spring supervision",
		StartDate:   time.Now(),
		EndDate:     time.Now().Add(30 * 24 * time.Hour),
		MaxStudents: 5,
		IsActive:    true,
	}
	require.NoError(t, repo.Create(context.Background(), session))
	require.NotEmpty(t, session.ID)

	rows := sqlmock.NewRows(sessionColumns()).
		AddRow(session.ID, "prof-1", "Spring supervision", "", session.StartDate, session.EndDate, 5, true, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, professor_id, title, description, start_date, end_date, max_students, is_active, created_at, updated_at FROM registration_sessions WHERE id = $1")).
		WithArgs(session.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), session.ID)
	require.NoError(t, err)
	require.Equal(t, "prof-1", found.ProfessorID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListByProfessor(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	rows := sqlmock.NewRows(append(sessionColumns(), "approved_count")).
		AddRow("sess-1", "prof-1", "Spring supervision", "", time.Now(), time.Now().Add(time.Hour), 5, true, time.Now(), time.Now(), 3)
	mock.ExpectQuery("SELECT s.id, s.professor_id").
		WithArgs("prof-1").
		WillReturnRows(rows)

	sessions, err := repo.ListByProfessor(context.Background(), "prof-1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, 3, sessions[0].ApprovedCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryListActiveForStudent(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	requestID := "req-1"
	requestStatus := "pending"
	rows := sqlmock.NewRows(append(sessionColumns(),
		"approved_count", "professor_first_name", "professor_last_name", "professor_email", "student_request_id", "student_request_status")).
		AddRow("sess-1", "prof-1", "Spring supervision", "", now.Add(-time.Hour), now.Add(time.Hour), 5, true, now, now,
			2, "Ada", "Lovelace", "ada@example.edu", requestID, requestStatus)
	// The student's own request comes from a lateral limited to the
	// most recent one, so repeated requests never surface a stale row.
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY o.created_at DESC LIMIT 1")).
		WithArgs("stu-1", now).
		WillReturnRows(rows)

	sessions, err := repo.ListActiveForStudent(context.Background(), "stu-1", now)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, "Ada", sessions[0].ProfessorFirstName)
	require.NotNil(t, sessions[0].StudentRequestID)
	require.Equal(t, "req-1", *sessions[0].StudentRequestID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeleteCascade(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM dissertation_requests WHERE session_id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM registration_sessions WHERE id = $1")).
		WithArgs("sess-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.DeleteCascade(context.Background(), "sess-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryHasOverlapping(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	start := time.Now()
	end := start.Add(14 * 24 * time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM registration_sessions WHERE professor_id = $1 AND is_active = TRUE AND start_date <= $3 AND end_date >= $2 LIMIT 1")).
		WithArgs("prof-1", start, end).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	overlapping, err := repo.HasOverlapping(context.Background(), "prof-1", start, end, "")
	require.NoError(t, err)
	require.True(t, overlapping)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM registration_sessions WHERE professor_id = $1 AND is_active = TRUE AND start_date <= $3 AND end_date >= $2 AND id <> $4 LIMIT 1")).
		WithArgs("prof-1", start, end, "sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	overlapping, err = repo.HasOverlapping(context.Background(), "prof-1", start, end, "sess-1")
	require.NoError(t, err)
	require.False(t, overlapping)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepositoryDeactivateExpired(t *testing.T) {
	db, mock, cleanup := newSessionRepoMock(t)
	defer cleanup()
	repo := NewSessionRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE registration_sessions SET is_active = FALSE, updated_at = $1 WHERE is_active = TRUE AND end_date < $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 4))

	affected, err := repo.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 4, affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

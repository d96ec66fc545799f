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

func newRequestRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func requestDetailRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "session_id", "student_id", "professor_id", "status", "rejection_reason", "reupload_reason", "dissertation_title",
		"preliminary_request_file", "signed_coordination_request_file", "professor_review_file", "created_at", "updated_at",
		"student_first_name", "student_last_name", "student_email",
		"professor_first_name", "professor_last_name", "professor_email",
		"session_title", "session_start_date", "session_end_date",
	}).AddRow(
		"req-1", "sess-1", "stu-1", "prof-1", "pending", nil, nil, "Distributed consensus",
		nil, nil, nil, now, now,
		"Grace", "Hopper", "grace@example.edu",
		"Ada", "Lovelace", "ada@example.edu",
		"Spring supervision", now.Add(-time.Hour), now.Add(time.Hour),
	)
}

func TestRequestRepositoryCreateWithinCapacity(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dissertation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	request := &models.DissertationRequest{
		SessionID:         "sess-1",
		StudentID:         "stu-1",
		ProfessorID:       "prof-1",
		DissertationTitle: "Distributed consensus",
	}
	inserted, err := repo.CreateWithinCapacity(context.Background(), request)
	require.NoError(t, err)
	require.True(t, inserted)
	require.NotEmpty(t, request.ID)
	require.Equal(t, models.RequestStatusPending, request.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryCreateWithinCapacityFull(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO dissertation_requests")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	request := &models.DissertationRequest{
		SessionID:         "sess-1",
		StudentID:         "stu-1",
		ProfessorID:       "prof-1",
		DissertationTitle: "Distributed consensus",
	}
	inserted, err := repo.CreateWithinCapacity(context.Background(), request)
	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryFindDetailByID(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("SELECT dr.id, dr.session_id").
		WithArgs("req-1").
		WillReturnRows(requestDetailRows())

	detail, err := repo.FindDetailByID(context.Background(), "req-1")
	require.NoError(t, err)
	require.Equal(t, "Grace", detail.StudentFirstName)
	require.Equal(t, "Spring supervision", detail.SessionTitle)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryListDetailsByProfessor(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery("SELECT dr.id, dr.session_id").
		WithArgs("prof-1", models.RequestStatusPending).
		WillReturnRows(requestDetailRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("prof-1", models.RequestStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	details, total, err := repo.ListDetailsByProfessor(context.Background(), "prof-1", models.RequestFilter{
		Status: models.RequestStatusPending,
		Page:   1,
	})
	require.NoError(t, err)
	require.Len(t, details, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApproveCascades(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE dissertation_requests SET status = 'approved'")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM dissertation_requests WHERE student_id = $1 AND id <> $2 AND status = 'pending'")).
		WithArgs("stu-1", "req-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	approved, deleted, err := repo.Approve(context.Background(), "req-1", "sess-1", "stu-1", true)
	require.NoError(t, err)
	require.True(t, approved)
	require.EqualValues(t, 2, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryApproveLosesRace(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE dissertation_requests SET status = 'approved'")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	approved, deleted, err := repo.Approve(context.Background(), "req-1", "sess-1", "stu-1", true)
	require.NoError(t, err)
	require.False(t, approved)
	require.Zero(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryMarkWaitingForReupload(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE dissertation_requests SET status = 'waiting_for_reupload', reupload_reason = $2, signed_coordination_request_file = NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkWaitingForReupload(context.Background(), "req-1", "signature missing"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryAttachSignedFile(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE dissertation_requests SET signed_coordination_request_file = $2, status = 'approved', reupload_reason = NULL")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AttachSignedFile(context.Background(), "req-1", "stu-1_1700000000000_signed.pdf"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestRepositoryExistenceChecks(t *testing.T) {
	db, mock, cleanup := newRequestRepoMock(t)
	defer cleanup()
	repo := NewRequestRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM dissertation_requests WHERE student_id = $1 AND session_id = $2 AND status = 'pending' LIMIT 1")).
		WithArgs("stu-1", "sess-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	pending, err := repo.HasPendingForSession(context.Background(), "stu-1", "sess-1")
	require.NoError(t, err)
	require.True(t, pending)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM dissertation_requests WHERE student_id = $1 AND professor_id <> $2 AND status = 'approved' LIMIT 1")).
		WithArgs("stu-1", "prof-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	elsewhere, err := repo.HasApprovedElsewhere(context.Background(), "stu-1", "prof-1")
	require.NoError(t, err)
	require.False(t, elsewhere)
	require.NoError(t, mock.ExpectationsWereMet())
}

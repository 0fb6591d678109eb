package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/authcore-io/authcore/internal/postgres"
	"github.com/authcore-io/authcore/repository"
	"github.com/authcore-io/authcore/session"
)

var sessionCols = []string{
	"id", "tenant_id", "user_id", "token_hash", "previous_token_hash", "previous_valid_until",
	"expires_at", "created_at", "last_activity_at", "last_activity_update_at", "token_rotated_at",
	"device_id", "device_fingerprint", "ip_address", "user_agent", "metadata",
	"is_valid", "invalidated_reason", "mfa_status",
}

type SessionRepoTestSuite struct {
	suite.Suite
	mock  pgxmock.PgxPoolIface
	repo  session.Repository
	ctx   context.Context
	now   time.Time
	sesID uuid.UUID
	usrID uuid.UUID
}

func (s *SessionRepoTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(s.T(), err)
	s.mock = mock
	s.repo = postgres.NewStore(mock).Sessions()
	s.ctx = repository.WithTenant(context.Background(), "tenant-1")
	s.now = time.Now()
	s.sesID = uuid.New()
	s.usrID = uuid.New()
}

func (s *SessionRepoTestSuite) TearDownTest() {
	assert.NoError(s.T(), s.mock.ExpectationsWereMet())
	s.mock.Close()
}

func TestSessionRepoTestSuite(t *testing.T) {
	suite.Run(t, new(SessionRepoTestSuite))
}

func (s *SessionRepoTestSuite) sessionRow() *pgxmock.Rows {
	return pgxmock.NewRows(sessionCols).AddRow(
		s.sesID, "tenant-1", s.usrID, "hash-current", "", nil,
		s.now.Add(24*time.Hour), s.now, s.now, s.now, s.now,
		"", "", "203.0.113.7", "test-agent", map[string]string(nil),
		true, "", "none",
	)
}

func (s *SessionRepoTestSuite) TestFindByTokenHash_Hit() {
	s.mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("tenant-1", "hash-current").
		WillReturnRows(s.sessionRow())

	sess, err := s.repo.FindByTokenHash(s.ctx, "hash-current")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), s.sesID, sess.ID)
	assert.Equal(s.T(), session.MFANone, sess.MFAStatus)
	assert.True(s.T(), sess.IsValid)
}

func (s *SessionRepoTestSuite) TestFindByTokenHash_MissIsNotAnError() {
	s.mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("tenant-1", "unknown").
		WillReturnError(pgx.ErrNoRows)

	sess, err := s.repo.FindByTokenHash(s.ctx, "unknown")
	assert.NoError(s.T(), err)
	assert.Nil(s.T(), sess)
}

func (s *SessionRepoTestSuite) TestInvalidate_FirstWriterWins() {
	s.mock.ExpectExec(`UPDATE sessions`).
		WithArgs("tenant-1", s.sesID, "user_logout").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	done, err := s.repo.Invalidate(s.ctx, s.sesID, session.ReasonUserLogout)
	assert.NoError(s.T(), err)
	assert.True(s.T(), done)

	s.mock.ExpectExec(`UPDATE sessions`).
		WithArgs("tenant-1", s.sesID, "admin_action").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	done, err = s.repo.Invalidate(s.ctx, s.sesID, session.ReasonAdminAction)
	assert.NoError(s.T(), err)
	assert.False(s.T(), done)
}

func (s *SessionRepoTestSuite) TestInvalidateAllByUser() {
	s.mock.ExpectExec(`UPDATE sessions`).
		WithArgs("tenant-1", s.usrID, "emergency_termination").
		WillReturnResult(pgxmock.NewResult("UPDATE", 4))

	count, err := s.repo.InvalidateAllByUser(s.ctx, s.usrID, session.ReasonEmergencyTermination)
	assert.NoError(s.T(), err)
	assert.EqualValues(s.T(), 4, count)
}

func (s *SessionRepoTestSuite) TestRotate() {
	until := s.now.Add(time.Minute)

	s.mock.ExpectExec(`UPDATE sessions`).
		WithArgs("tenant-1", s.sesID, "hash-new", until, s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.repo.Rotate(s.ctx, s.sesID, "hash-new", s.now, until)
	assert.NoError(s.T(), err)
}

func (s *SessionRepoTestSuite) TestUpdateActivity_MissingSession() {
	s.mock.ExpectExec(`UPDATE sessions`).
		WithArgs("tenant-1", s.sesID, s.now, s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tenant-1", s.sesID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	err := s.repo.UpdateActivity(s.ctx, s.sesID, s.now, s.now)
	assert.ErrorIs(s.T(), err, repository.ErrNotFound)
}

func (s *SessionRepoTestSuite) TestUpdateActivity_InvalidSessionIsNoOp() {
	s.mock.ExpectExec(`UPDATE sessions`).
		WithArgs("tenant-1", s.sesID, s.now, s.now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	s.mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tenant-1", s.sesID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	err := s.repo.UpdateActivity(s.ctx, s.sesID, s.now, s.now)
	assert.NoError(s.T(), err)
}

func (s *SessionRepoTestSuite) TestListByUser_ActiveFilter() {
	s.mock.ExpectQuery(`SELECT (.+) FROM sessions`).
		WithArgs("tenant-1", s.usrID).
		WillReturnRows(s.sessionRow())

	sessions, err := s.repo.ListByUser(s.ctx, s.usrID, session.FilterActive)
	assert.NoError(s.T(), err)
	assert.Len(s.T(), sessions, 1)
}

func (s *SessionRepoTestSuite) TestDeleteExpiredBefore() {
	cutoff := s.now.Add(-90 * 24 * time.Hour)

	s.mock.ExpectExec(`DELETE FROM sessions`).
		WithArgs(cutoff, 500).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	purged, err := s.repo.DeleteExpiredBefore(s.ctx, cutoff, 500)
	assert.NoError(s.T(), err)
	assert.EqualValues(s.T(), 3, purged)
}

func (s *SessionRepoTestSuite) TestTenantScopeRequired() {
	_, err := s.repo.GetByID(context.Background(), s.sesID)
	assert.ErrorIs(s.T(), err, repository.ErrTenant)
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

func newMockDB(s *suite.Suite) (*sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		s.T().Fatalf("Failed to create mock database: %v", err)
	}

	db := sqlx.NewDb(mockDB, "sqlmock")
	s.T().Cleanup(func() {
		db.Close()
	})

	return db, mock
}

type URLRepositoryTestSuite struct {
	suite.Suite
	errUnknown error
	columns    []string
	now        time.Time
	mock       sqlmock.Sqlmock
	repo       *URLRepository
}

func (suite *URLRepositoryTestSuite) SetupSuite() {
	suite.errUnknown = errors.New("unknown error")
	suite.columns = []string{"id", "short_code", "target_url", "owner_id", "created_at", "expires_at"}
	suite.now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
}

func (suite *URLRepositoryTestSuite) SetupSubTest() {
	db, mock := newMockDB(&suite.Suite)

	suite.mock = mock
	suite.repo = NewURLRepository(db)
}

func (suite *URLRepositoryTestSuite) TearDownSubTest() {
	suite.NoError(suite.mock.ExpectationsWereMet())
}

func (suite *URLRepositoryTestSuite) TestSave() {
	url := &entity.ShortURL{
		Code:      "abc123",
		TargetURL: "https://example.com",
		OwnerID:   "ip:203.0.113.7",
	}

	suite.Run("short code exists", func() {
		suite.mock.ExpectQuery(`INSERT INTO short_urls`).
			WithArgs("abc123", "https://example.com", "ip:203.0.113.7", sqlmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: uniqueViolationErrCode})

		got, err := suite.repo.Save(context.Background(), url)

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(got)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`INSERT INTO short_urls`).
			WithArgs("abc123", "https://example.com", "ip:203.0.113.7", sqlmock.AnyArg()).
			WillReturnError(suite.errUnknown)

		got, err := suite.repo.Save(context.Background(), url)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.NotErrorIs(err, entity.ErrShortCodeExists)
		suite.Nil(got)
	})

	suite.Run("success without expiry", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow(1, "abc123", "https://example.com", "ip:203.0.113.7", suite.now, nil)

		suite.mock.ExpectQuery(`INSERT INTO short_urls`).
			WithArgs("abc123", "https://example.com", "ip:203.0.113.7", nil).
			WillReturnRows(rows)

		got, err := suite.repo.Save(context.Background(), url)

		suite.NoError(err)
		suite.Require().NotNil(got)
		suite.Equal(int64(1), got.ID)
		suite.Equal("abc123", got.Code)
		suite.Equal("https://example.com", got.TargetURL)
		suite.Equal(suite.now, got.CreatedAt)
		suite.Nil(got.ExpiresAt)
	})

	suite.Run("success with expiry", func() {
		expiresAt := suite.now.Add(time.Hour)
		withExpiry := *url
		withExpiry.ExpiresAt = &expiresAt

		rows := sqlmock.NewRows(suite.columns).
			AddRow(2, "abc123", "https://example.com", "ip:203.0.113.7", suite.now, expiresAt)

		suite.mock.ExpectQuery(`INSERT INTO short_urls`).
			WithArgs("abc123", "https://example.com", "ip:203.0.113.7", expiresAt).
			WillReturnRows(rows)

		got, err := suite.repo.Save(context.Background(), &withExpiry)

		suite.NoError(err)
		suite.Require().NotNil(got)
		suite.Require().NotNil(got.ExpiresAt)
		suite.Equal(expiresAt, *got.ExpiresAt)
	})
}

func (suite *URLRepositoryTestSuite) TestResolve() {
	suite.Run("url not found", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM short_urls`).
			WithArgs("abc123", suite.now).
			WillReturnRows(sqlmock.NewRows(suite.columns))

		got, err := suite.repo.Resolve(context.Background(), "abc123", suite.now)

		suite.Error(err)
		suite.ErrorIs(err, entity.ErrURLNotFound)
		suite.Nil(got)
	})

	suite.Run("unknown error", func() {
		suite.mock.ExpectQuery(`SELECT (.+) FROM short_urls`).
			WithArgs("abc123", suite.now).
			WillReturnError(suite.errUnknown)

		got, err := suite.repo.Resolve(context.Background(), "abc123", suite.now)

		suite.Error(err)
		suite.ErrorIs(err, suite.errUnknown)
		suite.Nil(got)
	})

	suite.Run("success", func() {
		rows := sqlmock.NewRows(suite.columns).
			AddRow(1, "abc123", "https://example.com", "user:42", suite.now, nil)

		suite.mock.ExpectQuery(`SELECT (.+) FROM short_urls WHERE short_code = \$1 AND \(expires_at IS NULL OR expires_at > \$2\)`).
			WithArgs("abc123", suite.now).
			WillReturnRows(rows)

		got, err := suite.repo.Resolve(context.Background(), "abc123", suite.now)

		suite.NoError(err)
		suite.Require().NotNil(got)
		suite.Equal("https://example.com", got.TargetURL)
		suite.Equal("user:42", got.OwnerID)
	})
}

func TestURLRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(URLRepositoryTestSuite))
}

func TestIsUniqueViolationError(t *testing.T) {
	assert.True(t, isUniqueViolationError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolationError(fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolationError(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolationError(errors.New("unknown error")))
}

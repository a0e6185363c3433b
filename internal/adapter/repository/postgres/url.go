package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/shortlink/internal/entity"
)

type shortURLDB struct {
	ID        int64        `db:"id"`
	Code      string       `db:"short_code"`
	TargetURL string       `db:"target_url"`
	OwnerID   string       `db:"owner_id"`
	CreatedAt time.Time    `db:"created_at"`
	ExpiresAt sql.NullTime `db:"expires_at"`
}

func (u *shortURLDB) toEntity() *entity.ShortURL {
	url := &entity.ShortURL{
		ID:        u.ID,
		Code:      u.Code,
		TargetURL: u.TargetURL,
		OwnerID:   u.OwnerID,
		CreatedAt: u.CreatedAt,
	}

	if u.ExpiresAt.Valid {
		expiresAt := u.ExpiresAt.Time
		url.ExpiresAt = &expiresAt
	}

	return url
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// Save inserts url. The unique constraint on short_code makes the insert the
// only collision check.
func (r *URLRepository) Save(ctx context.Context, url *entity.ShortURL) (*entity.ShortURL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO short_urls(short_code, target_url, owner_id, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id, short_code, target_url, owner_id, created_at, expires_at`

	var expiresAt sql.NullTime
	if url.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *url.ExpiresAt, Valid: true}
	}

	var row shortURLDB

	if err := r.db.GetContext(ctx, &row, query, url.Code, url.TargetURL, url.OwnerID, expiresAt); err != nil {
		if isUniqueViolationError(err) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortCodeExists)
		}

		return nil, fmt.Errorf("%s: failed to insert into short_urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

// Resolve returns the live record for code. Expired rows are reported as not
// found.
func (r *URLRepository) Resolve(ctx context.Context, code string, now time.Time) (*entity.ShortURL, error) {
	const op = "adapter.repository.postgres.URLRepository.Resolve"
	const query = `SELECT id, short_code, target_url, owner_id, created_at, expires_at
FROM short_urls
WHERE short_code = $1 AND (expires_at IS NULL OR expires_at > $2)`

	var row shortURLDB

	if err := r.db.GetContext(ctx, &row, query, code, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from short_urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

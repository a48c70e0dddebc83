package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blog-manager/internal/repository"
)

const createRevokedTokensTable = `
CREATE TABLE IF NOT EXISTS revoked_tokens (
	jti TEXT PRIMARY KEY,
	expires_at DATETIME NOT NULL,
	revoked_at DATETIME NOT NULL
);
`

// TokenRepository persists the refresh-token revocation list. The primary
// key on jti is the insert-if-absent primitive the rotation flow relies on.
type TokenRepository struct {
	db *sql.DB
}

func NewTokenRepository(db *sql.DB) repository.TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createRevokedTokensTable); err != nil {
		return fmt.Errorf("create revoked_tokens table: %w", err)
	}
	return nil
}

func (r *TokenRepository) Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO revoked_tokens (jti, expires_at, revoked_at)
VALUES (?, ?, ?)
ON CONFLICT (jti) DO NOTHING`,
		jti,
		expiresAt.UTC(),
		time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("insert revoked token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoked token rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM revoked_tokens WHERE jti = ?`, jti,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("lookup revoked token: %w", err)
	}
	return count > 0, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at <= ?`, now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return affected, nil
}

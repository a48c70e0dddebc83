package repository

import (
	"context"
	"time"
)

// TokenRepository is the durable revocation list for refresh tokens, keyed
// by jti. It backs rotation serialization: Revoke is an insert-if-absent,
// so exactly one concurrent rotation of the same token can win.
type TokenRepository interface {
	Init(ctx context.Context) error
	// Revoke records the jti as revoked. It returns false without error if
	// the jti was already present.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) (bool, error)
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// PurgeExpired drops entries whose token has expired anyway.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

package repository

import (
	"context"

	"github.com/google/uuid"

	"blog-manager/internal/domain"
)

// UserRepository defines persistence operations for User entities.
// Implementations return domain.ErrDuplicateEmail on a unique violation and
// domain.ErrNotFound when no row matches.
type UserRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, user *domain.User) error
	// GetByEmail looks the user up case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// HasRole reports whether any user with the given role exists.
	HasRole(ctx context.Context, role domain.Role) (bool, error)
}

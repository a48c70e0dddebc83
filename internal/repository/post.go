package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"blog-manager/internal/domain"
)

// PostFilter narrows and orders a post listing. OrderBy must be one of the
// keys accepted by the implementation; Limit <= 0 means no limit.
type PostFilter struct {
	Status        *domain.PostStatus
	Category      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	// Search matches the title case-insensitively as a substring.
	Search  string
	OrderBy string
	Desc    bool
	Limit   int
	Offset  int
}

// PostRepository exposes persistence operations for Post aggregates.
// Create and Update return domain.ErrDuplicateSlug on a slug unique
// violation; lookups return domain.ErrNotFound when no row matches.
type PostRepository interface {
	Init(ctx context.Context) error
	Create(ctx context.Context, post *domain.Post) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, post *domain.Post) error
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns the matching page and the total match count before
	// pagination.
	List(ctx context.Context, filter PostFilter) ([]domain.Post, int64, error)
}

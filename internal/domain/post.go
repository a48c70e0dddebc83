package domain

import (
	"time"

	"github.com/google/uuid"
)

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether the status is one of the known values.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post represents a blog post tracked by the system. Slug and AuthorID are
// fixed at creation. PublishedAt is written exactly once, on the
// draft->published transition.
type Post struct {
	ID            uuid.UUID
	Title         string
	Slug          string
	Content       string
	Excerpt       string
	Category      string
	ThumbnailKey  string
	ThumbnailName string
	Status        PostStatus
	PublishedAt   *time.Time
	AuthorID      uuid.UUID
	AuthorEmail   string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CanModifyPost decides whether the acting user may mutate or delete the
// post. Ownership is strict authorship: an admin role does not override it.
func CanModifyPost(actor *User, post *Post) bool {
	if actor == nil || post == nil {
		return false
	}
	return actor.ID == post.AuthorID
}

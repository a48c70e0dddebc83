package http

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"blog-manager/internal/domain"
	"blog-manager/internal/service"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func respondErrorCode(c *gin.Context, status int, code, message string, details any) {
	c.JSON(status, errorResponse{Error: errorBody{Code: code, Message: message, Details: details}})
}

// respondError maps core failure kinds onto the HTTP error envelope.
func respondError(c *gin.Context, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "One or more fields failed validation.",
			gin.H{validation.Field: validation.Reason})
	case errors.Is(err, domain.ErrDuplicateEmail):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "One or more fields failed validation.",
			gin.H{"email": "already registered"})
	case errors.Is(err, domain.ErrWeakPassword):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "One or more fields failed validation.",
			gin.H{"password": err.Error()})
	case errors.Is(err, domain.ErrDuplicateSlug):
		respondErrorCode(c, http.StatusBadRequest, "VALIDATION_ERROR", "One or more fields failed validation.",
			gin.H{"slug": "already exists"})
	case errors.Is(err, domain.ErrAuthenticationFailed), errors.Is(err, domain.ErrTokenInvalid):
		respondErrorCode(c, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Invalid credentials or token.", nil)
	case errors.Is(err, domain.ErrPermissionDenied):
		respondErrorCode(c, http.StatusForbidden, "PERMISSION_DENIED", "You do not have permission to perform this action.", nil)
	case errors.Is(err, domain.ErrNotFound):
		respondErrorCode(c, http.StatusNotFound, "NOT_FOUND", "The requested resource was not found.", nil)
	default:
		respondErrorCode(c, http.StatusInternalServerError, "SERVER_ERROR", "An unexpected error occurred.", nil)
	}
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

// PostResponse is the detail payload; list endpoints use PostListItem,
// which leaves the full content out.
type PostResponse struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Content      string  `json:"content"`
	Excerpt      string  `json:"excerpt"`
	Category     string  `json:"category"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Status       string  `json:"status"`
	PublishedAt  *string `json:"published_at"`
	AuthorID     string  `json:"author"`
	AuthorEmail  string  `json:"author_email"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type PostListItem struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Slug         string  `json:"slug"`
	Excerpt      string  `json:"excerpt"`
	Category     string  `json:"category"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Status       string  `json:"status"`
	PublishedAt  *string `json:"published_at"`
	AuthorID     string  `json:"author"`
	AuthorEmail  string  `json:"author_email"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type PostListResponse struct {
	Results    []PostListItem `json:"results"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int64          `json:"total"`
	TotalPages int            `json:"total_pages"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	v := t.Format(time.RFC3339)
	return &v
}

func postToResponse(ctx context.Context, posts service.PostService, post *domain.Post) PostResponse {
	return PostResponse{
		ID:           post.ID.String(),
		Title:        post.Title,
		Slug:         post.Slug,
		Content:      post.Content,
		Excerpt:      post.Excerpt,
		Category:     post.Category,
		ThumbnailURL: posts.ThumbnailURL(ctx, post),
		Status:       string(post.Status),
		PublishedAt:  formatTimePtr(post.PublishedAt),
		AuthorID:     post.AuthorID.String(),
		AuthorEmail:  post.AuthorEmail,
		CreatedAt:    post.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    post.UpdatedAt.Format(time.RFC3339),
	}
}

func postToListItem(ctx context.Context, posts service.PostService, post *domain.Post) PostListItem {
	return PostListItem{
		ID:           post.ID.String(),
		Title:        post.Title,
		Slug:         post.Slug,
		Excerpt:      post.Excerpt,
		Category:     post.Category,
		ThumbnailURL: posts.ThumbnailURL(ctx, post),
		Status:       string(post.Status),
		PublishedAt:  formatTimePtr(post.PublishedAt),
		AuthorID:     post.AuthorID.String(),
		AuthorEmail:  post.AuthorEmail,
		CreatedAt:    post.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    post.UpdatedAt.Format(time.RFC3339),
	}
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(pageSize)))
}

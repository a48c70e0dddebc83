package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"blog-manager/internal/domain"
	"blog-manager/internal/repository"
	"blog-manager/internal/storage"
)

const (
	// autoExcerptLength is how much of the content becomes the excerpt
	// when one is not supplied explicitly.
	autoExcerptLength = 200
	excerptMaxLength  = 500
	minContentLength  = 10

	thumbnailURLTTL = 15 * time.Minute
)

var allowedThumbnailTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// ThumbnailUpload carries an incoming thumbnail asset. Size and ContentType
// are validated before anything touches storage.
type ThumbnailUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type CreatePostInput struct {
	Title     string
	Content   string
	Excerpt   string
	Category  string
	Status    domain.PostStatus
	Author    *domain.User
	Thumbnail *ThumbnailUpload
}

// UpdatePostInput applies partial update semantics: nil fields are left
// untouched. Slug and author are not representable here on purpose.
type UpdatePostInput struct {
	Title     *string
	Content   *string
	Excerpt   *string
	Category  *string
	Status    *domain.PostStatus
	Thumbnail *ThumbnailUpload
}

type ListPostsQuery struct {
	Status        *domain.PostStatus
	Category      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Search        string
	Ordering      string
	Page          int
	PageSize      int
}

// PostService coordinates post lifecycle operations backed by the post
// repository and optional object storage for thumbnails.
type PostService interface {
	Create(ctx context.Context, input CreatePostInput) (*domain.Post, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Post, error)
	List(ctx context.Context, query ListPostsQuery) ([]domain.Post, int64, error)
	Update(ctx context.Context, id uuid.UUID, actor *domain.User, changes UpdatePostInput) (*domain.Post, error)
	Delete(ctx context.Context, id uuid.UUID, actor *domain.User) error
	// ThumbnailURL resolves a short-lived URL for the post's thumbnail,
	// or "" when there is none or storage is not configured.
	ThumbnailURL(ctx context.Context, post *domain.Post) string
}

type PostConfig struct {
	Bucket            string
	KeyPrefix         string
	ThumbnailMaxBytes int64
}

type postService struct {
	posts   repository.PostRepository
	storage storage.Service
	cfg     PostConfig
	logger  *logrus.Logger
}

func NewPostService(posts repository.PostRepository, store storage.Service, cfg PostConfig, logger *logrus.Logger) PostService {
	return &postService{
		posts:   posts,
		storage: store,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *postService) Create(ctx context.Context, input CreatePostInput) (*domain.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.NewValidationError("title", "cannot be blank")
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Content)) < minContentLength {
		return nil, domain.NewValidationError("content", fmt.Sprintf("must be at least %d characters", minContentLength))
	}
	status := input.Status
	if status == "" {
		status = domain.PostStatusDraft
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("status", "must be draft or published")
	}
	if input.Author == nil {
		return nil, domain.NewValidationError("author", "is required")
	}
	if err := s.validateThumbnail(input.Thumbnail); err != nil {
		return nil, err
	}

	excerpt := strings.TrimSpace(input.Excerpt)
	if excerpt == "" {
		excerpt = deriveExcerpt(input.Content)
	}
	if utf8.RuneCountInString(excerpt) > excerptMaxLength {
		return nil, domain.NewValidationError("excerpt", fmt.Sprintf("must be at most %d characters", excerptMaxLength))
	}

	post := &domain.Post{
		ID:          uuid.New(),
		Title:       title,
		Content:     input.Content,
		Excerpt:     excerpt,
		Category:    strings.TrimSpace(input.Category),
		Status:      status,
		AuthorID:    input.Author.ID,
		AuthorEmail: input.Author.Email,
	}
	if status == domain.PostStatusPublished {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}

	if input.Thumbnail != nil {
		key, err := s.uploadThumbnail(ctx, post.ID, input.Thumbnail)
		if err != nil {
			return nil, err
		}
		post.ThumbnailKey = key
		post.ThumbnailName = filepath.Base(input.Thumbnail.Filename)
	}

	if err := s.persistWithUniqueSlug(ctx, post, title); err != nil {
		if post.ThumbnailKey != "" {
			s.deleteObject(ctx, post.ThumbnailKey)
		}
		return nil, err
	}

	s.logger.Infof("post created: %s (id=%s)", post.Title, post.ID)
	return post, nil
}

// persistWithUniqueSlug derives the slug, preferring the plain form and
// falling back to a random 8-hex suffix on collision. The store's UNIQUE
// constraint is the final authority: a constraint race gets one retry with
// a fresh suffix before surfacing ErrDuplicateSlug.
func (s *postService) persistWithUniqueSlug(ctx context.Context, post *domain.Post, title string) error {
	base := Slugify(title)

	slug := base
	exists, err := s.posts.SlugExists(ctx, slug)
	if err != nil {
		return err
	}
	if exists {
		slug = suffixSlug(base)
	}

	post.Slug = slug
	err = s.posts.Create(ctx, post)
	if !errors.Is(err, domain.ErrDuplicateSlug) {
		return err
	}

	post.Slug = suffixSlug(base)
	if err := s.posts.Create(ctx, post); err != nil {
		if errors.Is(err, domain.ErrDuplicateSlug) {
			return domain.ErrDuplicateSlug
		}
		return err
	}
	return nil
}

func suffixSlug(base string) string {
	return fmt.Sprintf("%s-%s", base, strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// deriveExcerpt takes the first autoExcerptLength characters, never bytes,
// so multibyte content is not cut mid-rune.
func deriveExcerpt(content string) string {
	if runes := []rune(content); len(runes) > autoExcerptLength {
		content = string(runes[:autoExcerptLength])
	}
	return strings.TrimSpace(content)
}

func (s *postService) Get(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	return s.posts.Get(ctx, id)
}

func (s *postService) List(ctx context.Context, query ListPostsQuery) ([]domain.Post, int64, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 10
	}

	orderBy, desc := parseOrdering(query.Ordering)

	return s.posts.List(ctx, repository.PostFilter{
		Status:        query.Status,
		Category:      query.Category,
		CreatedAfter:  query.CreatedAfter,
		CreatedBefore: query.CreatedBefore,
		Search:        query.Search,
		OrderBy:       orderBy,
		Desc:          desc,
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	})
}

// parseOrdering accepts a whitelisted key with an optional leading '-' for
// descending order; anything else falls back to -created_at.
func parseOrdering(ordering string) (string, bool) {
	desc := strings.HasPrefix(ordering, "-")
	key := strings.TrimPrefix(ordering, "-")
	switch key {
	case "created_at", "title", "published_at":
		return key, desc
	}
	return "created_at", true
}

func (s *postService) Update(ctx context.Context, id uuid.UUID, actor *domain.User, changes UpdatePostInput) (*domain.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanModifyPost(actor, post) {
		return nil, domain.ErrPermissionDenied
	}
	if err := s.validateThumbnail(changes.Thumbnail); err != nil {
		return nil, err
	}

	oldStatus := post.Status

	if changes.Title != nil {
		title := strings.TrimSpace(*changes.Title)
		if title == "" {
			return nil, domain.NewValidationError("title", "cannot be blank")
		}
		post.Title = title
	}
	if changes.Content != nil {
		if utf8.RuneCountInString(strings.TrimSpace(*changes.Content)) < minContentLength {
			return nil, domain.NewValidationError("content", fmt.Sprintf("must be at least %d characters", minContentLength))
		}
		post.Content = *changes.Content
	}
	if changes.Excerpt != nil {
		excerpt := strings.TrimSpace(*changes.Excerpt)
		if utf8.RuneCountInString(excerpt) > excerptMaxLength {
			return nil, domain.NewValidationError("excerpt", fmt.Sprintf("must be at most %d characters", excerptMaxLength))
		}
		post.Excerpt = excerpt
	}
	if changes.Category != nil {
		post.Category = strings.TrimSpace(*changes.Category)
	}
	if changes.Status != nil {
		if !changes.Status.Valid() {
			return nil, domain.NewValidationError("status", "must be draft or published")
		}
		post.Status = *changes.Status
	}

	// published_at is written exactly once, on the draft -> published edge
	if oldStatus == domain.PostStatusDraft && post.Status == domain.PostStatusPublished && post.PublishedAt == nil {
		now := time.Now().UTC()
		post.PublishedAt = &now
	}

	if changes.Content != nil && changes.Excerpt == nil {
		post.Excerpt = deriveExcerpt(post.Content)
	}

	oldThumbnailKey := ""
	if changes.Thumbnail != nil {
		key, err := s.uploadThumbnail(ctx, post.ID, changes.Thumbnail)
		if err != nil {
			return nil, err
		}
		if post.ThumbnailKey != "" && post.ThumbnailKey != key {
			oldThumbnailKey = post.ThumbnailKey
		}
		post.ThumbnailKey = key
		post.ThumbnailName = filepath.Base(changes.Thumbnail.Filename)
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	if oldThumbnailKey != "" {
		s.deleteObject(ctx, oldThumbnailKey)
	}

	s.logger.Infof("post updated: %s (id=%s)", post.Title, post.ID)
	return post, nil
}

func (s *postService) Delete(ctx context.Context, id uuid.UUID, actor *domain.User) error {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanModifyPost(actor, post) {
		return domain.ErrPermissionDenied
	}

	// best effort; a failed asset delete must not block the record delete.
	// The whole per-post namespace goes, including stale replaced objects.
	if post.ThumbnailKey != "" {
		s.deletePrefix(ctx, s.thumbnailPrefix(post.ID))
	}

	if err := s.posts.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Infof("post deleted: %s (id=%s)", post.Title, post.ID)
	return nil
}

func (s *postService) ThumbnailURL(ctx context.Context, post *domain.Post) string {
	if s.storage == nil || s.cfg.Bucket == "" || post == nil || post.ThumbnailKey == "" {
		return ""
	}
	url, err := s.storage.GetObjectURL(ctx, s.cfg.Bucket, post.ThumbnailKey, thumbnailURLTTL)
	if err != nil {
		s.logger.Warnf("thumbnail url for post %s: %v", post.ID, err)
		return ""
	}
	return url
}

func (s *postService) validateThumbnail(t *ThumbnailUpload) error {
	if t == nil {
		return nil
	}
	if s.storage == nil || s.cfg.Bucket == "" {
		return domain.NewValidationError("thumbnail", "storage is not configured")
	}
	if _, ok := allowedThumbnailTypes[strings.ToLower(t.ContentType)]; !ok {
		return domain.NewValidationError("thumbnail", "unsupported file type; allowed: JPEG, PNG, WebP")
	}
	if s.cfg.ThumbnailMaxBytes > 0 && t.Size > s.cfg.ThumbnailMaxBytes {
		return domain.NewValidationError("thumbnail", fmt.Sprintf("file too large; maximum is %d MB", s.cfg.ThumbnailMaxBytes/(1024*1024)))
	}
	return nil
}

// uploadThumbnail stores the asset under the post's own key namespace so
// files from different posts can never collide.
func (s *postService) uploadThumbnail(ctx context.Context, postID uuid.UUID, t *ThumbnailUpload) (string, error) {
	name := filepath.Base(strings.TrimSpace(t.Filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "thumbnail"
	}
	key := path.Join(s.thumbnailPrefix(postID), name)

	if err := s.storage.UploadObject(ctx, s.cfg.Bucket, key, t.ContentType, t.Body); err != nil {
		return "", fmt.Errorf("upload thumbnail: %w", err)
	}
	return key, nil
}

func (s *postService) thumbnailPrefix(postID uuid.UUID) string {
	prefix := strings.Trim(s.cfg.KeyPrefix, "/")
	return path.Join(prefix, "thumbnails", postID.String())
}

func (s *postService) deleteObject(ctx context.Context, key string) {
	if s.storage == nil || s.cfg.Bucket == "" || key == "" {
		return
	}
	if err := s.storage.DeleteObject(ctx, s.cfg.Bucket, key); err != nil {
		s.logger.Warnf("delete thumbnail %s: %v", key, err)
	}
}

func (s *postService) deletePrefix(ctx context.Context, prefix string) {
	if s.storage == nil || s.cfg.Bucket == "" || prefix == "" {
		return
	}
	if err := s.storage.DeletePrefix(ctx, s.cfg.Bucket, prefix); err != nil {
		s.logger.Warnf("delete thumbnails under %s: %v", prefix, err)
	}
}

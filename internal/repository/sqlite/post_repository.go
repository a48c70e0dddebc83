package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"blog-manager/internal/domain"
	"blog-manager/internal/repository"
)

const createPostsTable = `
CREATE TABLE IF NOT EXISTS posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE,
	content TEXT NOT NULL,
	excerpt TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	thumbnail_key TEXT NOT NULL DEFAULT '',
	thumbnail_name TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	published_at DATETIME NULL,
	author_id TEXT NOT NULL REFERENCES users(id),
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

var createPostIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_posts_status ON posts(status);`,
	`CREATE INDEX IF NOT EXISTS idx_posts_category ON posts(category);`,
	`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);`,
}

const postColumns = `p.id, p.title, p.slug, p.content, p.excerpt, p.category,
p.thumbnail_key, p.thumbnail_name, p.status, p.published_at, p.author_id,
u.email, p.created_at, p.updated_at`

// listOrderKeys whitelists ORDER BY targets; keys come straight from query
// strings and must never be interpolated unchecked.
var listOrderKeys = map[string]string{
	"created_at":   "p.created_at",
	"title":        "p.title",
	"published_at": "p.published_at",
}

type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) repository.PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createPostsTable); err != nil {
		return fmt.Errorf("create posts table: %w", err)
	}
	for _, stmt := range createPostIndexes {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create posts index: %w", err)
		}
	}
	return nil
}

func (r *PostRepository) Create(ctx context.Context, post *domain.Post) error {
	now := time.Now().UTC()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
INSERT INTO posts (id, title, slug, content, excerpt, category, thumbnail_key, thumbnail_name, status, published_at, author_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID.String(),
		post.Title,
		post.Slug,
		post.Content,
		post.Excerpt,
		post.Category,
		post.ThumbnailKey,
		post.ThumbnailName,
		string(post.Status),
		post.PublishedAt,
		post.AuthorID.String(),
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "slug") {
			return domain.ErrDuplicateSlug
		}
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (r *PostRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+postColumns+`
FROM posts p
JOIN users u ON u.id = p.author_id
WHERE p.id = ?`,
		id.String(),
	)
	return scanPost(row)
}

func (r *PostRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM posts WHERE slug = ?`, slug,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count posts by slug: %w", err)
	}
	return count > 0, nil
}

// Update persists the mutable fields. Slug and author_id are deliberately
// absent from the statement.
func (r *PostRepository) Update(ctx context.Context, post *domain.Post) error {
	post.UpdatedAt = time.Now().UTC()

	res, err := r.db.ExecContext(ctx, `
UPDATE posts
SET title = ?, content = ?, excerpt = ?, category = ?, thumbnail_key = ?, thumbnail_name = ?, status = ?, published_at = ?, updated_at = ?
WHERE id = ?`,
		post.Title,
		post.Content,
		post.Excerpt,
		post.Category,
		post.ThumbnailKey,
		post.ThumbnailName,
		string(post.Status),
		post.PublishedAt,
		post.UpdatedAt,
		post.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete post rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostRepository) List(ctx context.Context, filter repository.PostFilter) ([]domain.Post, int64, error) {
	where, args := buildPostFilter(filter)

	var total int64
	countQuery := `SELECT COUNT(1) FROM posts p JOIN users u ON u.id = p.author_id` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	orderColumn, ok := listOrderKeys[filter.OrderBy]
	if !ok {
		orderColumn = "p.created_at"
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	query := `SELECT ` + postColumns + `
FROM posts p
JOIN users u ON u.id = p.author_id` + where + `
ORDER BY ` + orderColumn + ` ` + direction
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, err
		}
		posts = append(posts, *post)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, total, nil
}

func buildPostFilter(filter repository.PostFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.Status != nil {
		clauses = append(clauses, "p.status = ?")
		args = append(args, string(*filter.Status))
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		clauses = append(clauses, "LOWER(p.category) = LOWER(?)")
		args = append(args, category)
	}
	if filter.CreatedAfter != nil {
		clauses = append(clauses, "p.created_at >= ?")
		args = append(args, filter.CreatedAfter.UTC())
	}
	if filter.CreatedBefore != nil {
		clauses = append(clauses, "p.created_at <= ?")
		args = append(args, filter.CreatedBefore.UTC())
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		clauses = append(clauses, "p.title LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(search)+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func scanPost(row interface {
	Scan(dest ...any) error
}) (*domain.Post, error) {
	var (
		post        domain.Post
		id          string
		authorID    string
		status      string
		publishedAt sql.NullTime
	)
	if err := row.Scan(
		&id,
		&post.Title,
		&post.Slug,
		&post.Content,
		&post.Excerpt,
		&post.Category,
		&post.ThumbnailKey,
		&post.ThumbnailName,
		&status,
		&publishedAt,
		&authorID,
		&post.AuthorEmail,
		&post.CreatedAt,
		&post.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan post: %w", err)
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse post id: %w", err)
	}
	post.ID = parsed
	author, err := uuid.Parse(authorID)
	if err != nil {
		return nil, fmt.Errorf("parse author id: %w", err)
	}
	post.AuthorID = author
	post.Status = domain.PostStatus(status)
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return &post, nil
}

package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"postboard/internal/database"
)

const foreignKeyViolation = "23503"

// sortColumns whitelists the columns a listing may be ordered by.
var sortColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"contents":   "contents",
	"created_at": "created_at",
	"createdat":  "created_at",
	"updated_at": "updated_at",
	"updatedat":  "updated_at",
}

const postColumns = `id, title, contents, created_at, updated_at`

// Repository is the Postgres implementation of Store.
type Repository struct {
	db     database.Service
	logger *slog.Logger
}

// NewRepository creates a new posts repository
func NewRepository(db database.Service, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Find lists posts. Unknown sort keys fall back to id, a leading "-" sorts
// descending, and a limit that is not a positive integer is ignored.
func (r *Repository) Find(ctx context.Context, opts QueryOptions) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY ` + orderBy(opts.SortBy)

	var args []any
	if limit, ok := parseLimit(opts.Limit); ok {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Error querying posts", "error", err)
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Contents, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate posts: %w", err)
	}

	return posts, nil
}

// FindByID retrieves a single post by ID
func (r *Repository) FindByID(ctx context.Context, id int64) (*Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	post, err := scanPost(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Error getting post by ID", "post_id", id, "error", err)
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

// FindCommentsByPostID lists the comments of a post in creation order.
func (r *Repository) FindCommentsByPostID(ctx context.Context, postID int64) ([]Comment, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM posts WHERE id = $1)`, postID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check post: %w", err)
	}
	if !exists {
		return nil, nil
	}

	const q = `
		SELECT id, text, post_id, created_at, updated_at
		FROM comments
		WHERE post_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := r.db.Query(ctx, q, postID)
	if err != nil {
		r.logger.Error("Error querying comments", "post_id", postID, "error", err)
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	out := []Comment{}
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Text, &c.PostID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate comments: %w", err)
	}

	return out, nil
}

// Update replaces title and contents and returns the modified post.
func (r *Repository) Update(ctx context.Context, id int64, changes PostInput) (*Post, error) {
	query := `
		UPDATE posts
		SET title = $1, contents = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRow(ctx, query, changes.Title, changes.Contents, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Error updating post", "post_id", id, "error", err)
		return nil, fmt.Errorf("failed to update post: %w", err)
	}

	return post, nil
}

// Insert creates a post and returns it with its assigned ID.
func (r *Repository) Insert(ctx context.Context, in PostInput) (*Post, error) {
	query := `
		INSERT INTO posts (title, contents, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRow(ctx, query, in.Title, in.Contents))
	if err != nil {
		r.logger.Error("Error creating post", "error", err)
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	return post, nil
}

// Remove deletes a post and, by cascade, its comments. It returns the
// number of posts removed.
func (r *Repository) Remove(ctx context.Context, id int64) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Error deleting post", "post_id", id, "error", err)
		return 0, fmt.Errorf("failed to delete post: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted posts: %w", err)
	}
	return n, nil
}

// InsertComment adds a comment to a post. A post deleted after the caller's
// existence check trips the foreign key and is reported as not found.
func (r *Repository) InsertComment(ctx context.Context, postID int64, in CommentInput) (*Comment, error) {
	const q = `
		INSERT INTO comments (text, post_id, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING id, text, post_id, created_at, updated_at
	`

	c := &Comment{}
	err := r.db.QueryRow(ctx, q, in.Text, postID).
		Scan(&c.ID, &c.Text, &c.PostID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return nil, nil
		}
		r.logger.Error("Error creating comment", "post_id", postID, "error", err)
		return nil, fmt.Errorf("insert comment: %w", err)
	}

	return c, nil
}

func scanPost(row *sql.Row) (*Post, error) {
	p := &Post{}
	if err := row.Scan(&p.ID, &p.Title, &p.Contents, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return p, nil
}

// orderBy turns a raw sortBy value into a safe ORDER BY clause.
func orderBy(sortBy string) string {
	key := strings.ToLower(strings.TrimSpace(sortBy))
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		key = strings.TrimPrefix(key, "-")
		dir = "DESC"
	}

	col, ok := sortColumns[key]
	if !ok {
		return "id ASC"
	}
	if col == "id" {
		return "id " + dir
	}
	return col + " " + dir + ", id ASC"
}

func parseLimit(limit string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

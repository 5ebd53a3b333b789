package posts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan-io/castellan/internal/shared"
)

// Repository provides post persistence. WithTx rebinds it to an open
// transaction so post mutations join the audited atomic unit.
type Repository interface {
	WithTx(tx pgx.Tx) Repository
	List(ctx context.Context, ownerID *int64) ([]Post, error)
	Get(ctx context.Context, id int64) (*Post, error)
	Create(ctx context.Context, post Post) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type repository struct {
	db dbtx
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool}
}

func (r *repository) WithTx(tx pgx.Tx) Repository {
	return &repository{db: tx}
}

const postQuery = `
	SELECT p.id, p.title, p.content, p.user_id, u.username, u.email, r.name, p.created_at, p.updated_at
	FROM posts p
	JOIN users u ON u.id = p.user_id
	JOIN roles r ON r.id = u.role_id`

func (r *repository) List(ctx context.Context, ownerID *int64) ([]Post, error) {
	query := postQuery
	var args []any
	if ownerID != nil {
		query += ` WHERE p.user_id = $1`
		args = append(args, *ownerID)
	}
	query += ` ORDER BY p.created_at DESC`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *post)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Post, error) {
	post, err := scanPost(r.db.QueryRow(ctx, postQuery+` WHERE p.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("post not found")
		}
		return nil, err
	}
	return post, nil
}

func (r *repository) Create(ctx context.Context, post Post) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO posts (title, content, user_id) VALUES ($1, $2, $3) RETURNING id`,
		post.Title, post.Content, post.UserID).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE posts SET updated_at = NOW()"
	var args []any
	argPos := 1
	for _, column := range []string{"title", "content"} {
		if v, ok := updates[column]; ok {
			query += fmt.Sprintf(", %s = $%d", column, argPos)
			args = append(args, v)
			argPos++
		}
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("post not found")
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("post not found")
	}
	return nil
}

func scanPost(row pgx.Row) (*Post, error) {
	var post Post
	if err := row.Scan(&post.ID, &post.Title, &post.Content, &post.UserID,
		&post.Author.Username, &post.Author.Email, &post.Author.Role,
		&post.CreatedAt, &post.UpdatedAt); err != nil {
		return nil, err
	}
	post.Author.ID = post.UserID
	return &post, nil
}

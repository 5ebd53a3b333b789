package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan-io/castellan/internal/platform/db"
	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

// Repository provides user persistence, including the cascade steps folded
// into an audited deletion. WithTx rebinds it to an open transaction.
type Repository interface {
	WithTx(tx pgx.Tx) Repository
	List(ctx context.Context, includeAdmins bool) ([]User, error)
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Create(ctx context.Context, user User) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]any) error
	Delete(ctx context.Context, id int64) error
	DeleteOwnedPosts(ctx context.Context, userID int64) error
	PurgeActivity(ctx context.Context, userID int64) error
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

const userColumns = `u.id, u.email, u.username, u.password_hash, u.role_id, r.name, r.permissions, u.created_at, u.updated_at`

func (r *repository) List(ctx context.Context, includeAdmins bool) ([]User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN roles r ON r.id = u.role_id`, userColumns)
	var args []any
	if !includeAdmins {
		query += ` WHERE r.name <> $1`
		args = append(args, rbac.RoleAdmin)
	}
	query += ` ORDER BY u.id`
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *user)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN roles r ON r.id = u.role_id WHERE u.id = $1`, userColumns)
	return r.one(ctx, query, id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users u JOIN roles r ON r.id = u.role_id WHERE u.email = $1`, userColumns)
	return r.one(ctx, query, email)
}

func (r *repository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, role_id) VALUES ($1, $2, $3, $4) RETURNING id`,
		user.Email, user.Username, user.PasswordHash, user.RoleID).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.Conflict("user already exists")
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]any) error {
	query := "UPDATE users SET updated_at = NOW()"
	var args []any
	argPos := 1
	for _, column := range []string{"username", "email", "password_hash", "role_id"} {
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
		if db.IsUniqueViolation(err) {
			return shared.Conflict("email already in use")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("user not found")
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("user not found")
	}
	return nil
}

func (r *repository) DeleteOwnedPosts(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
	return err
}

func (r *repository) PurgeActivity(ctx context.Context, userID int64) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM activity_logs WHERE performed_by = $1 OR (target_type = $2 AND target_id = $1)`,
		userID, shared.TargetUser)
	return err
}

func (r *repository) one(ctx context.Context, query string, arg any) (*User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("user not found")
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	if err := row.Scan(&user.ID, &user.Email, &user.Username, &user.PasswordHash,
		&user.RoleID, &user.Role.Name, &user.Role.Permissions, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

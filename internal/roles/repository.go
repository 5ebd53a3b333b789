package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan-io/castellan/internal/platform/db"
	"github.com/castellan-io/castellan/internal/shared"
)

// Repository provides role persistence. WithTx rebinds the repository to an
// open transaction so role mutations join the audited atomic unit.
type Repository interface {
	WithTx(tx pgx.Tx) Repository
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	PermissionsByRoleName(ctx context.Context, name string) ([]string, error)
	Create(ctx context.Context, role Role) (int64, error)
	Update(ctx context.Context, id int64, name *string, permissions []string) error
	Delete(ctx context.Context, id int64) error
	CountUsers(ctx context.Context, roleID int64) (int, error)
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

func (r *repository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, permissions, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (*Role, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT id, name, permissions, created_at, updated_at FROM roles WHERE id = $1`, id))
}

func (r *repository) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.scanOne(r.db.QueryRow(ctx, `SELECT id, name, permissions, created_at, updated_at FROM roles WHERE name = $1`, name))
}

func (r *repository) PermissionsByRoleName(ctx context.Context, name string) ([]string, error) {
	var perms []string
	err := r.db.QueryRow(ctx, `SELECT permissions FROM roles WHERE name = $1`, name).Scan(&perms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("role not found")
		}
		return nil, err
	}
	return perms, nil
}

func (r *repository) Create(ctx context.Context, role Role) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO roles (name, permissions) VALUES ($1, $2) RETURNING id`,
		role.Name, role.Permissions).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, shared.Conflict("role already exists")
		}
		return 0, err
	}
	return id, nil
}

func (r *repository) Update(ctx context.Context, id int64, name *string, permissions []string) error {
	query := "UPDATE roles SET updated_at = NOW()"
	var args []any
	argPos := 1
	if name != nil {
		query += fmt.Sprintf(", name = $%d", argPos)
		args = append(args, *name)
		argPos++
	}
	if permissions != nil {
		query += fmt.Sprintf(", permissions = $%d", argPos)
		args = append(args, permissions)
		argPos++
	}
	query += fmt.Sprintf(" WHERE id = $%d", argPos)
	args = append(args, id)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return shared.Conflict("role already exists")
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("role not found")
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("role not found")
	}
	return nil
}

func (r *repository) CountUsers(ctx context.Context, roleID int64) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) scanOne(row pgx.Row) (*Role, error) {
	var role Role
	if err := row.Scan(&role.ID, &role.Name, &role.Permissions, &role.CreatedAt, &role.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.NotFound("role not found")
		}
		return nil, err
	}
	return &role, nil
}

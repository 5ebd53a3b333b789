package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan-io/castellan/internal/rbac"
)

// Repository reads the activity trail. Writes happen exclusively through the
// audited-mutation runner.
type Repository interface {
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `
		SELECT a.id, a.action, a.performed_by, u.username, u.email, r.name,
		       a.target_type, a.target_id, a.details, a.created_at
		FROM activity_logs a
		JOIN users u ON u.id = a.performed_by
		JOIN roles r ON r.id = u.role_id`
	var args []any
	argPos := 1
	if filter.ExcludeAdminPerformers {
		query += fmt.Sprintf(` WHERE r.name <> $%d`, argPos)
		args = append(args, rbac.RoleAdmin)
		argPos++
	}
	query += fmt.Sprintf(` ORDER BY a.created_at DESC LIMIT $%d OFFSET $%d`, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.PerformedBy,
			&e.Performer.Username, &e.Performer.Email, &e.Performer.Role,
			&e.TargetType, &e.TargetID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/castellan-io/castellan/internal/platform/db"
)

// Audit actions recorded in activity_logs. The set is closed: every mutating
// operation maps to exactly one of these tags.
const (
	ActionUserRegistered = "USER_REGISTERED"
	ActionUserLogin      = "USER_LOGIN"
	ActionUserCreated    = "USER_CREATED"
	ActionUserUpdated    = "USER_UPDATED"
	ActionUserDeleted    = "USER_DELETED"
	ActionPostCreated    = "POST_CREATED"
	ActionPostUpdated    = "POST_UPDATED"
	ActionPostDeleted    = "POST_DELETED"
	ActionRoleCreated    = "ROLE_CREATED"
	ActionRoleUpdated    = "ROLE_UPDATED"
	ActionRoleDeleted    = "ROLE_DELETED"
)

// Audit target types.
const (
	TargetUser = "USER"
	TargetRole = "ROLE"
	TargetPost = "POST"
)

// AuditEntry describes the activity_logs row committed together with a mutation.
type AuditEntry struct {
	Action      string
	PerformedBy int64
	TargetType  string
	TargetID    int64
	Details     map[string]any
}

// Auditor executes a state mutation and its audit entry as one atomic unit:
// either both persist or neither does. The entry is taken by pointer so the
// mutation can fill in generated identifiers before the log insert. A nil
// mutation is permitted for log-only operations such as recording a login.
type Auditor interface {
	Run(ctx context.Context, entry *AuditEntry, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// PGAuditor implements Auditor on top of a single PostgreSQL transaction.
type PGAuditor struct {
	pool *pgxpool.Pool
}

// NewPGAuditor returns an Auditor backed by the provided pool.
func NewPGAuditor(pool *pgxpool.Pool) *PGAuditor {
	return &PGAuditor{pool: pool}
}

// Run executes fn and inserts the audit entry inside one transaction.
func (a *PGAuditor) Run(ctx context.Context, entry *AuditEntry, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if a == nil || a.pool == nil {
		return errors.New("auditor not initialised")
	}
	if entry == nil || entry.Action == "" || entry.TargetType == "" {
		return errors.New("audit entry requires action and target type")
	}
	return db.WithTx(ctx, a.pool, func(tx pgx.Tx) error {
		if fn != nil {
			if err := fn(ctx, tx); err != nil {
				return err
			}
		}
		return insertEntry(ctx, tx, *entry)
	})
}

func insertEntry(ctx context.Context, tx pgx.Tx, entry AuditEntry) error {
	var details []byte
	if entry.Details != nil {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO activity_logs (action, performed_by, target_type, target_id, details) VALUES ($1, $2, $3, $4, $5)`,
		entry.Action, entry.PerformedBy, entry.TargetType, entry.TargetID, details)
	if err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

var _ Auditor = (*PGAuditor)(nil)

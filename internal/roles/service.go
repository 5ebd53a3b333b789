package roles

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

// Service handles role management. Every mutation commits together with its
// activity entry, and the permission cache is invalidated afterwards.
type Service struct {
	repo    Repository
	audit   shared.Auditor
	catalog *rbac.Catalog
}

// NewService builds a Service instance.
func NewService(repo Repository, audit shared.Auditor, catalog *rbac.Catalog) *Service {
	return &Service{repo: repo, audit: audit, catalog: catalog}
}

// List returns all roles ordered by name.
func (s *Service) List(ctx context.Context) ([]Role, error) {
	return s.repo.List(ctx)
}

// Get fetches a role by id.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new role and its ROLE_CREATED entry.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateRoleRequest) (*Role, error) {
	name := strings.ToUpper(strings.TrimSpace(req.Name))
	if err := validatePermissions(req.Permissions); err != nil {
		return nil, err
	}
	if err := assertUnique(ctx, s.repo, name); err != nil {
		return nil, err
	}

	role := Role{Name: name, Permissions: req.Permissions}
	entry := &shared.AuditEntry{
		Action:      shared.ActionRoleCreated,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetRole,
	}
	err := s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		id, err := s.repo.WithTx(tx).Create(ctx, role)
		if err != nil {
			return err
		}
		role.ID = id
		entry.TargetID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create role: %w", err)
	}
	return s.repo.Get(ctx, role.ID)
}

// Update applies a partial update guarded by the ADMIN-permissions rail.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, req UpdateRoleRequest) (*Role, error) {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := assertMutable(role, req.Permissions != nil); err != nil {
		return nil, err
	}

	var name *string
	if req.Name != nil {
		normalized := strings.ToUpper(strings.TrimSpace(*req.Name))
		name = &normalized
	}
	var permissions []string
	if req.Permissions != nil {
		permissions = *req.Permissions
		if err := validatePermissions(permissions); err != nil {
			return nil, err
		}
	}
	if name == nil && permissions == nil {
		return role, nil
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionRoleUpdated,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetRole,
		TargetID:    id,
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.WithTx(tx).Update(ctx, id, name, permissions)
	})
	if err != nil {
		return nil, fmt.Errorf("update role: %w", err)
	}

	s.catalog.Invalidate(ctx, role.Name)
	if name != nil && *name != role.Name {
		s.catalog.Invalidate(ctx, *name)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a role after the guardrails pass.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	assigned, err := s.repo.CountUsers(ctx, id)
	if err != nil {
		return fmt.Errorf("count role users: %w", err)
	}
	if err := assertDeletable(role, assigned); err != nil {
		return err
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionRoleDeleted,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetRole,
		TargetID:    id,
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}

	s.catalog.Invalidate(ctx, role.Name)
	return nil
}

func validatePermissions(perms []string) error {
	for _, p := range perms {
		if !rbac.Permission(p).Valid() {
			return shared.BadRequest(fmt.Sprintf("unknown permission: %s", p))
		}
	}
	return nil
}

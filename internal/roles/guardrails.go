package roles

import (
	"context"
	"errors"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

// Guardrails protect system-critical roles from mutation and deletion. They
// are consulted before any role mutation, independent of who the actor is.

// assertMutable rejects updates that touch the ADMIN role's permission set.
// Presence of the field is enough; the value is not inspected.
func assertMutable(role *Role, touchesPermissions bool) error {
	if role.Name == rbac.RoleAdmin && touchesPermissions {
		return shared.Unauthorized("cannot modify ADMIN role permissions")
	}
	return nil
}

// assertDeletable rejects deletion of system roles and of roles still
// referenced by principals.
func assertDeletable(role *Role, assignedUsers int) error {
	switch role.Name {
	case rbac.RoleAdmin, rbac.RoleUser, rbac.RoleModerator:
		return shared.Forbidden("cannot delete system roles")
	}
	if assignedUsers > 0 {
		return shared.Conflict("cannot delete role assigned to users")
	}
	return nil
}

// assertUnique rejects creation under a name that already exists.
func assertUnique(ctx context.Context, repo Repository, name string) error {
	_, err := repo.GetByName(ctx, name)
	if err == nil {
		return shared.Conflict("role already exists")
	}
	var appErr *shared.Error
	if errors.As(err, &appErr) && appErr.Kind == shared.KindNotFound {
		return nil
	}
	return err
}

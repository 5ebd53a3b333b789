package rbac

import "github.com/castellan-io/castellan/internal/shared"

// Subject is a principal with its resolved role and permission set, as needed
// by the hierarchy policy. It is built fresh from the store for every check.
type Subject struct {
	ID    int64
	Role  string
	Perms Set
}

// CanModify decides whether the actor may mutate or delete a resource owned
// by (or representing) owner. The same algorithm serves users and posts,
// parameterized on the permission relevant to the operation. Rules apply in
// order, first match wins:
//
//  1. self-exception: acting on one's own resource is always allowed
//  2. admin-vs-admin: an ADMIN may not act on another ADMIN
//  3. peer-collision: two holders of the relevant permission may not act on
//     each other
//  4. default: allow iff the actor holds the relevant permission
func CanModify(actor, owner Subject, relevant Permission) error {
	if actor.ID == owner.ID {
		return nil
	}
	if actor.Role == RoleAdmin && owner.Role == RoleAdmin {
		return shared.Forbidden("admin cannot act on another admin")
	}
	if actor.Perms.Has(relevant) && owner.Perms.Has(relevant) {
		return shared.Forbidden("cannot act on a principal with equal permissions")
	}
	if !actor.Perms.Has(relevant) {
		return shared.Forbidden("permission denied")
	}
	return nil
}

// CanAssignRole guards role reassignment: promoting a target into a role that
// carries the relevant permission is denied when the actor also holds it
// (that would manufacture a peer collision), and a principal may never change
// its own role.
func CanAssignRole(actor Subject, targetID int64, newRolePerms Set, relevant Permission) error {
	if actor.ID == targetID {
		return shared.Forbidden("cannot modify own role")
	}
	if newRolePerms.Has(relevant) && actor.Perms.Has(relevant) {
		return shared.Forbidden("cannot assign a role with equal permissions")
	}
	return nil
}

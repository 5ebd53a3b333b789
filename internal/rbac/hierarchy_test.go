package rbac_test

import (
	"testing"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

func subject(id int64, role string, perms ...rbac.Permission) rbac.Subject {
	set := rbac.Set{}
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return rbac.Subject{ID: id, Role: role, Perms: set}
}

func TestCanModifySelfAlwaysAllowed(t *testing.T) {
	// Even without the relevant permission.
	actor := subject(7, rbac.RoleUser)
	if err := rbac.CanModify(actor, actor, rbac.PermUpdateUser); err != nil {
		t.Fatalf("self modification should be allowed, got %v", err)
	}
}

func TestCanModifyAdminVsAdmin(t *testing.T) {
	a := subject(1, rbac.RoleAdmin, rbac.PermUpdateUser, rbac.PermDeleteUser)
	b := subject(2, rbac.RoleAdmin, rbac.PermUpdateUser, rbac.PermDeleteUser)
	if err := rbac.CanModify(a, b, rbac.PermDeleteUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("admin acting on admin should be forbidden, got %v", err)
	}
}

func TestCanModifyPeerCollisionIsSymmetric(t *testing.T) {
	a := subject(1, "EDITOR", rbac.PermUpdateUser)
	b := subject(2, "REVIEWER", rbac.PermUpdateUser)
	if err := rbac.CanModify(a, b, rbac.PermUpdateUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("a->b should collide, got %v", err)
	}
	if err := rbac.CanModify(b, a, rbac.PermUpdateUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("b->a should collide, got %v", err)
	}
}

func TestCanModifyAsymmetricGrant(t *testing.T) {
	// Only the actor holds the relevant permission; the grant is one-way.
	actor := subject(1, "EDITOR", rbac.PermUpdateUser)
	owner := subject(2, rbac.RoleUser)
	if err := rbac.CanModify(actor, owner, rbac.PermUpdateUser); err != nil {
		t.Fatalf("one-way grant should be allowed, got %v", err)
	}
	if err := rbac.CanModify(owner, actor, rbac.PermUpdateUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("reverse direction should be forbidden, got %v", err)
	}
}

func TestCanModifyWithoutRelevantPermission(t *testing.T) {
	actor := subject(1, rbac.RoleUser, rbac.PermReadUser)
	owner := subject(2, rbac.RoleUser)
	if err := rbac.CanModify(actor, owner, rbac.PermUpdateUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("actor without relevant permission should be denied, got %v", err)
	}
}

func TestCanModifyParameterizedPerPermission(t *testing.T) {
	// Collision is evaluated per permission: two principals can collide on
	// UPDATE_POST yet still act on each other's users.
	a := subject(1, "CURATOR", rbac.PermUpdatePost, rbac.PermUpdateUser)
	b := subject(2, "JANITOR", rbac.PermUpdatePost)
	if err := rbac.CanModify(a, b, rbac.PermUpdatePost); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("should collide on UPDATE_POST, got %v", err)
	}
	if err := rbac.CanModify(a, b, rbac.PermUpdateUser); err != nil {
		t.Fatalf("should be allowed on UPDATE_USER, got %v", err)
	}
}

func TestCanAssignRoleOwnRoleChange(t *testing.T) {
	actor := subject(5, rbac.RoleAdmin, rbac.PermUpdateUser)
	if err := rbac.CanAssignRole(actor, 5, rbac.NewSet(), rbac.PermUpdateUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("changing own role should be forbidden, got %v", err)
	}
}

func TestCanAssignRoleManufacturedCollision(t *testing.T) {
	actor := subject(1, "EDITOR", rbac.PermUpdateUser)
	newRole := rbac.NewSet(string(rbac.PermUpdateUser))
	if err := rbac.CanAssignRole(actor, 2, newRole, rbac.PermUpdateUser); shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("promotion into a colliding role should be forbidden, got %v", err)
	}
	harmless := rbac.NewSet(string(rbac.PermReadPost))
	if err := rbac.CanAssignRole(actor, 2, harmless, rbac.PermUpdateUser); err != nil {
		t.Fatalf("non-colliding promotion should be allowed, got %v", err)
	}
}

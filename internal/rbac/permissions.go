// Package rbac implements the role/permission access-control engine: the
// permission catalog, the coarse authorization guard and the hierarchical
// "who may act on whom" policy.
package rbac

import "sort"

// Permission is an atomic capability token.
type Permission string

// The full known permission enumeration. Role permission sets are always a
// subset of these.
const (
	PermReadUser   Permission = "READ_USER"
	PermCreateUser Permission = "CREATE_USER"
	PermUpdateUser Permission = "UPDATE_USER"
	PermDeleteUser Permission = "DELETE_USER"

	PermReadPost   Permission = "READ_POST"
	PermCreatePost Permission = "CREATE_POST"
	PermUpdatePost Permission = "UPDATE_POST"
	PermDeletePost Permission = "DELETE_POST"

	PermManageRoles  Permission = "MANAGE_ROLES"
	PermViewActivity Permission = "VIEW_ACTIVITY"
)

// System role names. These roles are provisioned at seed time and exempt from
// deletion; ADMIN's permission set is additionally frozen.
const (
	RoleAdmin     = "ADMIN"
	RoleUser      = "USER"
	RoleModerator = "MODERATOR"
)

// AllPermissions returns the closed enumeration in stable order.
func AllPermissions() []Permission {
	return []Permission{
		PermReadUser, PermCreateUser, PermUpdateUser, PermDeleteUser,
		PermReadPost, PermCreatePost, PermUpdatePost, PermDeletePost,
		PermManageRoles, PermViewActivity,
	}
}

// Valid reports whether p belongs to the known enumeration.
func (p Permission) Valid() bool {
	for _, known := range AllPermissions() {
		if p == known {
			return true
		}
	}
	return false
}

// Set is a permission set with O(1) membership checks.
type Set map[Permission]struct{}

// NewSet builds a Set from raw permission strings.
func NewSet(perms ...string) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		s[Permission(p)] = struct{}{}
	}
	return s
}

// Has reports whether p is in the set.
func (s Set) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// HasAll reports whether every permission in required is in the set.
func (s Set) HasAll(required ...Permission) bool {
	for _, p := range required {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one permission in candidates is in the set.
func (s Set) HasAny(candidates ...Permission) bool {
	for _, p := range candidates {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Strings returns the set as sorted raw strings.
func (s Set) Strings() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

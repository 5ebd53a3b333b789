package users

import (
	"time"

	"github.com/castellan-io/castellan/internal/rbac"
)

// User is a principal: an authenticated actor identified by id and role.
// The password hash is never serialized.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	RoleID       int64     `json:"role_id"`
	Role         RoleInfo  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RoleInfo is the resolved role carried alongside a user.
type RoleInfo struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

// Subject projects the user into the hierarchy policy's view of a principal.
func (u *User) Subject() rbac.Subject {
	return rbac.Subject{
		ID:    u.ID,
		Role:  u.Role.Name,
		Perms: rbac.NewSet(u.Role.Permissions...),
	}
}

package users

// CreateUserRequest provisions an account on behalf of an authorized creator.
// RoleID is optional; absent means the USER role.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	RoleID   *int64 `json:"role_id,omitempty" validate:"omitempty,gt=0"`
}

// UpdateUserRequest carries partial updates; nil fields stay untouched.
type UpdateUserRequest struct {
	Username *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Email    *string `json:"email,omitempty" validate:"omitempty,email"`
	Password *string `json:"password,omitempty" validate:"omitempty,min=8"`
	RoleID   *int64  `json:"role_id,omitempty" validate:"omitempty,gt=0"`
}

package roles

type CreateRoleRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=50"`
	Permissions []string `json:"permissions" validate:"required,dive,required"`
}

// UpdateRoleRequest carries partial updates. A non-nil Permissions field
// counts as "touching permissions" for the ADMIN guardrail, even when the
// value is unchanged.
type UpdateRoleRequest struct {
	Name        *string   `json:"name,omitempty" validate:"omitempty,min=2,max=50"`
	Permissions *[]string `json:"permissions,omitempty" validate:"omitempty,dive,required"`
}

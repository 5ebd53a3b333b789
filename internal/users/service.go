package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/roles"
	"github.com/castellan-io/castellan/internal/shared"
)

// elevatedPermissions marks the capabilities only an ADMIN actor may hand out
// at user-creation time.
var elevatedPermissions = []rbac.Permission{
	rbac.PermUpdateUser,
	rbac.PermDeleteUser,
	rbac.PermManageRoles,
}

// Service handles user management. Per-resource decisions go through the
// hierarchy policy; every mutation commits together with its activity entry.
type Service struct {
	repo     Repository
	roleRepo roles.Repository
	audit    shared.Auditor
	hasher   PasswordHasher
}

// NewService builds a Service instance.
func NewService(repo Repository, roleRepo roles.Repository, audit shared.Auditor, hasher PasswordHasher) *Service {
	return &Service{repo: repo, roleRepo: roleRepo, audit: audit, hasher: hasher}
}

// List returns users. Principals holding the ADMIN role are visible only to
// an ADMIN actor.
func (s *Service) List(ctx context.Context, actor shared.Principal) ([]User, error) {
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(acting.Subject().Perms, rbac.PermReadUser); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, acting.Role.Name == rbac.RoleAdmin)
}

// Get fetches a single user by id.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*User, error) {
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(acting.Subject().Perms, rbac.PermReadUser); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Create provisions a user on behalf of an authorized creator. Only an ADMIN
// actor may assign a role carrying elevated permissions.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateUserRequest) (*User, error) {
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(acting.Subject().Perms, rbac.PermCreateUser); err != nil {
		return nil, err
	}

	var role *roles.Role
	if req.RoleID != nil {
		role, err = s.roleRepo.Get(ctx, *req.RoleID)
		if err != nil {
			if shared.KindOf(err) == shared.KindNotFound {
				return nil, shared.BadRequest("invalid role specified")
			}
			return nil, err
		}
		rolePerms := rbac.NewSet(role.Permissions...)
		if rolePerms.HasAny(elevatedPermissions...) && acting.Role.Name != rbac.RoleAdmin {
			return nil, shared.Forbidden("cannot create user with elevated permissions")
		}
	} else {
		role, err = s.roleRepo.GetByName(ctx, rbac.RoleUser)
		if err != nil {
			return nil, fmt.Errorf("resolve default role: %w", err)
		}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := User{
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		RoleID:       role.ID,
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionUserCreated,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetUser,
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		id, err := s.repo.WithTx(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		user.ID = id
		entry.TargetID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, user.ID)
}

// Update mutates a user subject to the hierarchy policy. Role reassignment is
// additionally guarded against peer-collision by promotion and against
// changing one's own role.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, req UpdateUserRequest) (*User, error) {
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	actingSubject := acting.Subject()
	if err := rbac.Require(actingSubject.Perms, rbac.PermUpdateUser); err != nil {
		return nil, err
	}
	if err := rbac.CanModify(actingSubject, target.Subject(), rbac.PermUpdateUser); err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	var updatedFields []string
	roleChanged := false
	if req.Username != nil {
		updates["username"] = *req.Username
		updatedFields = append(updatedFields, "username")
	}
	if req.Email != nil {
		updates["email"] = *req.Email
		updatedFields = append(updatedFields, "email")
	}
	if req.Password != nil {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = hash
	}
	if req.RoleID != nil && *req.RoleID != target.RoleID {
		newRole, err := s.roleRepo.Get(ctx, *req.RoleID)
		if err != nil {
			if shared.KindOf(err) == shared.KindNotFound {
				return nil, shared.BadRequest("invalid role specified")
			}
			return nil, err
		}
		newPerms := rbac.NewSet(newRole.Permissions...)
		if err := rbac.CanAssignRole(actingSubject, target.ID, newPerms, rbac.PermUpdateUser); err != nil {
			return nil, err
		}
		updates["role_id"] = *req.RoleID
		updatedFields = append(updatedFields, "role_id")
		roleChanged = true
	}
	if len(updates) == 0 {
		return target, nil
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionUserUpdated,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetUser,
		TargetID:    id,
		Details: map[string]any{
			"updated_fields": updatedFields,
			"role_changed":   roleChanged,
		},
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.WithTx(tx).Update(ctx, id, updates)
	})
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a user together with their posts and activity entries, and
// records the single USER_DELETED entry, all in one atomic unit.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	target, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	actingSubject := acting.Subject()
	if err := rbac.Require(actingSubject.Perms, rbac.PermDeleteUser); err != nil {
		return err
	}
	if err := rbac.CanModify(actingSubject, target.Subject(), rbac.PermDeleteUser); err != nil {
		return err
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionUserDeleted,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetUser,
		TargetID:    id,
	}
	return s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		repo := s.repo.WithTx(tx)
		if err := repo.PurgeActivity(ctx, id); err != nil {
			return fmt.Errorf("purge activity: %w", err)
		}
		if err := repo.DeleteOwnedPosts(ctx, id); err != nil {
			return fmt.Errorf("delete owned posts: %w", err)
		}
		return repo.Delete(ctx, id)
	})
}

func (s *Service) resolveActor(ctx context.Context, actor shared.Principal) (*User, error) {
	acting, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, shared.Unauthorized("acting principal not found")
		}
		return nil, err
	}
	return acting, nil
}

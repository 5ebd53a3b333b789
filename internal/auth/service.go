package auth

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/roles"
	"github.com/castellan-io/castellan/internal/shared"
	"github.com/castellan-io/castellan/internal/users"
)

// Service wraps registration and credential verification.
type Service struct {
	userRepo users.Repository
	roleRepo roles.Repository
	audit    shared.Auditor
	hasher   users.PasswordHasher
	tokens   *TokenManager
}

// NewService builds a Service instance.
func NewService(userRepo users.Repository, roleRepo roles.Repository, audit shared.Auditor, hasher users.PasswordHasher, tokens *TokenManager) *Service {
	return &Service{userRepo: userRepo, roleRepo: roleRepo, audit: audit, hasher: hasher, tokens: tokens}
}

// Register provisions a self-service account with the USER role and issues a
// token. The account row and its USER_REGISTERED entry commit together.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*TokenResponse, error) {
	role, err := s.roleRepo.GetByName(ctx, rbac.RoleUser)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	var created int64
	entry := shared.AuditEntry{
		Action:     shared.ActionUserRegistered,
		TargetType: shared.TargetUser,
	}
	err = s.audit.Run(ctx, &entry, func(ctx context.Context, tx pgx.Tx) error {
		id, err := s.userRepo.WithTx(tx).Create(ctx, users.User{
			Email:        req.Email,
			Username:     req.Username,
			PasswordHash: hash,
			RoleID:       role.ID,
		})
		if err != nil {
			return err
		}
		created = id
		entry.PerformedBy = id
		entry.TargetID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.Get(ctx, created)
	if err != nil {
		return nil, err
	}
	token, err := s.tokens.Issue(user.ID, user.Role.Name)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, User: user}, nil
}

// Login verifies credentials and issues a token. Unknown emails surface as
// NotFound, wrong passwords as Unauthorized. The USER_LOGIN entry goes
// through the audited runner like every other recorded action.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*TokenResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		return nil, shared.Unauthorized("invalid credentials")
	}

	entry := shared.AuditEntry{
		Action:      shared.ActionUserLogin,
		PerformedBy: user.ID,
		TargetType:  shared.TargetUser,
		TargetID:    user.ID,
	}
	if err := s.audit.Run(ctx, &entry, nil); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID, user.Role.Name)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{Token: token, User: user}, nil
}

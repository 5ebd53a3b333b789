package activity

import (
	"context"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// Service handles activity trail listings.
type Service struct {
	repo Repository
}

// NewService builds a Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns entries newest first. A MODERATOR viewer never sees entries
// performed by ADMIN principals; an ADMIN viewer sees everything.
func (s *Service) List(ctx context.Context, actor shared.Principal, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	filter := Filter{
		ExcludeAdminPerformers: actor.Role == rbac.RoleModerator,
		Limit:                  limit,
		Offset:                 offset,
	}
	return s.repo.List(ctx, filter)
}

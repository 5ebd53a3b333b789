package posts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/shared"
	"github.com/castellan-io/castellan/internal/users"
)

// Service handles post operations. Update and delete reuse the same
// hierarchy policy as user management, parameterized on the post permission
// and the post's owner.
type Service struct {
	repo     Repository
	userRepo users.Repository
	audit    shared.Auditor
}

// NewService builds a Service instance.
func NewService(repo Repository, userRepo users.Repository, audit shared.Auditor) *Service {
	return &Service{repo: repo, userRepo: userRepo, audit: audit}
}

// List returns the actor's own posts, or every post when the actor holds an
// elevated role (ADMIN or MODERATOR).
func (s *Service) List(ctx context.Context, actor shared.Principal) ([]Post, error) {
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(acting.Subject().Perms, rbac.PermReadPost); err != nil {
		return nil, err
	}
	if elevated(acting.Role.Name) {
		return s.repo.List(ctx, nil)
	}
	ownerID := acting.ID
	return s.repo.List(ctx, &ownerID)
}

// Get fetches a post, restricted to the owner unless the actor's role is
// elevated.
func (s *Service) Get(ctx context.Context, actor shared.Principal, id int64) (*Post, error) {
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(acting.Subject().Perms, rbac.PermReadPost); err != nil {
		return nil, err
	}
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !elevated(acting.Role.Name) && post.UserID != acting.ID {
		return nil, shared.Forbidden("no permission to view this post")
	}
	return post, nil
}

// Create inserts a post owned by the actor together with its POST_CREATED
// entry.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreatePostRequest) (*Post, error) {
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	if err := rbac.Require(acting.Subject().Perms, rbac.PermCreatePost); err != nil {
		return nil, err
	}

	post := Post{Title: req.Title, Content: req.Content, UserID: acting.ID}
	entry := &shared.AuditEntry{
		Action:      shared.ActionPostCreated,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetPost,
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		id, err := s.repo.WithTx(tx).Create(ctx, post)
		if err != nil {
			return err
		}
		post.ID = id
		entry.TargetID = id
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return s.repo.Get(ctx, post.ID)
}

// Update mutates a post subject to the hierarchy policy. Owner, id and
// timestamps are immutable.
func (s *Service) Update(ctx context.Context, actor shared.Principal, id int64, req UpdatePostRequest) (*Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	actingSubject := acting.Subject()
	if err := rbac.Require(actingSubject.Perms, rbac.PermUpdatePost); err != nil {
		return nil, err
	}
	if err := s.checkHierarchy(ctx, actingSubject, post, rbac.PermUpdatePost); err != nil {
		return nil, err
	}

	updates := make(map[string]any)
	var updatedFields []string
	if req.Title != nil {
		updates["title"] = *req.Title
		updatedFields = append(updatedFields, "title")
	}
	if req.Content != nil {
		updates["content"] = *req.Content
		updatedFields = append(updatedFields, "content")
	}
	if len(updates) == 0 {
		return post, nil
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionPostUpdated,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetPost,
		TargetID:    id,
		Details:     map[string]any{"updated_fields": updatedFields},
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.WithTx(tx).Update(ctx, id, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a post subject to the hierarchy policy.
func (s *Service) Delete(ctx context.Context, actor shared.Principal, id int64) error {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	acting, err := s.resolveActor(ctx, actor)
	if err != nil {
		return err
	}
	actingSubject := acting.Subject()
	if err := rbac.Require(actingSubject.Perms, rbac.PermDeletePost); err != nil {
		return err
	}
	if err := s.checkHierarchy(ctx, actingSubject, post, rbac.PermDeletePost); err != nil {
		return err
	}

	entry := &shared.AuditEntry{
		Action:      shared.ActionPostDeleted,
		PerformedBy: actor.UserID,
		TargetType:  shared.TargetPost,
		TargetID:    id,
	}
	err = s.audit.Run(ctx, entry, func(ctx context.Context, tx pgx.Tx) error {
		return s.repo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func (s *Service) checkHierarchy(ctx context.Context, acting rbac.Subject, post *Post, relevant rbac.Permission) error {
	owner, err := s.userRepo.Get(ctx, post.UserID)
	if err != nil {
		return fmt.Errorf("resolve post owner: %w", err)
	}
	return rbac.CanModify(acting, owner.Subject(), relevant)
}

func (s *Service) resolveActor(ctx context.Context, actor shared.Principal) (*users.User, error) {
	acting, err := s.userRepo.Get(ctx, actor.UserID)
	if err != nil {
		if shared.KindOf(err) == shared.KindNotFound {
			return nil, shared.Unauthorized("acting principal not found")
		}
		return nil, err
	}
	return acting, nil
}

func elevated(roleName string) bool {
	return roleName == rbac.RoleAdmin || roleName == rbac.RoleModerator
}

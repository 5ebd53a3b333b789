package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/castellan-io/castellan/internal/auth"
	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/roles"
	"github.com/castellan-io/castellan/internal/shared"
	"github.com/castellan-io/castellan/internal/users"
)

type stubUserRepo struct {
	users  map[int64]users.User
	nextID int64
}

func (s *stubUserRepo) WithTx(tx pgx.Tx) users.Repository { return s }

func (s *stubUserRepo) List(ctx context.Context, includeAdmins bool) ([]users.User, error) {
	return nil, nil
}

func (s *stubUserRepo) Get(ctx context.Context, id int64) (*users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, shared.NotFound("user not found")
	}
	return &u, nil
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, shared.NotFound("user not found")
}

func (s *stubUserRepo) Create(ctx context.Context, user users.User) (int64, error) {
	for _, existing := range s.users {
		if existing.Email == user.Email {
			return 0, shared.Conflict("user already exists")
		}
	}
	user.ID = s.nextID
	user.Role = users.RoleInfo{Name: rbac.RoleUser, Permissions: []string{"READ_POST", "CREATE_POST"}}
	s.nextID++
	s.users[user.ID] = user
	return user.ID, nil
}

func (s *stubUserRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	return nil
}

func (s *stubUserRepo) Delete(ctx context.Context, id int64) error { return nil }

func (s *stubUserRepo) DeleteOwnedPosts(ctx context.Context, userID int64) error { return nil }

func (s *stubUserRepo) PurgeActivity(ctx context.Context, userID int64) error { return nil }

type stubRoleRepo struct{}

func (stubRoleRepo) WithTx(tx pgx.Tx) roles.Repository           { return stubRoleRepo{} }
func (stubRoleRepo) List(ctx context.Context) ([]roles.Role, error) { return nil, nil }

func (stubRoleRepo) Get(ctx context.Context, id int64) (*roles.Role, error) {
	return nil, shared.NotFound("role not found")
}

func (stubRoleRepo) GetByName(ctx context.Context, name string) (*roles.Role, error) {
	if name != rbac.RoleUser {
		return nil, shared.NotFound("role not found")
	}
	return &roles.Role{ID: 2, Name: rbac.RoleUser, Permissions: []string{"READ_POST", "CREATE_POST"}}, nil
}

func (stubRoleRepo) PermissionsByRoleName(ctx context.Context, name string) ([]string, error) {
	r, err := stubRoleRepo{}.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.Permissions, nil
}

func (stubRoleRepo) Create(ctx context.Context, role roles.Role) (int64, error) { return 0, nil }

func (stubRoleRepo) Update(ctx context.Context, id int64, name *string, permissions []string) error {
	return nil
}

func (stubRoleRepo) Delete(ctx context.Context, id int64) error { return nil }

func (stubRoleRepo) CountUsers(ctx context.Context, roleID int64) (int, error) { return 0, nil }

type recordingAuditor struct {
	entries []shared.AuditEntry
}

func (a *recordingAuditor) Run(ctx context.Context, entry *shared.AuditEntry, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if fn != nil {
		if err := fn(ctx, nil); err != nil {
			return err
		}
	}
	a.entries = append(a.entries, *entry)
	return nil
}

func newAuthService() (*auth.Service, *stubUserRepo, *recordingAuditor) {
	repo := &stubUserRepo{users: map[int64]users.User{}, nextID: 1}
	audit := &recordingAuditor{}
	svc := auth.NewService(repo, stubRoleRepo{}, audit, users.PasswordHasher{Cost: 4}, auth.NewTokenManager("test-secret", time.Hour))
	return svc, repo, audit
}

func TestRegisterIssuesTokenAndAudits(t *testing.T) {
	svc, repo, audit := newAuthService()

	resp, err := svc.Register(context.Background(), auth.RegisterRequest{
		Username: "newbie",
		Email:    "newbie@test.local",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected a token")
	}
	if resp.User.Role.Name != rbac.RoleUser {
		t.Fatalf("expected USER role, got %q", resp.User.Role.Name)
	}
	if len(audit.entries) != 1 || audit.entries[0].Action != shared.ActionUserRegistered {
		t.Fatalf("expected USER_REGISTERED entry, got %+v", audit.entries)
	}
	if audit.entries[0].PerformedBy != resp.User.ID || audit.entries[0].TargetID != resp.User.ID {
		t.Fatalf("registration entry should reference the new account")
	}
	if stored := repo.users[resp.User.ID]; stored.PasswordHash == "secret-pass" {
		t.Fatalf("password must be stored hashed")
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()
	req := auth.RegisterRequest{Username: "a", Email: "dup@test.local", Password: "secret-pass"}
	if _, err := svc.Register(ctx, req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(ctx, req)
	if shared.KindOf(err) != shared.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestLoginFlows(t *testing.T) {
	svc, _, audit := newAuthService()
	ctx := context.Background()
	if _, err := svc.Register(ctx, auth.RegisterRequest{Username: "u", Email: "u@test.local", Password: "secret-pass"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Login(ctx, auth.LoginRequest{Email: "ghost@test.local", Password: "whatever"})
	if shared.KindOf(err) != shared.KindNotFound {
		t.Fatalf("unknown email should be not found, got %v", err)
	}

	_, err = svc.Login(ctx, auth.LoginRequest{Email: "u@test.local", Password: "wrong-pass"})
	if shared.KindOf(err) != shared.KindUnauthorized {
		t.Fatalf("wrong password should be unauthorized, got %v", err)
	}

	resp, err := svc.Login(ctx, auth.LoginRequest{Email: "u@test.local", Password: "secret-pass"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected a token")
	}
	var logins int
	for _, e := range audit.entries {
		if e.Action == shared.ActionUserLogin {
			logins++
		}
	}
	if logins != 1 {
		t.Fatalf("expected exactly one USER_LOGIN entry, got %d", logins)
	}
}

package users_test

import (
	"context"
	"errors"
	"maps"
	"testing"

	"github.com/jackc/pgx/v5"

	"github.com/castellan-io/castellan/internal/rbac"
	"github.com/castellan-io/castellan/internal/roles"
	"github.com/castellan-io/castellan/internal/shared"
	"github.com/castellan-io/castellan/internal/users"
)

// fakeStore holds all state touched by a user deletion so the audited-unit
// fakes can roll it back wholesale.
type fakeStore struct {
	users         map[int64]users.User
	postsByOwner  map[int64]int
	entriesByUser map[int64]int
	entries       []shared.AuditEntry
	nextID        int64
}

func (s *fakeStore) clone() *fakeStore {
	return &fakeStore{
		users:         maps.Clone(s.users),
		postsByOwner:  maps.Clone(s.postsByOwner),
		entriesByUser: maps.Clone(s.entriesByUser),
		entries:       append([]shared.AuditEntry(nil), s.entries...),
		nextID:        s.nextID,
	}
}

func (s *fakeStore) restore(from *fakeStore) {
	s.users = from.users
	s.postsByOwner = from.postsByOwner
	s.entriesByUser = from.entriesByUser
	s.entries = from.entries
	s.nextID = from.nextID
}

type fakeUserRepo struct {
	store *fakeStore
}

func (f *fakeUserRepo) WithTx(tx pgx.Tx) users.Repository { return f }

func (f *fakeUserRepo) List(ctx context.Context, includeAdmins bool) ([]users.User, error) {
	var out []users.User
	for _, u := range f.store.users {
		if !includeAdmins && u.Role.Name == rbac.RoleAdmin {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUserRepo) Get(ctx context.Context, id int64) (*users.User, error) {
	u, ok := f.store.users[id]
	if !ok {
		return nil, shared.NotFound("user not found")
	}
	return &u, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	for _, u := range f.store.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, shared.NotFound("user not found")
}

func (f *fakeUserRepo) Create(ctx context.Context, user users.User) (int64, error) {
	for _, existing := range f.store.users {
		if existing.Email == user.Email {
			return 0, shared.Conflict("user already exists")
		}
	}
	user.ID = f.store.nextID
	f.store.nextID++
	f.store.users[user.ID] = user
	return user.ID, nil
}

func (f *fakeUserRepo) Update(ctx context.Context, id int64, updates map[string]any) error {
	u, ok := f.store.users[id]
	if !ok {
		return shared.NotFound("user not found")
	}
	if v, ok := updates["username"]; ok {
		u.Username = v.(string)
	}
	if v, ok := updates["email"]; ok {
		u.Email = v.(string)
	}
	if v, ok := updates["password_hash"]; ok {
		u.PasswordHash = v.(string)
	}
	if v, ok := updates["role_id"]; ok {
		u.RoleID = v.(int64)
	}
	f.store.users[id] = u
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := f.store.users[id]; !ok {
		return shared.NotFound("user not found")
	}
	delete(f.store.users, id)
	return nil
}

func (f *fakeUserRepo) DeleteOwnedPosts(ctx context.Context, userID int64) error {
	delete(f.store.postsByOwner, userID)
	return nil
}

func (f *fakeUserRepo) PurgeActivity(ctx context.Context, userID int64) error {
	delete(f.store.entriesByUser, userID)
	return nil
}

type fakeRoleRepo struct {
	roles map[int64]roles.Role
}

func (f *fakeRoleRepo) WithTx(tx pgx.Tx) roles.Repository { return f }

func (f *fakeRoleRepo) List(ctx context.Context) ([]roles.Role, error) { return nil, nil }

func (f *fakeRoleRepo) Get(ctx context.Context, id int64) (*roles.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, shared.NotFound("role not found")
	}
	return &r, nil
}

func (f *fakeRoleRepo) GetByName(ctx context.Context, name string) (*roles.Role, error) {
	for _, r := range f.roles {
		if r.Name == name {
			role := r
			return &role, nil
		}
	}
	return nil, shared.NotFound("role not found")
}

func (f *fakeRoleRepo) PermissionsByRoleName(ctx context.Context, name string) ([]string, error) {
	r, err := f.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	return r.Permissions, nil
}

func (f *fakeRoleRepo) Create(ctx context.Context, role roles.Role) (int64, error) { return 0, nil }

func (f *fakeRoleRepo) Update(ctx context.Context, id int64, name *string, permissions []string) error {
	return nil
}

func (f *fakeRoleRepo) Delete(ctx context.Context, id int64) error { return nil }

func (f *fakeRoleRepo) CountUsers(ctx context.Context, roleID int64) (int, error) { return 0, nil }

// fakeAuditor mimics the transactional runner: the mutation and the entry
// insert succeed or fail as one unit against the shared fakeStore.
type fakeAuditor struct {
	store      *fakeStore
	failInsert bool
}

func (a *fakeAuditor) Run(ctx context.Context, entry *shared.AuditEntry, fn func(ctx context.Context, tx pgx.Tx) error) error {
	snapshot := a.store.clone()
	if fn != nil {
		if err := fn(ctx, nil); err != nil {
			a.store.restore(snapshot)
			return err
		}
	}
	if a.failInsert {
		a.store.restore(snapshot)
		return errors.New("insert activity log: connection reset")
	}
	a.store.entries = append(a.store.entries, *entry)
	return nil
}

const (
	roleIDAdmin = int64(1)
	roleIDUser  = int64(2)
	roleIDMod   = int64(3)
)

func seedRoles() *fakeRoleRepo {
	all := make([]string, 0)
	for _, p := range rbac.AllPermissions() {
		all = append(all, string(p))
	}
	return &fakeRoleRepo{roles: map[int64]roles.Role{
		roleIDAdmin: {ID: roleIDAdmin, Name: rbac.RoleAdmin, Permissions: all},
		roleIDUser:  {ID: roleIDUser, Name: rbac.RoleUser, Permissions: []string{"READ_POST", "CREATE_POST"}},
		roleIDMod:   {ID: roleIDMod, Name: rbac.RoleModerator, Permissions: []string{"READ_USER", "READ_POST", "UPDATE_POST", "DELETE_POST", "VIEW_ACTIVITY"}},
	}}
}

func seedUser(store *fakeStore, id int64, email, roleName string, roleID int64, perms []string) {
	store.users[id] = users.User{
		ID:     id,
		Email:  email,
		RoleID: roleID,
		Role:   users.RoleInfo{Name: roleName, Permissions: perms},
	}
	if id >= store.nextID {
		store.nextID = id + 1
	}
}

func newFixture(failInsert bool) (*users.Service, *fakeStore) {
	store := &fakeStore{
		users:         map[int64]users.User{},
		postsByOwner:  map[int64]int{},
		entriesByUser: map[int64]int{},
		nextID:        1,
	}
	all := make([]string, 0)
	for _, p := range rbac.AllPermissions() {
		all = append(all, string(p))
	}
	seedUser(store, 1, "admin@test.local", rbac.RoleAdmin, roleIDAdmin, all)
	seedUser(store, 2, "user@test.local", rbac.RoleUser, roleIDUser, []string{"READ_POST", "CREATE_POST"})
	repo := &fakeUserRepo{store: store}
	audit := &fakeAuditor{store: store, failInsert: failInsert}
	svc := users.NewService(repo, seedRoles(), audit, users.PasswordHasher{Cost: 4})
	return svc, store
}

func TestListVisibility(t *testing.T) {
	svc, store := newFixture(false)
	seedUser(store, 3, "mod@test.local", rbac.RoleModerator, roleIDMod,
		[]string{"READ_USER", "READ_POST", "UPDATE_POST", "DELETE_POST", "VIEW_ACTIVITY"})
	ctx := context.Background()

	asMod, err := svc.List(ctx, shared.Principal{UserID: 3, Role: rbac.RoleModerator})
	if err != nil {
		t.Fatalf("moderator list: %v", err)
	}
	for _, u := range asMod {
		if u.Role.Name == rbac.RoleAdmin {
			t.Fatalf("moderator listing should hide admins")
		}
	}

	asAdmin, err := svc.List(ctx, shared.Principal{UserID: 1, Role: rbac.RoleAdmin})
	if err != nil {
		t.Fatalf("admin list: %v", err)
	}
	foundAdmin := false
	for _, u := range asAdmin {
		if u.Role.Name == rbac.RoleAdmin {
			foundAdmin = true
		}
	}
	if !foundAdmin {
		t.Fatalf("admin listing should include admins")
	}
}

func TestCreateElevatedRoleRequiresAdmin(t *testing.T) {
	svc, store := newFixture(false)
	// A custom role holding CREATE_USER but not elevated powers.
	seedUser(store, 5, "recruiter@test.local", "RECRUITER", 9, []string{"CREATE_USER"})

	adminRole := roleIDAdmin
	_, err := svc.Create(context.Background(), shared.Principal{UserID: 5, Role: "RECRUITER"}, users.CreateUserRequest{
		Username: "newbie",
		Email:    "newbie@test.local",
		Password: "secret-pass",
		RoleID:   &adminRole,
	})
	if shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateDefaultsToUserRole(t *testing.T) {
	svc, store := newFixture(false)
	created, err := svc.Create(context.Background(), shared.Principal{UserID: 1, Role: rbac.RoleAdmin}, users.CreateUserRequest{
		Username: "newbie",
		Email:    "newbie@test.local",
		Password: "secret-pass",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.RoleID != roleIDUser {
		t.Fatalf("expected default USER role, got role id %d", created.RoleID)
	}
	if len(store.entries) != 1 || store.entries[0].Action != shared.ActionUserCreated {
		t.Fatalf("expected one USER_CREATED entry, got %+v", store.entries)
	}
}

func TestUpdateOwnRoleForbidden(t *testing.T) {
	svc, _ := newFixture(false)
	role := roleIDUser
	_, err := svc.Update(context.Background(), shared.Principal{UserID: 1, Role: rbac.RoleAdmin}, 1, users.UpdateUserRequest{
		RoleID: &role,
	})
	if shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("expected forbidden for own role change, got %v", err)
	}
}

func TestUpdateAuditsFieldNames(t *testing.T) {
	svc, store := newFixture(false)
	username := "renamed"
	password := "new-password"
	_, err := svc.Update(context.Background(), shared.Principal{UserID: 1, Role: rbac.RoleAdmin}, 2, users.UpdateUserRequest{
		Username: &username,
		Password: &password,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(store.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(store.entries))
	}
	details := store.entries[0].Details
	fields, _ := details["updated_fields"].([]string)
	for _, f := range fields {
		if f == "password" || f == "password_hash" {
			t.Fatalf("password must never appear in audit details")
		}
	}
}

func TestDeleteCascadeCommitsAsOneUnit(t *testing.T) {
	svc, store := newFixture(false)
	store.postsByOwner[2] = 4
	store.entriesByUser[2] = 7

	err := svc.Delete(context.Background(), shared.Principal{UserID: 1, Role: rbac.RoleAdmin}, 2)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := store.users[2]; ok {
		t.Fatalf("user should be deleted")
	}
	if store.postsByOwner[2] != 0 {
		t.Fatalf("owned posts should be deleted")
	}
	if store.entriesByUser[2] != 0 {
		t.Fatalf("prior activity should be purged")
	}
	if len(store.entries) != 1 || store.entries[0].Action != shared.ActionUserDeleted {
		t.Fatalf("expected exactly one USER_DELETED entry, got %+v", store.entries)
	}
}

func TestDeleteCascadeRollsBackOnAuditFailure(t *testing.T) {
	svc, store := newFixture(true)
	store.postsByOwner[2] = 4
	store.entriesByUser[2] = 7

	err := svc.Delete(context.Background(), shared.Principal{UserID: 1, Role: rbac.RoleAdmin}, 2)
	if err == nil {
		t.Fatalf("expected failure when the entry insert fails")
	}
	if _, ok := store.users[2]; !ok {
		t.Fatalf("user must survive a failed unit")
	}
	if store.postsByOwner[2] != 4 {
		t.Fatalf("posts must survive a failed unit")
	}
	if store.entriesByUser[2] != 7 {
		t.Fatalf("prior activity must survive a failed unit")
	}
	if len(store.entries) != 0 {
		t.Fatalf("no entry may be recorded for a failed unit")
	}
}

func TestDeleteAdminByAdminForbidden(t *testing.T) {
	svc, store := newFixture(false)
	all := make([]string, 0)
	for _, p := range rbac.AllPermissions() {
		all = append(all, string(p))
	}
	seedUser(store, 9, "admin2@test.local", rbac.RoleAdmin, roleIDAdmin, all)

	err := svc.Delete(context.Background(), shared.Principal{UserID: 1, Role: rbac.RoleAdmin}, 9)
	if shared.KindOf(err) != shared.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestUnknownActorUnauthorized(t *testing.T) {
	svc, _ := newFixture(false)
	_, err := svc.Get(context.Background(), shared.Principal{UserID: 404, Role: rbac.RoleAdmin}, 2)
	if shared.KindOf(err) != shared.KindUnauthorized {
		t.Fatalf("expected unauthorized for unknown actor, got %v", err)
	}
}

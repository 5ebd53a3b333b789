package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RoleSource resolves a role name to its raw permission list. Implemented by
// the roles repository; returns shared.NotFound for a dangling reference.
type RoleSource interface {
	PermissionsByRoleName(ctx context.Context, name string) ([]string, error)
}

// Catalog materializes "what can this principal do". Reads are served through
// an optional Redis cache; the catalog itself is deterministic and
// side-effect-free with respect to the store.
type Catalog struct {
	source RoleSource
	redis  *redis.Client
	ttl    time.Duration
}

// NewCatalog constructs a Catalog. client may be nil, in which case every
// lookup goes to the source directly.
func NewCatalog(source RoleSource, client *redis.Client, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{source: source, redis: client, ttl: ttl}
}

// PermissionsOf resolves the permission set for the given role name.
func (c *Catalog) PermissionsOf(ctx context.Context, roleName string) (Set, error) {
	if cached, ok := c.fromCache(ctx, roleName); ok {
		return cached, nil
	}
	perms, err := c.source.PermissionsByRoleName(ctx, roleName)
	if err != nil {
		return nil, err
	}
	c.toCache(ctx, roleName, perms)
	return NewSet(perms...), nil
}

// Invalidate drops the cached set for a role. Called after role updates and
// deletions so stale permissions never outlive the mutation.
func (c *Catalog) Invalidate(ctx context.Context, roleName string) {
	if c == nil || c.redis == nil {
		return
	}
	_ = c.redis.Del(ctx, cacheKey(roleName)).Err()
}

func (c *Catalog) fromCache(ctx context.Context, roleName string) (Set, bool) {
	if c.redis == nil {
		return nil, false
	}
	raw, err := c.redis.Get(ctx, cacheKey(roleName)).Bytes()
	if err != nil {
		return nil, false
	}
	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		return nil, false
	}
	return NewSet(perms...), true
}

func (c *Catalog) toCache(ctx context.Context, roleName string, perms []string) {
	if c.redis == nil {
		return
	}
	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKey(roleName), raw, c.ttl).Err()
}

func cacheKey(roleName string) string {
	return fmt.Sprintf("castellan:perms:%s", roleName)
}

package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/doctorconnect-api/internal/model"
)

// CachedResolver memoises lookups of another Resolver for ttl. Display
// names change rarely, so a short TTL keeps enrichment off the database on
// hot list endpoints.
type CachedResolver struct {
	next  Resolver
	cache *cache.Cache
}

func NewCachedResolver(next Resolver, ttl, cleanup time.Duration) *CachedResolver {
	return &CachedResolver{
		next:  next,
		cache: cache.New(ttl, cleanup),
	}
}

func (c *CachedResolver) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	if v, ok := c.cache.Get(id.String()); ok {
		return v.(*model.User), nil
	}

	u, err := c.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(id.String(), u)
	return u, nil
}

func (c *CachedResolver) FindAllByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.User, error) {
	result := make(map[uuid.UUID]*model.User, len(ids))
	var missing []uuid.UUID

	for _, id := range Unique(ids) {
		if v, ok := c.cache.Get(id.String()); ok {
			result[id] = v.(*model.User)
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return result, nil
	}

	found, err := c.next.FindAllByID(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, u := range found {
		c.cache.SetDefault(id.String(), u)
		result[id] = u
	}
	return result, nil
}

// Invalidate drops a cached entry.
func (c *CachedResolver) Invalidate(id uuid.UUID) {
	c.cache.Delete(id.String())
}

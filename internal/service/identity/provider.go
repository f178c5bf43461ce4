package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadflow-service/internal/domain/identity"
	xerrors "leadflow-service/internal/pkg/errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserLookup is the source of truth for users.
type UserLookup interface {
	FindByID(ctx context.Context, id int64) (*identity.User, error)
}

// CachedProvider resolves users through a short-lived redis cache. Role and
// activity changes become visible once the entry expires or is invalidated.
type CachedProvider struct {
	users  UserLookup
	cache  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewCachedProvider(users UserLookup, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{users: users, cache: cache, ttl: ttl, logger: logger}
}

// ResolveUser returns the user or an error of kind NotFound. Cache failures
// fall back to the store.
func (p *CachedProvider) ResolveUser(ctx context.Context, id int64) (*identity.User, error) {
	if u, ok := p.fromCache(ctx, id); ok {
		return u, nil
	}

	u, err := p.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, xerrors.ErrNotFound) {
			return nil, xerrors.NotFound("user not found")
		}
		return nil, fmt.Errorf("resolve user %d: %w", id, err)
	}

	p.store(ctx, u)
	return u, nil
}

// Invalidate drops the cached copy of a user.
func (p *CachedProvider) Invalidate(ctx context.Context, id int64) error {
	if p.cache == nil {
		return nil
	}
	return p.cache.Del(ctx, userKey(id)).Err()
}

func (p *CachedProvider) fromCache(ctx context.Context, id int64) (*identity.User, bool) {
	if p.cache == nil || p.ttl <= 0 {
		return nil, false
	}

	data, err := p.cache.Get(ctx, userKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.logger.Warn("identity cache read failed", zap.Int64("user_id", id), zap.Error(err))
		}
		return nil, false
	}

	var u identity.User
	if err := json.Unmarshal(data, &u); err != nil {
		p.logger.Warn("identity cache entry unreadable", zap.Int64("user_id", id), zap.Error(err))
		return nil, false
	}
	return &u, true
}

func (p *CachedProvider) store(ctx context.Context, u *identity.User) {
	if p.cache == nil || p.ttl <= 0 {
		return
	}

	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, userKey(u.ID), data, p.ttl).Err(); err != nil {
		p.logger.Warn("identity cache write failed", zap.Int64("user_id", u.ID), zap.Error(err))
	}
}

func userKey(id int64) string {
	return fmt.Sprintf("identity:user:%d", id)
}

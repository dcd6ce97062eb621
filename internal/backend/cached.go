package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"myduka-web/internal/core/cache"
	"myduka-web/internal/domain"
)

type ProfileSource interface {
	Profile(ctx context.Context, token string) (domain.User, error)
}

// CachedProfiles 在 redis 里按 token 摘要缓存 profile，会话恢复高峰时合并回源
type CachedProfiles struct {
	next  ProfileSource
	cache *cache.Cache
	ttl   time.Duration
	log   *zap.Logger
}

func NewCachedProfiles(next ProfileSource, c *cache.Cache, ttl time.Duration, l *zap.Logger) *CachedProfiles {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &CachedProfiles{next: next, cache: c, ttl: ttl, log: l}
}

func (p *CachedProfiles) Profile(ctx context.Context, token string) (domain.User, error) {
	u, err := cache.GetOrLoadJSON[domain.User](p.cache, ctx, profileKey(token), p.ttl,
		func(ctx context.Context) (*domain.User, error) {
			u, err := p.next.Profile(ctx, token)
			if err != nil {
				return nil, err
			}
			return &u, nil
		})
	if err != nil {
		return domain.User{}, err
	}
	if u == nil {
		return domain.User{}, ErrUnauthorized
	}
	return *u, nil
}

// Forget 登出时清掉缓存
func (p *CachedProfiles) Forget(ctx context.Context, token string) {
	if err := p.cache.Delete(ctx, profileKey(token)); err != nil {
		p.log.Warn("profile cache delete", zap.Error(err))
	}
}

func profileKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "myduka:profile:" + hex.EncodeToString(sum[:])
}

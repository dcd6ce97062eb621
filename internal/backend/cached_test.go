package backend_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"myduka-web/internal/backend"
	"myduka-web/internal/core/cache"
	"myduka-web/internal/domain"
	"myduka-web/internal/mocks"
)

// 指向不可达地址：缓存读写都失败，行为退化为直连后端
func unreachableCache(t *testing.T) *cache.Cache {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return cache.NewFromClient(rdb)
}

func TestCachedProfiles_FallsThroughWithoutRedis(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockProfileFetcher(ctrl)
	want := domain.User{ID: "u1", Role: domain.RoleAdmin, StoreID: "s1", IsActive: true}
	next.EXPECT().Profile(gomock.Any(), "tok").Return(want, nil).Times(2)

	p := backend.NewCachedProfiles(next, unreachableCache(t), time.Minute, nil)
	for i := 0; i < 2; i++ {
		got, err := p.Profile(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	p.Forget(context.Background(), "tok")
}

func TestCachedProfiles_PropagatesErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	next := mocks.NewMockProfileFetcher(ctrl)
	next.EXPECT().Profile(gomock.Any(), "expired").Return(domain.User{}, backend.ErrUnauthorized)

	p := backend.NewCachedProfiles(next, unreachableCache(t), time.Minute, nil)
	_, err := p.Profile(context.Background(), "expired")
	assert.True(t, errors.Is(err, backend.ErrUnauthorized))
}

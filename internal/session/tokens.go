package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenStore 保存每个客户端的后端 bearer token，跨页面加载/进程重启可恢复会话。
// Get 在不存在时返回 ("", nil)。
type TokenStore interface {
	Get(ctx context.Context, sid string) (string, error)
	Put(ctx context.Context, sid, token string, ttl time.Duration) error
	Delete(ctx context.Context, sid string) error
}

// 可选：支持批量清理过期记录的驱动
type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverGorm   = "gorm"
)

// NewTokenStore 按驱动名构造；redis/gorm 需要对应的连接
func NewTokenStore(driver string, rdb *redis.Client, db *gorm.DB) (TokenStore, error) {
	switch driver {
	case "", DriverMemory:
		return NewMemoryTokens(), nil
	case DriverRedis:
		if rdb == nil {
			return nil, errors.New("session: redis token store needs a redis client")
		}
		return NewRedisTokens(rdb, ""), nil
	case DriverGorm:
		if db == nil {
			return nil, errors.New("session: gorm token store needs a database")
		}
		return NewGormTokens(db), nil
	}
	return nil, fmt.Errorf("session: unknown token store driver %q", driver)
}

/* ---------- memory ---------- */

type memToken struct {
	token     string
	expiresAt time.Time
}

type MemoryTokens struct {
	mu  sync.Mutex
	m   map[string]memToken
	now func() time.Time
}

func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{m: make(map[string]memToken), now: time.Now}
}

func (s *MemoryTokens) Get(_ context.Context, sid string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.m[sid]
	if !ok {
		return "", nil
	}
	if !t.expiresAt.IsZero() && !s.now().Before(t.expiresAt) {
		delete(s.m, sid)
		return "", nil
	}
	return t.token, nil
}

func (s *MemoryTokens) Put(_ context.Context, sid, token string, ttl time.Duration) error {
	var exp time.Time
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.m[sid] = memToken{token: token, expiresAt: exp}
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokens) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	delete(s.m, sid)
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokens) PurgeExpired(_ context.Context) (int64, error) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for sid, t := range s.m {
		if !t.expiresAt.IsZero() && !now.Before(t.expiresAt) {
			delete(s.m, sid)
			n++
		}
	}
	return n, nil
}

/* ---------- redis ---------- */

type RedisTokens struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTokens(rdb *redis.Client, prefix string) *RedisTokens {
	if prefix == "" {
		prefix = "myduka:sess:"
	}
	return &RedisTokens{rdb: rdb, prefix: prefix}
}

func (s *RedisTokens) Get(ctx context.Context, sid string) (string, error) {
	v, err := s.rdb.Get(ctx, s.prefix+sid).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get token: %w", err)
	}
	return v, nil
}

// ttl<=0 表示不过期
func (s *RedisTokens) Put(ctx context.Context, sid, token string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.Set(ctx, s.prefix+sid, token, ttl).Err(); err != nil {
		return fmt.Errorf("redis put token: %w", err)
	}
	return nil
}

func (s *RedisTokens) Delete(ctx context.Context, sid string) error {
	if err := s.rdb.Del(ctx, s.prefix+sid).Err(); err != nil {
		return fmt.Errorf("redis delete token: %w", err)
	}
	return nil
}

/* ---------- gorm ---------- */

// SessionTokenModel 一行一个客户端
type SessionTokenModel struct {
	SID       string    `gorm:"column:sid;primaryKey;size:64"`
	Token     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (SessionTokenModel) TableName() string { return "session_tokens" }

// 没有过期时间的记录按 100 年处理，避免 NULL 比较
const noExpiry = 100 * 365 * 24 * time.Hour

type GormTokens struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormTokens(db *gorm.DB) *GormTokens { return &GormTokens{db: db, now: time.Now} }

func (s *GormTokens) Migrate() error { return s.db.AutoMigrate(&SessionTokenModel{}) }

func (s *GormTokens) Get(ctx context.Context, sid string) (string, error) {
	var m SessionTokenModel
	err := s.db.WithContext(ctx).
		Where("sid = ? AND expires_at > ?", sid, s.now()).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("db get token: %w", err)
	}
	return m.Token, nil
}

func (s *GormTokens) Put(ctx context.Context, sid, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = noExpiry
	}
	m := SessionTokenModel{SID: sid, Token: token, ExpiresAt: s.now().Add(ttl)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sid"}},
		DoUpdates: clause.AssignmentColumns([]string{"token", "expires_at", "updated_at"}),
	}).Create(&m).Error
	if err != nil {
		return fmt.Errorf("db put token: %w", err)
	}
	return nil
}

func (s *GormTokens) Delete(ctx context.Context, sid string) error {
	if err := s.db.WithContext(ctx).Where("sid = ?", sid).Delete(&SessionTokenModel{}).Error; err != nil {
		return fmt.Errorf("db delete token: %w", err)
	}
	return nil
}

func (s *GormTokens) PurgeExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&SessionTokenModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("db purge tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"myduka-web/internal/domain"
)

// ProfileFetcher 用已保存的 token 向后端换取当前用户
type ProfileFetcher interface {
	Profile(ctx context.Context, token string) (domain.User, error)
}

// 可选：带缓存的 ProfileFetcher 在登出时清缓存
type profileForgetter interface {
	Forget(ctx context.Context, token string)
}

// Listener 会话变更通知（websocket 推送等）
type Listener func(sid string, s Session)

type Options struct {
	RestoreTimeout time.Duration // 单次恢复上限
	TokenTTL       time.Duration // token 在 TokenStore 中的保存时长
	IdleTTL        time.Duration // 内存中客户端闲置多久被回收
}

type client struct {
	store    *Store
	lastSeen time.Time
	unsub    func()
}

// Registry sid -> Store，每个客户端恰好一份
type Registry struct {
	mu      sync.Mutex
	clients map[string]*client

	tokens   TokenStore
	profiles ProfileFetcher
	opts     Options
	log      *zap.Logger
	now      func() time.Time

	lmu       sync.RWMutex
	listeners []Listener
}

func NewRegistry(tokens TokenStore, profiles ProfileFetcher, opts Options, l *zap.Logger) *Registry {
	if opts.RestoreTimeout <= 0 {
		opts.RestoreTimeout = 5 * time.Second
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Registry{
		clients:  make(map[string]*client),
		tokens:   tokens,
		profiles: profiles,
		opts:     opts,
		log:      l,
		now:      time.Now,
	}
}

func (r *Registry) AddListener(l Listener) {
	r.lmu.Lock()
	r.listeners = append(r.listeners, l)
	r.lmu.Unlock()
}

// Create 新客户端：分配 sid，不做恢复
func (r *Registry) Create() (string, *Store) {
	sid := uuid.NewString()
	r.mu.Lock()
	c := r.attachLocked(sid)
	r.mu.Unlock()
	return sid, c.store
}

// Open 取已有客户端；内存里没有时新建并尝试用保存的 token 恢复会话。
// token 查询同步完成，profile 拉取在后台进行，期间会话处于 loading。
func (r *Registry) Open(ctx context.Context, sid string) *Store {
	r.mu.Lock()
	if c, ok := r.clients[sid]; ok {
		c.lastSeen = r.now()
		r.mu.Unlock()
		return c.store
	}
	c := r.attachLocked(sid)
	rctx, cancel := context.WithTimeout(context.Background(), r.opts.RestoreTimeout)
	rctx, ticket := c.store.BeginRestore(rctx)
	r.mu.Unlock()

	token, err := r.tokens.Get(ctx, sid)
	if err != nil || token == "" {
		cancel()
		if err != nil {
			r.log.Warn("session restore: token lookup failed", zap.String("sid", shortSID(sid)), zap.Error(err))
		}
		c.store.CompleteRestore(ticket, nil)
		return c.store
	}

	go r.restore(rctx, cancel, sid, c.store, ticket, token)
	return c.store
}

func (r *Registry) restore(ctx context.Context, cancel context.CancelFunc, sid string, st *Store, t Ticket, token string) {
	defer cancel()
	u, err := r.profiles.Profile(ctx, token)
	if err == nil {
		err = u.CanSignIn()
	}
	if err != nil {
		// 恢复失败按未登录处理，token 保留
		if st.CompleteRestore(t, nil) {
			r.log.Warn("session restore failed", zap.String("sid", shortSID(sid)), zap.Error(err))
		}
		return
	}
	if !st.CompleteRestore(t, &u) {
		r.log.Debug("session restore superseded", zap.String("sid", shortSID(sid)))
		return
	}
	r.log.Info("session restored",
		zap.String("sid", shortSID(sid)),
		zap.String("uid", u.ID),
		zap.Stringer("role", u.Role),
	)
}

// Login 保存 token 后写入会话
func (r *Registry) Login(ctx context.Context, sid, token string, u domain.User) error {
	if err := r.tokens.Put(ctx, sid, token, r.opts.TokenTTL); err != nil {
		return err
	}
	r.storeFor(sid).Login(u)
	return nil
}

// Logout 会话先清空，token 删除失败只返回错误
func (r *Registry) Logout(ctx context.Context, sid string) error {
	r.storeFor(sid).Logout()

	token, err := r.tokens.Get(ctx, sid)
	if err == nil && token != "" {
		if f, ok := r.profiles.(profileForgetter); ok {
			f.Forget(ctx, token)
		}
	}
	return r.tokens.Delete(ctx, sid)
}

// Token 当前客户端的后端 token；未登录返回 ""
func (r *Registry) Token(ctx context.Context, sid string) (string, error) {
	return r.tokens.Get(ctx, sid)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Sweep 回收闲置客户端（token 保留，下次访问会重新恢复）
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.opts.IdleTTL)
	var evicted []*client
	r.mu.Lock()
	for sid, c := range r.clients {
		if c.lastSeen.Before(cutoff) {
			delete(r.clients, sid)
			evicted = append(evicted, c)
		}
	}
	r.mu.Unlock()
	for _, c := range evicted {
		c.unsub()
		c.store.Close()
	}
	return len(evicted)
}

// Run 定时回收，直到 ctx 结束
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	tk := time.NewTicker(every)
	defer tk.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			if n := r.Sweep(); n > 0 {
				r.log.Debug("session sweep", zap.Int("evicted", n), zap.Int("live", r.Len()))
			}
			if p, ok := r.tokens.(expiredPurger); ok {
				if n, err := p.PurgeExpired(ctx); err != nil && !errors.Is(err, context.Canceled) {
					r.log.Warn("purge expired tokens", zap.Error(err))
				} else if n > 0 {
					r.log.Debug("purged expired tokens", zap.Int64("count", n))
				}
			}
		}
	}
}

func (r *Registry) storeFor(sid string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.clients[sid]
	if !ok {
		c = r.attachLocked(sid)
	}
	c.lastSeen = r.now()
	return c.store
}

func (r *Registry) attachLocked(sid string) *client {
	st := NewStore()
	c := &client{store: st, lastSeen: r.now()}
	c.unsub = st.Subscribe(func(s Session) { r.emit(sid, s) })
	r.clients[sid] = c
	return c
}

func (r *Registry) emit(sid string, s Session) {
	r.lmu.RLock()
	ls := append([]Listener(nil), r.listeners...)
	r.lmu.RUnlock()
	for _, l := range ls {
		l(sid, s)
	}
}

// 日志里只打 sid 前 8 位
func shortSID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}

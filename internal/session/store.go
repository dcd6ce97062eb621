// Package session 每个浏览器客户端一份会话；Login/Logout 是唯一写入口，其余组件只读快照。
package session

import (
	"context"
	"sync"

	"myduka-web/internal/domain"
)

// Session 只读快照
type Session struct {
	User      *domain.User `json:"user"`
	IsLoading bool         `json:"isLoading"`
}

func (s Session) Authenticated() bool { return s.User != nil }

// Ticket 标识一次会话恢复；过期的 ticket 结果会被丢弃
type Ticket struct{ gen uint64 }

type Store struct {
	mu      sync.RWMutex
	user    *domain.User
	loading bool
	gen     uint64
	cancel  context.CancelFunc

	subs    map[uint64]func(Session)
	nextSub uint64
}

func NewStore() *Store {
	return &Store{subs: make(map[uint64]func(Session))}
}

func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) Login(u domain.User) {
	s.mu.Lock()
	s.loginLocked(u)
	s.unlockAndNotify()
}

func (s *Store) Logout() {
	s.mu.Lock()
	s.logoutLocked()
	s.unlockAndNotify()
}

// BeginRestore 进入 loading，并接管恢复用的 ctx；之前未完成的恢复被取消
func (s *Store) BeginRestore(parent context.Context) (context.Context, Ticket) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.stopRestoreLocked()
	s.gen++
	s.cancel = cancel
	s.loading = true
	t := Ticket{gen: s.gen}
	s.unlockAndNotify()
	return ctx, t
}

// CompleteRestore 仅当 ticket 仍是最新时生效：u 为 nil 走 logout，否则走 login。
// 返回 false 表示期间发生过 login/logout/新的恢复，结果已丢弃。
func (s *Store) CompleteRestore(t Ticket, u *domain.User) bool {
	s.mu.Lock()
	if t.gen != s.gen {
		s.mu.Unlock()
		return false
	}
	if u != nil {
		s.loginLocked(*u)
	} else {
		s.logoutLocked()
	}
	s.unlockAndNotify()
	return true
}

// Close 放弃进行中的恢复（客户端被回收时调用）
func (s *Store) Close() {
	s.mu.Lock()
	s.stopRestoreLocked()
	s.gen++
	s.mu.Unlock()
}

// Subscribe 每次变更后回调一次最新快照；返回取消函数
func (s *Store) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) loginLocked(u domain.User) {
	s.stopRestoreLocked()
	s.gen++
	s.user = &u
	s.loading = false
}

func (s *Store) logoutLocked() {
	s.stopRestoreLocked()
	s.gen++
	s.user = nil
	s.loading = false
}

func (s *Store) stopRestoreLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Store) snapshotLocked() Session {
	out := Session{IsLoading: s.loading}
	if s.user != nil {
		u := *s.user
		out.User = &u
	}
	return out
}

// 回调在锁外执行
func (s *Store) unlockAndNotify() {
	snap := s.snapshotLocked()
	subs := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

package session

import "context"

type ctxKey struct{}

type bound struct {
	sid   string
	store *Store
}

func NewContext(ctx context.Context, sid string, st *Store) context.Context {
	return context.WithValue(ctx, ctxKey{}, bound{sid: sid, store: st})
}

// FromContext 未绑定时返回 ("", nil)
func FromContext(ctx context.Context) (string, *Store) {
	b, ok := ctx.Value(ctxKey{}).(bound)
	if !ok {
		return "", nil
	}
	return b.sid, b.store
}

// SnapshotFromContext 没有会话等同于未登录
func SnapshotFromContext(ctx context.Context) Session {
	if _, st := FromContext(ctx); st != nil {
		return st.Session()
	}
	return Session{}
}

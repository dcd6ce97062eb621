package domain

import "strings"

// User 由后端认证服务返回；StoreID/Avatar 可选
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	StoreID  string `json:"store_id,omitempty"`
	IsActive bool   `json:"is_active"`
	Avatar   string `json:"avatar,omitempty"`
}

func (u User) HasStore() bool { return strings.TrimSpace(u.StoreID) != "" }

// Validate 只有 merchant 可以不挂门店
func (u User) Validate() error {
	if !u.Role.Valid() {
		return ErrInvalidRole
	}
	if u.Role != RoleMerchant && !u.HasStore() {
		return ErrStoreRequired
	}
	return nil
}

// CanSignIn Validate + 账号启用
func (u User) CanSignIn() error {
	if err := u.Validate(); err != nil {
		return err
	}
	if !u.IsActive {
		return ErrInactiveUser
	}
	return nil
}

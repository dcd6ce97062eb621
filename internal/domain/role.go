package domain

import (
	"encoding/json"
	"strings"
)

// Role 封闭枚举；零值 RoleUnknown 表示后端给了枚举之外的值
type Role uint8

const (
	RoleUnknown Role = iota
	RoleMerchant
	RoleAdmin
	RoleClerk
	RoleCashier

	roleEnd
)

// NumRoles 有效角色个数（不含 RoleUnknown）
const NumRoles = int(roleEnd) - 1

var roleNames = [roleEnd]string{
	RoleUnknown:  "unknown",
	RoleMerchant: "merchant",
	RoleAdmin:    "admin",
	RoleClerk:    "clerk",
	RoleCashier:  "cashier",
}

// Roles 按枚举顺序返回全部有效角色
func Roles() []Role {
	out := make([]Role, 0, NumRoles)
	for r := RoleMerchant; r < roleEnd; r++ {
		out = append(out, r)
	}
	return out
}

func (r Role) Valid() bool { return r > RoleUnknown && r < roleEnd }

func (r Role) String() string {
	if !r.Valid() {
		return roleNames[RoleUnknown]
	}
	return roleNames[r]
}

// Home 角色首页 /dashboard/{role}
func (r Role) Home() string { return PathDashboard + "/" + r.String() }

func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r := RoleMerchant; r < roleEnd; r++ {
		if roleNames[r] == s {
			return r, nil
		}
	}
	return RoleUnknown, ErrInvalidRole
}

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText 宽松解析：未知值落到 RoleUnknown，由 Validate 拒绝
func (r *Role) UnmarshalText(b []byte) error {
	*r, _ = ParseRole(string(b))
	return nil
}

// RoleSet 角色位集；零值即“未声明”，等价于只要求登录
type RoleSet uint8

func (r Role) bit() RoleSet { return 1 << r }

func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		if r.Valid() {
			s |= r.bit()
		}
	}
	return s
}

// AllRoles 所有有效角色
var AllRoles = NewRoleSet(Roles()...)

func (s RoleSet) Has(r Role) bool { return r.Valid() && s&r.bit() != 0 }

func (s RoleSet) Empty() bool { return s&AllRoles == 0 }

func (s RoleSet) Roles() []Role {
	var out []Role
	for _, r := range Roles() {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s RoleSet) String() string {
	rs := s.Roles()
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = r.String()
	}
	return "{" + strings.Join(names, ",") + "}"
}

func (s RoleSet) MarshalJSON() ([]byte, error) {
	rs := s.Roles()
	if rs == nil {
		rs = []Role{}
	}
	return json.Marshal(rs)
}

func (s *RoleSet) UnmarshalJSON(b []byte) error {
	var rs []Role
	if err := json.Unmarshal(b, &rs); err != nil {
		return err
	}
	*s = NewRoleSet(rs...)
	return nil
}

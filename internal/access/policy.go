// Package access 角色访问策略：纯函数，不读会话、不做跳转。
package access

import "myduka-web/internal/domain"

// Evaluate 对 (user, required) 给出访问结论。
// 角色不匹配统一回到该角色首页 /dashboard/{role}；
// 角色不在枚举内时没有首页可去，给 not-found。
func Evaluate(user *domain.User, required domain.RoleSet) domain.Decision {
	if user == nil {
		return domain.LoginDecision()
	}
	if required.Empty() {
		return domain.AllowDecision()
	}
	if required.Has(user.Role) {
		return domain.AllowDecision()
	}
	if !user.Role.Valid() {
		return domain.NotFoundDecision()
	}
	return domain.RoleHomeDecision(user.Role)
}

// Permits 便捷判断
func Permits(user *domain.User, required domain.RoleSet) bool {
	return Evaluate(user, required).Allowed()
}

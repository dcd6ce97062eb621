// Package nav 静态导航清单及按角色过滤。
package nav

import (
	"slices"

	"myduka-web/internal/domain"
)

const DashboardEntry = "Dashboard"

var (
	merchant = domain.RoleMerchant
	admin    = domain.RoleAdmin
	clerk    = domain.RoleClerk
	cashier  = domain.RoleCashier
)

// 顺序即侧边栏顺序
var manifest = []domain.NavigationEntry{
	{Name: DashboardEntry, Path: domain.PathDashboard, RequiredRoles: domain.NewRoleSet(merchant, admin, cashier)},
	{Name: "Stores", Path: "/stores", RequiredRoles: domain.NewRoleSet(merchant)},
	{Name: "Admins", Path: "/admins", RequiredRoles: domain.NewRoleSet(merchant)},
	{Name: "Clerks", Path: "/clerks", RequiredRoles: domain.NewRoleSet(admin)},
	{Name: "Cashiers", Path: "/cashiers", RequiredRoles: domain.NewRoleSet(admin)},
	{Name: "Products", Path: "/products", RequiredRoles: domain.NewRoleSet(merchant, admin, clerk)},
	{Name: "Categories", Path: "/categories", RequiredRoles: domain.NewRoleSet(merchant, admin)},
	{Name: "Inventory", Path: "/inventory", RequiredRoles: domain.NewRoleSet(admin, clerk)},
	{Name: "Supply Requests", Path: "/supply-requests", RequiredRoles: domain.NewRoleSet(merchant, admin, clerk)},
	{Name: "Point of Sale", Path: "/pos", RequiredRoles: domain.NewRoleSet(cashier)},
	{Name: "Sales", Path: "/sales", RequiredRoles: domain.NewRoleSet(merchant, admin, cashier)},
	{Name: "Reports", Path: "/reports", RequiredRoles: domain.NewRoleSet(merchant, admin)},
	{Name: "Profile", Path: "/profile", RequiredRoles: domain.AllRoles},
}

// Manifest 返回副本，调用方可随意修改
func Manifest() []domain.NavigationEntry { return slices.Clone(manifest) }

// VisibleEntries 保持清单顺序；未登录返回空切片（非 nil，序列化为 []）
func VisibleEntries(user *domain.User, entries []domain.NavigationEntry) []domain.NavigationEntry {
	out := make([]domain.NavigationEntry, 0, len(entries))
	if user == nil {
		return out
	}
	for _, e := range entries {
		if !e.RequiredRoles.Has(user.Role) {
			continue
		}
		if e.Name == DashboardEntry {
			e.Path = user.Role.Home()
		}
		out = append(out, e)
	}
	return out
}

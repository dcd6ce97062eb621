// Package dashboard 按角色选择仪表盘变体。
package dashboard

import "myduka-web/internal/domain"

// 新增角色时这里编译失败，提醒同步 Select 的映射
var _ = [1]struct{}{}[domain.NumRoles-4]

type Widget struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type Variant struct {
	Name    string      `json:"name"`
	Role    domain.Role `json:"role"`
	Title   string      `json:"title"`
	Widgets []Widget    `json:"widgets"`
}

var (
	merchantDash = Variant{Name: "merchant", Role: domain.RoleMerchant, Title: "Merchant Dashboard", Widgets: []Widget{
		{"store_overview", "Store overview"},
		{"admin_management", "Admin management"},
		{"sales_by_store", "Sales by store"},
		{"payment_status", "Paid vs unpaid products"},
		{"top_products", "Top products"},
	}}
	adminDash = Variant{Name: "admin", Role: domain.RoleAdmin, Title: "Admin Dashboard", Widgets: []Widget{
		{"clerk_management", "Clerk management"},
		{"supply_requests", "Supply requests"},
		{"payment_status", "Supplier payment status"},
		{"stock_levels", "Stock levels"},
		{"store_sales", "Store sales"},
	}}
	clerkDash = Variant{Name: "clerk", Role: domain.RoleClerk, Title: "Clerk Dashboard", Widgets: []Widget{
		{"stock_entry", "Stock entry"},
		{"spoilage", "Spoilt items"},
		{"supply_requests", "My supply requests"},
		{"receipts", "Recent receipts"},
	}}
	cashierDash = Variant{Name: "cashier", Role: domain.RoleCashier, Title: "Cashier Dashboard", Widgets: []Widget{
		{"pos", "Point of sale"},
		{"today_sales", "Today's sales"},
		{"recent_transactions", "Recent transactions"},
	}}
)

// Select 未登录或角色未知时返回 RedirectNotFound
func Select(user *domain.User) (Variant, domain.Decision) {
	if user == nil {
		return Variant{}, domain.NotFoundDecision()
	}
	switch user.Role {
	case domain.RoleMerchant:
		return clone(merchantDash), domain.AllowDecision()
	case domain.RoleAdmin:
		return clone(adminDash), domain.AllowDecision()
	case domain.RoleClerk:
		return clone(clerkDash), domain.AllowDecision()
	case domain.RoleCashier:
		return clone(cashierDash), domain.AllowDecision()
	}
	return Variant{}, domain.NotFoundDecision()
}

func clone(v Variant) Variant {
	v.Widgets = append([]Widget(nil), v.Widgets...)
	return v
}

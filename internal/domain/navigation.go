package domain

// NavigationEntry 静态导航项，构建期定义，不落库
type NavigationEntry struct {
	Name          string  `json:"name"`
	Path          string  `json:"path"`
	RequiredRoles RoleSet `json:"required_roles"`
}

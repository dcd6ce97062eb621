package domain

const (
	PathLogin     = "/login"
	PathNotFound  = "/not-found"
	PathDashboard = "/dashboard"
)

type DecisionKind uint8

const (
	Allow DecisionKind = iota
	RedirectLogin
	RedirectRoleHome
	RedirectNotFound
)

func (k DecisionKind) String() string {
	switch k {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case RedirectRoleHome:
		return "redirect_role_home"
	case RedirectNotFound:
		return "redirect_not_found"
	}
	return "invalid"
}

// Decision 单次导航的访问结论；Target 仅在重定向时有值
type Decision struct {
	Kind   DecisionKind
	Target string
}

func (d Decision) Allowed() bool { return d.Kind == Allow }

func AllowDecision() Decision { return Decision{Kind: Allow} }

func LoginDecision() Decision { return Decision{Kind: RedirectLogin, Target: PathLogin} }

func NotFoundDecision() Decision { return Decision{Kind: RedirectNotFound, Target: PathNotFound} }

func RoleHomeDecision(r Role) Decision { return Decision{Kind: RedirectRoleHome, Target: r.Home()} }

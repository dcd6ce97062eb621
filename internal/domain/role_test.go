package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"myduka-web/internal/domain"
)

func TestParseRole(t *testing.T) {
	cases := map[string]domain.Role{
		"merchant": domain.RoleMerchant,
		"Admin":    domain.RoleAdmin,
		" clerk ":  domain.RoleClerk,
		"CASHIER":  domain.RoleCashier,
	}
	for in, want := range cases {
		got, err := domain.ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := domain.ParseRole("owner")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
	_, err = domain.ParseRole("unknown")
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestRoles_Closed(t *testing.T) {
	rs := domain.Roles()
	assert.Len(t, rs, domain.NumRoles)
	for _, r := range rs {
		assert.True(t, r.Valid())
		assert.Equal(t, "/dashboard/"+r.String(), r.Home())
	}
	assert.False(t, domain.RoleUnknown.Valid())
}

func TestRoleSet(t *testing.T) {
	s := domain.NewRoleSet(domain.RoleAdmin, domain.RoleCashier, domain.RoleUnknown)
	assert.True(t, s.Has(domain.RoleAdmin))
	assert.True(t, s.Has(domain.RoleCashier))
	assert.False(t, s.Has(domain.RoleClerk))
	assert.False(t, s.Has(domain.RoleUnknown))
	assert.Equal(t, []domain.Role{domain.RoleAdmin, domain.RoleCashier}, s.Roles())
	assert.Equal(t, "{admin,cashier}", s.String())

	assert.True(t, domain.RoleSet(0).Empty())
	assert.True(t, domain.NewRoleSet(domain.RoleUnknown).Empty())
}

func TestRoleSet_JSON(t *testing.T) {
	b, err := json.Marshal(domain.NewRoleSet(domain.RoleMerchant, domain.RoleClerk))
	require.NoError(t, err)
	assert.JSONEq(t, `["merchant","clerk"]`, string(b))

	var s domain.RoleSet
	require.NoError(t, json.Unmarshal([]byte(`["cashier","nobody"]`), &s))
	assert.Equal(t, domain.NewRoleSet(domain.RoleCashier), s)

	b, err = json.Marshal(domain.RoleSet(0))
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(b))
}

func TestUser_JSONUnknownRole(t *testing.T) {
	var u domain.User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"1","role":"superuser","is_active":true}`), &u))
	assert.Equal(t, domain.RoleUnknown, u.Role)
	assert.ErrorIs(t, u.Validate(), domain.ErrInvalidRole)
}

func TestUser_Validate(t *testing.T) {
	tests := []struct {
		name string
		user domain.User
		err  error
	}{
		{"merchant without store", domain.User{Role: domain.RoleMerchant, IsActive: true}, nil},
		{"merchant with store", domain.User{Role: domain.RoleMerchant, StoreID: "1", IsActive: true}, nil},
		{"admin with store", domain.User{Role: domain.RoleAdmin, StoreID: "1", IsActive: true}, nil},
		{"admin without store", domain.User{Role: domain.RoleAdmin, IsActive: true}, domain.ErrStoreRequired},
		{"clerk blank store", domain.User{Role: domain.RoleClerk, StoreID: "  ", IsActive: true}, domain.ErrStoreRequired},
		{"cashier without store", domain.User{Role: domain.RoleCashier, IsActive: true}, domain.ErrStoreRequired},
		{"unknown role", domain.User{StoreID: "1", IsActive: true}, domain.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.user.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestUser_CanSignIn(t *testing.T) {
	u := domain.User{Role: domain.RoleMerchant}
	assert.ErrorIs(t, u.CanSignIn(), domain.ErrInactiveUser)
	u.IsActive = true
	assert.NoError(t, u.CanSignIn())
}

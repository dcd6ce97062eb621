package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeMySQLDSN(t *testing.T) {
	cases := []struct {
		name, in, user, pass, want string
	}{
		{"driver dsn untouched", "u:p@tcp(db:3306)/duka?parseTime=true", "", "", "u:p@tcp(db:3306)/duka?parseTime=true"},
		{"url", "mysql://u:p@db:3306/duka", "", "", "u:p@tcp(db:3306)/duka?charset=utf8mb4&parseTime=true"},
		{"jdbc with overrides", "jdbc:mysql://db:3306/duka?useSSL=false&characterEncoding=utf8", "root", "s3", "root:s3@tcp(db:3306)/duka?charset=utf8&parseTime=true&tls=false"},
		{"query credentials", "mysql://db/duka?user=a&password=b&serverTimezone=UTC", "", "", "a:b@tcp(db)/duka?charset=utf8mb4&loc=UTC&parseTime=true"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, normalizeMySQLDSN(tc.in, tc.user, tc.pass))
		})
	}
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "root:****@tcp(db:3306)/duka", maskDSN("root:s3cret@tcp(db:3306)/duka"))
	assert.Equal(t, "tcp(db)/duka", maskDSN("tcp(db)/duka"))
}

func TestNewGormUnsupported(t *testing.T) {
	_, err := NewGorm(Opts{Driver: "sqlite"})
	assert.True(t, errors.Is(err, ErrUnsupportedDriver))
}

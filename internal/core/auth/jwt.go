// Package auth 签发与校验会话 cookie 里的 JWT。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims cookie 只携带会话 id，用户信息留在服务端 Store
type Claims struct {
	SID string `json:"sid"`
	jwt.RegisteredClaims
}

type JWTer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

func (j *JWTer) Issue(sid string) (string, error) {
	now := time.Now()
	claims := Claims{
		SID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   j.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if j.TTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(j.TTL))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.Secret)
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg %v", token.Header["alg"])
		}
		return j.Secret, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithLeeway(60*time.Second))
	if err != nil {
		return nil, err
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid || c.SID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

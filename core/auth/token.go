// Package auth issues and verifies the signed tokens that carry a User's identity between requests.
package auth

import (
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	errRefreshExpired = "Refresh has expired"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64     `json:"oriat,omitempty"`
	Username     string    `json:"username"`
	Role         user.Role `json:"userTypeID"`
	IsAdmin      bool      `json:"isAdmin"`
}

func (c Claims) IsTeacher() bool { return c.Role == user.RoleTeacher }
func (c Claims) IsStudent() bool { return c.Role == user.RoleStudent }

// TokenManager signs tokens with the configured secret key using HS256.
type TokenManager struct {
	key             []byte
	issuer          string
	expiration      time.Duration
	refreshDuration time.Duration
	method          jwt.SigningMethod
}

func NewTokenManager(conf *core.Config) *TokenManager {
	return &TokenManager{
		key:             []byte(conf.SecretKey),
		issuer:          conf.AppName,
		expiration:      conf.Server.JWTExpirationDelta,
		refreshDuration: conf.Server.JWTRefreshExpirationDelta,
		method:          jwt.SigningMethodHS256,
	}
}

// UserClaims returns the claims of usr. origIat keeps the original issue time on refresh.
func (m *TokenManager) UserClaims(usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	role := usr.Role
	if role == 0 {
		role = user.RoleUnassigned
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    m.issuer,
			Subject:   strconv.Itoa(usr.ID),
			ExpiresAt: now.Add(m.expiration).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Role:         role,
		IsAdmin:      usr.IsAdmin,
	}
}

// Issue generates a signed token string representing the user.
func (m *TokenManager) Issue(usr user.User) (string, error) {
	return m.Sign(m.UserClaims(usr))
}

// Sign generates a signed token string representing the claims.
func (m *TokenManager) Sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(m.method, claims)
	ss, err := token.SignedString(m.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify returns the claims of a token when its signature and expiry are valid.
func (m *TokenManager) Verify(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, errors.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.key, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Refresh reissues a token for the user of claims, keeping the original issue time.
func (m *TokenManager) Refresh(claims Claims, usr user.User) (string, error) {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(m.refreshDuration)
	if time.Now().After(expTime) {
		return "", core.NewUnauthorizedError(errRefreshExpired)
	}
	return m.Sign(m.UserClaims(usr, claims.OrigIssuedAt))
}

package auth

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
)

func TestTokenManager_IssueVerify(t *testing.T) {
	conf := core.NewTestConfig()
	mgr := NewTokenManager(conf)
	usr := user.User{ID: 3, Username: "u3", Role: user.RoleTeacher}

	token, err := mgr.Issue(usr)
	require.NoError(t, err)

	claims, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u3", claims.Username)
	assert.Equal(t, user.RoleTeacher, claims.Role)
	assert.False(t, claims.IsAdmin)
	assert.True(t, claims.IsTeacher())
	assert.Equal(t, "3", claims.Subject)
	assert.Equal(t, conf.AppName, claims.Issuer)
}

func TestTokenManager_defaultRole(t *testing.T) {
	mgr := NewTokenManager(core.NewTestConfig())
	claims := mgr.UserClaims(user.User{Username: "new"})
	assert.Equal(t, user.RoleUnassigned, claims.Role)
}

func TestTokenManager_Verify(t *testing.T) {
	conf := core.NewTestConfig()
	mgr := NewTokenManager(conf)
	usr := user.User{ID: 1, Username: "a1", IsAdmin: true}

	otherConf := core.NewTestConfig()
	otherConf.SecretKey = "another-secret"
	forged, err := NewTokenManager(otherConf).Issue(usr)
	require.NoError(t, err)

	expiredClaims := mgr.UserClaims(usr)
	expiredClaims.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expired, err := mgr.Sign(expiredClaims)
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, mgr.UserClaims(usr)).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.token"},
		{name: "wrong key", token: forged},
		{name: "expired", token: expired},
		{name: "alg none", token: none},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := mgr.Verify(tt.token)
			assert.Equal(t, ErrInvalidToken, err)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenManager_Refresh(t *testing.T) {
	conf := core.NewTestConfig()
	mgr := NewTokenManager(conf)
	usr := user.User{ID: 5, Username: "u5", Role: user.RoleStudent}

	claims := mgr.UserClaims(usr)
	token, err := mgr.Refresh(*claims, usr)
	require.NoError(t, err)
	refreshed, err := mgr.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, claims.OrigIssuedAt, refreshed.OrigIssuedAt)

	old := mgr.UserClaims(usr, time.Now().Add(-conf.Server.JWTRefreshExpirationDelta-time.Minute).Unix())
	_, err = mgr.Refresh(*old, usr)
	assert.True(t, core.IsUnauthorized(err))
}

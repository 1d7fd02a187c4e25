package database

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core"
)

func TestURL(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Database.Host = "db"
	conf.Database.Port = "5432"
	conf.Database.User = "app"
	conf.Database.Password = "s3cr3t"
	conf.Database.AdminUser = "postgres"
	conf.Database.AdminPassword = "root"

	u, err := url.Parse(URL("homeschool", false, conf))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.Scheme)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/homeschool", u.Path)
	assert.Equal(t, "app", u.User.Username())
	assert.Equal(t, "require", u.Query().Get("sslmode"))
	assert.Equal(t, "utc", u.Query().Get("timezone"))

	conf.Database.DisableTLS = true
	u, err = url.Parse(URL("postgres", true, conf))
	require.NoError(t, err)
	assert.Equal(t, "postgres", u.User.Username())
	pwd, _ := u.User.Password()
	assert.Equal(t, "root", pwd)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
}

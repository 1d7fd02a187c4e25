package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/internal/testutil"
)

func setup(t *testing.T) (*commandLine, user.Repository) {
	env := testutil.NewEnv()

	// start CLI
	return &commandLine{
		usrSvc: env.Users,
		openDB: func() (*sql.DB, error) { return nil, nil },
	}, env.Store.Users
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		assert.ErrorContains(t, err, tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	t.Run("no database", func(t *testing.T) {
		cli.openDB = func() (*sql.DB, error) { return nil, fmt.Errorf("migrate: the memory engine has no migrations") }
		assert.EqualError(t, cli.run([]string{"admin", "migrate", "up"}), "migrate: the memory engine has no migrations")
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, usrRepo := setup(t)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "-lol"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"}, wantErr: errHelp},
		{
			name: "invalid data", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd"},
			extra: extra{pwd: testutil.Password}, wantErrStr: "failed on the 'required' tag",
		},
		{
			name: "admin", args: []string{"adduser", "-username", "Boss", "-email", "boss@test.cd", "-firstname", "The", "-lastname", "Boss", "-admin"},
			extra: extra{pwd: testutil.Password},
		},
		{
			name: "duplicate", args: []string{"adduser", "-username", "boss", "-email", "boss@test.cd", "-firstname", "The", "-lastname", "Boss"},
			extra: extra{pwd: testutil.Password}, wantErrStr: "Duplicate username: boss",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := usrRepo.GetUserByUsername(context.Background(), "boss")
	require.NoError(t, err)
	assert.True(t, usr.IsAdmin)
	assert.NoError(t, usr.CheckPassword(testutil.Password))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, usrRepo := setup(t)

	_, err := cli.usrSvc.Register(context.Background(), user.NewUser{
		Username: "awe", Password: testutil.Password, FirstName: "User", LastName: "Awe", Email: "awe@test.cd",
	})
	require.NoError(t, err)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "N3w-Passw0rd!"}, wantErrStr: "No user: lol"},
		{
			name: "password too short", args: []string{"resetpassword", "-username", "awe"},
			extra: extra{pwd: "lol"}, wantErrStr: "failed on the 'pwdminlen' tag",
		},
		{name: "reset with username", args: []string{"resetpassword", "-username", "AWE"}, extra: extra{pwd: "N3w-Passw0rd!"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	usr, err := usrRepo.GetUserByUsername(context.Background(), "awe")
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3w-Passw0rd!"))
}

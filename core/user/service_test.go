package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/internal/testutil"
)

func strPtr(s string) *string { return &s }

func TestService_Register(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()

	usr, err := env.Users.Register(ctx, user.NewUser{
		Username:  " Bob_1 ",
		Password:  testutil.Password,
		FirstName: " Bob ",
		LastName:  "Builder",
		Email:     "BOB@test.cd",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob_1", usr.Username)
	assert.Equal(t, "Bob", usr.FirstName)
	assert.Equal(t, "bob@test.cd", usr.Email)
	assert.Equal(t, user.RoleUnassigned, usr.Role)
	assert.False(t, usr.IsAdmin)
	assert.False(t, usr.JoinAt.IsZero())
	assert.False(t, usr.LastLoginAt.Valid)
	assert.NoError(t, usr.CheckPassword(testutil.Password))

	if msgs := env.Mail.SentMessages(); assert.Len(t, msgs, 1) {
		assert.Equal(t, "Welcome!", msgs[0].Subject)
		assert.Contains(t, msgs[0].TextContent, "Bob")
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := env.Users.Register(ctx, user.NewUser{
			Username: "BOB_1", Password: testutil.Password, FirstName: "B", LastName: "B", Email: "b@test.cd",
		})
		assert.True(t, core.IsConflict(err))
		assert.EqualError(t, err, "Duplicate username: bob_1")
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := env.Users.Register(ctx, user.NewUser{Username: "no spaces allowed", Password: "pwd", Email: "nope"})
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		fields := make([]string, 0, len(vErrs))
		for _, fe := range vErrs {
			fields = append(fields, fe.Field())
		}
		assert.Equal(t, []string{"username", "firstName", "lastName", "email", "password"}, fields)
	})
}

func TestService_Authenticate(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	env.CreateUser(t, "bob")

	usr, err := env.Users.Authenticate(ctx, " BOB ", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, "bob", usr.Username)

	_, err = env.Users.Authenticate(ctx, "bob", "wrong")
	assert.True(t, core.IsUnauthorized(err))
	assert.EqualError(t, err, "Invalid username/password")

	_, err = env.Users.Authenticate(ctx, "alice", testutil.Password)
	assert.EqualError(t, err, "Invalid username/password")
}

func TestService_RecordLogin(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	env.CreateUser(t, "bob")

	usr, err := env.Users.RecordLogin(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, usr.LastLoginAt.Valid)

	_, err = env.Users.RecordLogin(ctx, "alice")
	assert.EqualError(t, err, "No user: alice")
}

func TestService_Get(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	bob := env.CreateUser(t, "bob")

	usr, err := env.Users.Get(ctx, "Bob")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, usr.ID)

	usr, err = env.Users.GetByID(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob", usr.Username)

	_, err = env.Users.Get(ctx, "alice")
	assert.True(t, core.IsNotFound(err))
	assert.EqualError(t, err, "No user: alice")

	_, err = env.Users.GetByID(ctx, 999)
	assert.EqualError(t, err, "No user with id: 999")
}

func TestService_Update(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	env.CreateUser(t, "bob")

	usr, err := env.Users.Update(ctx, "bob", user.UpdateUser{
		FirstName: strPtr(" Robert "),
		AvatarURL: strPtr("https://example.com/bob.png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Robert", usr.FirstName)
	assert.Equal(t, "Last", usr.LastName)
	assert.Equal(t, "https://example.com/bob.png", usr.AvatarURL.String)

	usr, err = env.Users.Update(ctx, "bob", user.UpdateUser{AvatarURL: strPtr("")})
	require.NoError(t, err)
	assert.False(t, usr.AvatarURL.Valid)

	_, err = env.Users.Update(ctx, "bob", user.UpdateUser{})
	assert.True(t, core.IsValidation(err))
	assert.EqualError(t, err, "No data")

	_, err = env.Users.Update(ctx, "alice", user.UpdateUser{FirstName: strPtr("Alice")})
	assert.EqualError(t, err, "No user: alice")

	require.NoError(t, env.Users.ResetPassword(ctx, "bob", "N3w-Passw0rd!"))
	_, err = env.Users.Authenticate(ctx, "bob", "N3w-Passw0rd!")
	assert.NoError(t, err)
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewEnv()
	ctx := context.Background()
	tchr := env.CreateTeacher(t, "teacher1")
	env.CreateStudent(t, "student1", tchr.TeacherID)

	err := env.Users.Delete(ctx, "teacher1")
	assert.True(t, core.IsConflict(err))
	assert.EqualError(t, err, "Cannot delete teacher1: teacher still has students")

	// deleting a student user removes its student row
	require.NoError(t, env.Users.Delete(ctx, "student1"))
	_, err = env.Students.Get(ctx, "student1")
	assert.EqualError(t, err, "No student: student1")

	// now the teacher can go, with its teacher row
	require.NoError(t, env.Users.Delete(ctx, "teacher1"))
	_, err = env.Teachers.Get(ctx, "teacher1")
	assert.EqualError(t, err, "No teacher: teacher1")

	assert.EqualError(t, env.Users.Delete(ctx, "teacher1"), "No user: teacher1")
}

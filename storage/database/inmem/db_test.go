package inmemdb

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/user"
)

func newTestUser(username string) user.User {
	return user.User{Username: username, Email: username + "@test.cd", Role: user.RoleUnassigned}
}

func TestDB_WithinTx(t *testing.T) {
	ctx := context.Background()
	errBoom := errors.New("boom")

	t.Run("commit", func(t *testing.T) {
		db := NewDB()
		users := NewUserRepository(db)
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			_, err := users.CreateUser(ctx, newTestUser("bob"))
			return err
		})
		require.NoError(t, err)
		_, err = users.GetUserByUsername(ctx, "bob")
		assert.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		db := NewDB()
		users := NewUserRepository(db)
		alice, err := users.CreateUser(ctx, newTestUser("alice"))
		require.NoError(t, err)

		err = db.WithinTx(ctx, func(ctx context.Context) error {
			if _, err := users.CreateUser(ctx, newTestUser("bob")); err != nil {
				return err
			}
			if err := users.SetUserRole(ctx, alice.ID, user.RoleTeacher); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		_, err = users.GetUserByUsername(ctx, "bob")
		assert.Equal(t, user.ErrNotFound, err)
		got, err := users.GetUserByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleUnassigned, got.Role)

		// the primary key counter is restored too
		carol, err := users.CreateUser(ctx, newTestUser("carol"))
		require.NoError(t, err)
		assert.Equal(t, alice.ID+1, carol.ID)
	})

	t.Run("rollback on panic", func(t *testing.T) {
		db := NewDB()
		users := NewUserRepository(db)
		assert.PanicsWithValue(t, "boom", func() {
			_ = db.WithinTx(ctx, func(ctx context.Context) error {
				if _, err := users.CreateUser(ctx, newTestUser("bob")); err != nil {
					return err
				}
				panic("boom")
			})
		})
		_, err := users.GetUserByUsername(ctx, "bob")
		assert.Equal(t, user.ErrNotFound, err)

		// the store is usable afterwards
		_, err = users.CreateUser(ctx, newTestUser("bob"))
		assert.NoError(t, err)
	})

	t.Run("nested transactions roll back together", func(t *testing.T) {
		db := NewDB()
		users := NewUserRepository(db)
		err := db.WithinTx(ctx, func(ctx context.Context) error {
			err := db.WithinTx(ctx, func(ctx context.Context) error {
				_, err := users.CreateUser(ctx, newTestUser("bob"))
				return err
			})
			require.NoError(t, err)
			return errBoom
		})
		assert.Equal(t, errBoom, err)
		_, err = users.GetUserByUsername(ctx, "bob")
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("rollback restores deleted rows across tables", func(t *testing.T) {
		db := NewDB()
		users := NewUserRepository(db)
		teachers := NewTeacherRepository(db)
		students := NewStudentRepository(db)

		tchr, err := users.CreateUser(ctx, newTestUser("teacher1"))
		require.NoError(t, err)
		teacherID, err := teachers.CreateTeacher(ctx, tchr.ID)
		require.NoError(t, err)
		stu, err := users.CreateUser(ctx, newTestUser("student1"))
		require.NoError(t, err)
		studentID, err := students.CreateStudent(ctx, stu.ID, teacherID, "5")
		require.NoError(t, err)

		err = db.WithinTx(ctx, func(ctx context.Context) error {
			if err := users.DeleteUser(ctx, "student1"); err != nil {
				return err
			}
			return errBoom
		})
		assert.Equal(t, errBoom, err)

		_, err = users.GetUserByUsername(ctx, "student1")
		assert.NoError(t, err)
		s, err := students.GetStudentByID(ctx, studentID)
		require.NoError(t, err)
		assert.Equal(t, teacherID, s.TeacherID)

		_, err = students.GetStudentByUsername(ctx, "nobody")
		assert.Equal(t, student.ErrNotFound, err)
	})
}

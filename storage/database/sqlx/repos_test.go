package sqlxrepos

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
	"github.com/trezcool/homeschool/core/user"
)

var (
	userCols = []string{
		"id", "username", "password", "first_name", "last_name", "email",
		"avatar_url", "user_type_id", "is_admin", "join_at", "last_login_at",
	}
	studentCols = []string{
		"student_id", "user_id", "teacher_id", "grade", "username", "first_name", "last_name", "email", "user_type_id",
	}
	studentAssignmentCols = []string{
		"id", "assignment_id", "student_id", "date_assigned", "date_due",
		"date_submitted", "date_approved", "is_submitted", "is_approved",
	}
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func TestTransactor(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users SET user_type_id = \$1 WHERE id = \$2`).
			WithArgs(2, 7).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
			return repo.SetUserRole(ctx, 7, user.RoleTeacher)
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectBegin()
		mock.ExpectExec(`UPDATE users SET user_type_id`).
			WithArgs(2, 7).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		err := NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
			return repo.SetUserRole(ctx, 7, user.RoleTeacher)
		})
		assert.Equal(t, user.ErrNotFound, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back and rethrows panics", func(t *testing.T) {
		db, mock := newMockDB(t)

		mock.ExpectBegin()
		mock.ExpectRollback()

		assert.PanicsWithValue(t, "boom", func() {
			_ = NewTransactor(db).WithinTx(ctx, func(ctx context.Context) error {
				panic("boom")
			})
		})
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("nested calls join the transaction", func(t *testing.T) {
		db, mock := newMockDB(t)
		tx := NewTransactor(db)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := tx.WithinTx(ctx, func(ctx context.Context) error {
			return tx.WithinTx(ctx, func(ctx context.Context) error { return nil })
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	joinAt := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("CreateUser", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`INSERT INTO users \(username, password, .*\) VALUES \(\$1, .*\$9\) RETURNING id, username`).
			WithArgs("bob", "hash", "Bob", "Builder", "bob@test.com", sqlmock.AnyArg(), 1, false, joinAt).
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(1, "bob", "hash", "Bob", "Builder", "bob@test.com", nil, 1, false, joinAt, nil))

		usr, err := repo.CreateUser(ctx, user.User{
			Username:     "bob",
			PasswordHash: []byte("hash"),
			FirstName:    "Bob",
			LastName:     "Builder",
			Email:        "bob@test.com",
			Role:         user.RoleUnassigned,
			JoinAt:       joinAt,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, usr.ID)
		assert.Equal(t, []byte("hash"), usr.PasswordHash)
		assert.Equal(t, user.RoleUnassigned, usr.Role)
		assert.False(t, usr.AvatarURL.Valid)
		assert.False(t, usr.LastLoginAt.Valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("CreateUser duplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`INSERT INTO users`).WillReturnError(&pq.Error{Code: uniqueViolation})

		_, err := repo.CreateUser(ctx, user.User{Username: "bob"})
		assert.Equal(t, user.ErrUsernameExists, err)
	})

	t.Run("GetUserByUsername", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`SELECT id, username, .* FROM users WHERE lower\(username\) = lower\(\$1\)`).
			WithArgs("Bob").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(1, "bob", "hash", "Bob", "Builder", "bob@test.com", "http://img", 2, true, joinAt, joinAt))

		usr, err := repo.GetUserByUsername(ctx, "Bob")
		require.NoError(t, err)
		assert.Equal(t, "bob", usr.Username)
		assert.Equal(t, user.RoleTeacher, usr.Role)
		assert.True(t, usr.IsAdmin)
		assert.Equal(t, "http://img", usr.AvatarURL.String)
		assert.Equal(t, joinAt, usr.LastLoginAt.Time)
	})

	t.Run("GetUserByID not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`FROM users WHERE id = \$1`).WithArgs(9).WillReturnError(sql.ErrNoRows)

		_, err := repo.GetUserByID(ctx, 9)
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("UpdateUser builds a partial update", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`UPDATE users SET "first_name"=\$1, "email"=\$2 WHERE lower\(username\) = lower\(\$3\) RETURNING id`).
			WithArgs("Robert", "rob@test.com", "bob").
			WillReturnRows(sqlmock.NewRows(userCols).
				AddRow(1, "bob", "hash", "Robert", "Builder", "rob@test.com", nil, 1, false, joinAt, nil))

		var data core.Fields
		data.Set("firstName", "Robert")
		data.Set("email", "rob@test.com")
		usr, err := repo.UpdateUser(ctx, "bob", data)
		require.NoError(t, err)
		assert.Equal(t, "Robert", usr.FirstName)
		assert.Equal(t, "rob@test.com", usr.Email)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateUser without data", func(t *testing.T) {
		db, _ := newMockDB(t)
		repo := NewUserRepository(db)

		_, err := repo.UpdateUser(ctx, "bob", nil)
		assert.True(t, core.IsValidation(err))
	})

	t.Run("DeleteUser still referenced", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`DELETE FROM users WHERE lower\(username\) = lower\(\$1\)`).
			WithArgs("bob").
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		assert.Equal(t, user.ErrInUse, repo.DeleteUser(ctx, "bob"))
	})

	t.Run("DeleteUser not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectExec(`DELETE FROM users`).WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.Equal(t, user.ErrNotFound, repo.DeleteUser(ctx, "ghost"))
	})

	t.Run("unexpected errors are wrapped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewUserRepository(db)

		mock.ExpectQuery(`FROM users ORDER BY id`).WillReturnError(errors.New("db down"))

		_, err := repo.QueryAllUsers(ctx)
		assert.EqualError(t, err, "selecting users: db down")
	})
}

func TestTeacherRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateTeacher", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTeacherRepository(db)

		mock.ExpectQuery(`INSERT INTO teachers \(user_id\) VALUES \(\$1\) RETURNING id`).
			WithArgs(4).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

		id, err := repo.CreateTeacher(ctx, 4)
		require.NoError(t, err)
		assert.Equal(t, 2, id)
	})

	t.Run("CreateTeacher duplicate", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTeacherRepository(db)

		mock.ExpectQuery(`INSERT INTO teachers`).WillReturnError(&pq.Error{Code: uniqueViolation})

		_, err := repo.CreateTeacher(ctx, 4)
		assert.Equal(t, teacher.ErrExists, err)
	})

	t.Run("GetTeacherByUsername", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTeacherRepository(db)

		mock.ExpectQuery(`FROM teachers AS t\s+JOIN users AS u ON u.id = t.user_id WHERE lower\(u.username\) = lower\(\$1\)`).
			WithArgs("jane").
			WillReturnRows(sqlmock.NewRows([]string{
				"teacher_id", "user_id", "username", "first_name", "last_name", "email", "user_type_id",
			}).AddRow(2, 4, "jane", "Jane", "Doe", "jane@test.com", 2))

		tch, err := repo.GetTeacherByUsername(ctx, "jane")
		require.NoError(t, err)
		assert.Equal(t, teacher.Teacher{
			TeacherID: 2,
			UserID:    4,
			Username:  "jane",
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@test.com",
			Role:      user.RoleTeacher,
		}, tch)
	})

	t.Run("DeleteTeacher with students", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewTeacherRepository(db)

		mock.ExpectExec(`DELETE FROM teachers WHERE id = \$1`).
			WithArgs(2).
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		assert.Equal(t, teacher.ErrHasStudents, repo.DeleteTeacher(ctx, 2))
	})
}

func TestStudentRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateStudent unknown teacher", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentRepository(db)

		mock.ExpectQuery(`INSERT INTO students \(user_id, teacher_id, grade\) VALUES \(\$1, \$2, \$3\) RETURNING id`).
			WithArgs(5, 99, "3").
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		_, err := repo.CreateStudent(ctx, 5, 99, "3")
		assert.Equal(t, teacher.ErrNotFound, err)
	})

	t.Run("QueryStudents scoped to a teacher", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentRepository(db)

		mock.ExpectQuery(`FROM students AS s\s+JOIN users AS u ON u.id = s.user_id WHERE s.teacher_id = \$1 ORDER BY s.grade, s.id`).
			WithArgs(2).
			WillReturnRows(sqlmock.NewRows(studentCols).
				AddRow(1, 5, 2, "3", "kid", "Kid", "Doe", "kid@test.com", 3))

		students, err := repo.QueryStudents(ctx, student.Scope{TeacherID: 2})
		require.NoError(t, err)
		require.Len(t, students, 1)
		assert.Equal(t, "kid", students[0].Username)
		assert.Equal(t, 2, students[0].TeacherID)
	})

	t.Run("QueryStudents unscoped", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentRepository(db)

		mock.ExpectQuery(`JOIN users AS u ON u.id = s.user_id ORDER BY s.grade, s.id`).
			WillReturnRows(sqlmock.NewRows(studentCols))

		students, err := repo.QueryStudents(ctx, student.Scope{})
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("UpdateStudent", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentRepository(db)

		mock.ExpectExec(`UPDATE students SET "grade"=\$1 WHERE id = \$2`).
			WithArgs("4", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`WHERE s.id = \$1`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(studentCols).
				AddRow(1, 5, 2, "4", "kid", "Kid", "Doe", "kid@test.com", 3))

		var data core.Fields
		data.Set("grade", "4")
		s, err := repo.UpdateStudent(ctx, 1, data)
		require.NoError(t, err)
		assert.Equal(t, "4", s.Grade)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("UpdateStudent not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentRepository(db)

		mock.ExpectExec(`UPDATE students SET "teacher_id"=\$1 WHERE id = \$2`).
			WithArgs(3, 9).
			WillReturnResult(sqlmock.NewResult(0, 0))

		var data core.Fields
		data.Set("teacherID", 3)
		_, err := repo.UpdateStudent(ctx, 9, data)
		assert.Equal(t, student.ErrNotFound, err)
	})
}

func TestAssignmentRepositories(t *testing.T) {
	ctx := context.Background()
	due := time.Date(2021, 4, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2021, 3, 25, 8, 30, 0, 0, time.UTC)

	t.Run("CreateAssignment", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAssignmentRepository(db)

		mock.ExpectQuery(`INSERT INTO assignments \(title, subject_code, instructions, teacher_id\)`).
			WithArgs("HW1", "MATH1", "Do it", 2).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title", "subject_code", "instructions", "teacher_id"}).
				AddRow(1, "HW1", "MATH1", "Do it", 2))

		a, err := repo.CreateAssignment(ctx, assignment.NewAssignment{
			Title:        "HW1",
			SubjectCode:  "MATH1",
			Instructions: "Do it",
			TeacherID:    2,
		})
		require.NoError(t, err)
		assert.Equal(t, assignment.Assignment{ID: 1, Title: "HW1", SubjectCode: "MATH1", Instructions: "Do it", TeacherID: 2}, a)
	})

	t.Run("UpdateAssignment not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewAssignmentRepository(db)

		mock.ExpectQuery(`UPDATE assignments SET "subject_code"=\$1 WHERE id = \$2 RETURNING`).
			WithArgs("SCI1", 8).
			WillReturnError(sql.ErrNoRows)

		var data core.Fields
		data.Set("subjectCode", "SCI1")
		_, err := repo.UpdateAssignment(ctx, 8, data)
		assert.Equal(t, assignment.ErrNotFound, err)
	})

	t.Run("SubjectExists", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSubjectRepository(db)

		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM subjects WHERE code = \$1\)`).
			WithArgs("ART1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		ok, err := repo.SubjectExists(ctx, "ART1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("QueryAllSubjects", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewSubjectRepository(db)

		mock.ExpectQuery(`SELECT code, name FROM subjects ORDER BY code`).
			WillReturnRows(sqlmock.NewRows([]string{"code", "name"}).
				AddRow("HIST1", "History").
				AddRow("MATH1", "Math"))

		subjects, err := repo.QueryAllSubjects(ctx)
		require.NoError(t, err)
		assert.Equal(t, []assignment.Subject{{Code: "HIST1", Name: "History"}, {Code: "MATH1", Name: "Math"}}, subjects)
	})

	t.Run("CreateStudentAssignment unknown student", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentAssignmentRepository(db)

		mock.ExpectQuery(`INSERT INTO students_assignments`).
			WithArgs(1, 42, now, due).
			WillReturnError(&pq.Error{Code: foreignKeyViolation})

		_, err := repo.CreateStudentAssignment(ctx, assignment.StudentAssignment{
			AssignmentID: 1,
			StudentID:    42,
			DateAssigned: now,
			DateDue:      due,
		})
		assert.Equal(t, student.ErrNotFound, err)
	})

	t.Run("GetStudentAssignmentForUpdate locks the row", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentAssignmentRepository(db)

		mock.ExpectQuery(`FROM students_assignments WHERE id = \$1 FOR UPDATE`).
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows(studentAssignmentCols).
				AddRow(3, 1, 1, now, due, now, nil, true, false))

		sa, err := repo.GetStudentAssignmentForUpdate(ctx, 3)
		require.NoError(t, err)
		assert.True(t, sa.IsSubmitted)
		assert.Equal(t, now, sa.DateSubmitted.Time)
		assert.False(t, sa.DateApproved.Valid)
	})

	t.Run("QueryStudentAssignmentsByStudent orders by due date", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentAssignmentRepository(db)

		mock.ExpectQuery(`FROM students_assignments WHERE student_id = \$1 ORDER BY date_due, id`).
			WithArgs(1).
			WillReturnRows(sqlmock.NewRows(studentAssignmentCols))

		sas, err := repo.QueryStudentAssignmentsByStudent(ctx, 1)
		require.NoError(t, err)
		assert.NotNil(t, sas)
		assert.Empty(t, sas)
	})

	t.Run("UpdateStudentAssignment", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentAssignmentRepository(db)

		mock.ExpectQuery(`UPDATE students_assignments SET "date_submitted"=\$1, "is_submitted"=\$2 WHERE id = \$3 RETURNING`).
			WithArgs(sqlmock.AnyArg(), false, 3).
			WillReturnRows(sqlmock.NewRows(studentAssignmentCols).
				AddRow(3, 1, 1, now, due, nil, nil, false, false))

		var data core.Fields
		data.Set("dateSubmitted", nil)
		data.Set("isSubmitted", false)
		sa, err := repo.UpdateStudentAssignment(ctx, 3, data)
		require.NoError(t, err)
		assert.False(t, sa.IsSubmitted)
		assert.False(t, sa.DateSubmitted.Valid)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DeleteStudentAssignment not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewStudentAssignmentRepository(db)

		mock.ExpectExec(`DELETE FROM students_assignments WHERE id = \$1`).
			WithArgs(3).
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.Equal(t, assignment.ErrStudentAssignmentNotFound, repo.DeleteStudentAssignment(ctx, 3))
	})
}

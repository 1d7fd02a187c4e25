// Package testutil wires the services over an in-memory store for tests.
package testutil

import (
	"context"
	"testing"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/services/email"
	"github.com/trezcool/homeschool/services/logger"
	"github.com/trezcool/homeschool/storage"
	"github.com/trezcool/homeschool/storage/database/inmem"
)

// Password is the password of the users made by CreateUser.
const Password = "Sch00l-Days!"

type Env struct {
	Conf       *core.Config
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     *logsvc.RollbarLogger
	DB         *inmemdb.DB
	Store      *storage.Store
	Mail       *emailsvc.ConsoleServiceMock

	Users       *user.Service
	Teachers    *teacher.Service
	Students    *student.Service
	Assignments *assignment.Service
}

func NewEnv() *Env {
	conf := core.NewTestConfig()
	validate, translator := core.NewValidator()
	logger := logsvc.NewNopLogger()
	db := inmemdb.NewDB()
	store := storage.NewMemoryStore(db)
	mail := emailsvc.NewConsoleServiceMock(conf, logger)

	return &Env{
		Conf:       conf,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		DB:         db,
		Store:      store,
		Mail:       mail,

		Users:    user.NewService(conf, store.Tx, store.Users, mail, validate),
		Teachers: teacher.NewService(store.Tx, store.Teachers, store.Users),
		Students: student.NewService(store.Tx, store.Students, store.Teachers, store.Users, validate),
		Assignments: assignment.NewService(store.Tx, assignment.Repositories{
			Assignments:        store.Assignments,
			Subjects:           store.Subjects,
			StudentAssignments: store.StudentAssignments,
			Teachers:           store.Teachers,
			Students:           store.Students,
		}, mail, validate),
	}
}

// CreateUser registers a user whose password is Password.
func (env *Env) CreateUser(t *testing.T, username string, isAdmin ...bool) user.User {
	t.Helper()
	nu := user.NewUser{
		Username:  username,
		Password:  Password,
		FirstName: "First",
		LastName:  "Last",
		Email:     username + "@test.cd",
	}
	if len(isAdmin) > 0 {
		nu.IsAdmin = isAdmin[0]
	}
	usr, err := env.Users.Register(context.Background(), nu)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateTeacher(t *testing.T, username string) teacher.Teacher {
	t.Helper()
	env.CreateUser(t, username)
	tchr, err := env.Teachers.Add(context.Background(), username)
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return tchr
}

func (env *Env) CreateStudent(t *testing.T, username string, teacherID int) student.Student {
	t.Helper()
	env.CreateUser(t, username)
	stu, err := env.Students.Add(context.Background(), student.NewStudent{Username: username, TeacherID: teacherID, Grade: "5"})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stu
}

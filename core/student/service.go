package student

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/teacher"
	"github.com/trezcool/homeschool/core/user"
)

var (
	// repository errors
	ErrNotFound = errors.New("student not found")
	ErrExists   = errors.New("user is already a student")
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, userID, teacherID int, grade string) (int, error)
		// QueryStudents returns the students of the scope ordered by grade.
		QueryStudents(ctx context.Context, scope Scope) ([]Student, error)
		GetStudentByID(ctx context.Context, id int) (Student, error)
		GetStudentByUsername(ctx context.Context, username string) (Student, error)
		UpdateStudent(ctx context.Context, id int, data core.Fields) (Student, error)
		DeleteStudent(ctx context.Context, id int) error
	}

	Service struct {
		tx       core.Transactor
		repo     Repository
		teachers teacher.Repository
		users    user.Repository
		validate *validator.Validate
	}
)

func NewService(
	tx core.Transactor,
	repo Repository,
	teachers teacher.Repository,
	users user.Repository,
	validate *validator.Validate,
) *Service {
	return &Service{tx: tx, repo: repo, teachers: teachers, users: users, validate: validate}
}

func (svc *Service) QueryAll(ctx context.Context, scope Scope) ([]Student, error) {
	students, err := svc.repo.QueryStudents(ctx, scope)
	return students, errors.Wrap(err, "querying students")
}

func (svc *Service) Get(ctx context.Context, username string) (Student, error) {
	username = core.CleanString(username, true /* lower */)
	s, err := svc.repo.GetStudentByUsername(ctx, username)
	if err != nil {
		if err == ErrNotFound {
			return Student{}, core.NewNotFoundError("No student: %s", username)
		}
		return Student{}, errors.Wrap(err, "finding student by username")
	}
	return s, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (Student, error) {
	s, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Student{}, core.NewNotFoundError("No student with id: %d", id)
		}
		return Student{}, errors.Wrap(err, "finding student by id")
	}
	return s, nil
}

func (svc *Service) checkTeacher(ctx context.Context, id int) error {
	if _, err := svc.teachers.GetTeacherByID(ctx, id); err != nil {
		if err == teacher.ErrNotFound {
			return core.NewNotFoundError("No teacher with id: %d", id)
		}
		return errors.Wrap(err, "finding teacher by id")
	}
	return nil
}

// Add makes the User a Student of the Teacher and sets its role marker.
func (svc *Service) Add(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	var s Student
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		usr, err := svc.users.GetUserByUsername(ctx, ns.Username)
		if err != nil {
			if err == user.ErrNotFound {
				return core.NewNotFoundError("No user: %s", ns.Username)
			}
			return errors.Wrap(err, "finding user by username")
		}
		if usr.IsTeacher() {
			return core.NewConflictError("Already a teacher: %s", ns.Username)
		}
		if err = svc.checkTeacher(ctx, ns.TeacherID); err != nil {
			return err
		}

		id, err := svc.repo.CreateStudent(ctx, usr.ID, ns.TeacherID, ns.Grade)
		if err != nil {
			if err == ErrExists {
				return core.NewConflictError("Already a student: %s", ns.Username)
			}
			return errors.Wrap(err, "creating student")
		}
		if err = svc.users.SetUserRole(ctx, usr.ID, user.RoleStudent); err != nil {
			return errors.Wrap(err, "setting user role")
		}

		s, err = svc.repo.GetStudentByID(ctx, id)
		return errors.Wrap(err, "finding student by id")
	})
	return s, err
}

// Update changes the Teacher and/or the grade of the Student.
func (svc *Service) Update(ctx context.Context, username string, us UpdateStudent) (Student, error) {
	username = core.CleanString(username, true /* lower */)
	if err := us.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	data := us.fields()
	if len(data) == 0 {
		return Student{}, core.NewValidationError(core.ErrNoData)
	}

	var s Student
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		orig, err := svc.repo.GetStudentByUsername(ctx, username)
		if err != nil {
			if err == ErrNotFound {
				return core.NewNotFoundError("No student: %s", username)
			}
			return errors.Wrap(err, "finding student by username")
		}
		if us.TeacherID != nil {
			if err = svc.checkTeacher(ctx, *us.TeacherID); err != nil {
				return err
			}
		}

		s, err = svc.repo.UpdateStudent(ctx, orig.StudentID, data)
		return errors.Wrap(err, "updating student")
	})
	return s, err
}

// Delete removes the Student row of the User and resets its role marker. It returns the user id.
func (svc *Service) Delete(ctx context.Context, username string) (int, error) {
	username = core.CleanString(username, true /* lower */)
	var userID int
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		usr, err := svc.users.GetUserByUsername(ctx, username)
		if err != nil {
			if err == user.ErrNotFound {
				return core.NewNotFoundError("No user: %s", username)
			}
			return errors.Wrap(err, "finding user by username")
		}

		s, err := svc.repo.GetStudentByUsername(ctx, username)
		if err != nil {
			if err == ErrNotFound {
				return core.NewNotFoundError("No student: %s", username)
			}
			return errors.Wrap(err, "finding student by username")
		}
		if err = svc.repo.DeleteStudent(ctx, s.StudentID); err != nil {
			return errors.Wrap(err, "deleting student")
		}
		if err = svc.users.SetUserRole(ctx, usr.ID, user.RoleUnassigned); err != nil {
			return errors.Wrap(err, "resetting user role")
		}
		userID = usr.ID
		return nil
	})
	return userID, err
}

package teacher

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
)

var (
	// repository errors
	ErrNotFound = errors.New("teacher not found")
	ErrExists   = errors.New("user is already a teacher")

	// ErrHasStudents is returned when deleting a Teacher that still has Students.
	ErrHasStudents = errors.New("teacher still has students")
)

// Teacher is the teaching extension of a User, joined with its public profile.
type Teacher struct {
	TeacherID int       `json:"teacherID" db:"teacher_id"`
	UserID    int       `json:"userID" db:"user_id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"firstName" db:"first_name"`
	LastName  string    `json:"lastName" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Role      user.Role `json:"userTypeID" db:"user_type_id"`
}

type (
	Repository interface {
		CreateTeacher(ctx context.Context, userID int) (int, error)
		QueryAllTeachers(ctx context.Context) ([]Teacher, error)
		GetTeacherByID(ctx context.Context, id int) (Teacher, error)
		GetTeacherByUsername(ctx context.Context, username string) (Teacher, error)
		DeleteTeacher(ctx context.Context, id int) error
	}

	Service struct {
		tx    core.Transactor
		repo  Repository
		users user.Repository
	}
)

func NewService(tx core.Transactor, repo Repository, users user.Repository) *Service {
	return &Service{tx: tx, repo: repo, users: users}
}

func (svc *Service) QueryAll(ctx context.Context) ([]Teacher, error) {
	teachers, err := svc.repo.QueryAllTeachers(ctx)
	return teachers, errors.Wrap(err, "querying teachers")
}

func (svc *Service) Get(ctx context.Context, username string) (Teacher, error) {
	username = core.CleanString(username, true /* lower */)
	t, err := svc.repo.GetTeacherByUsername(ctx, username)
	if err != nil {
		if err == ErrNotFound {
			return Teacher{}, core.NewNotFoundError("No teacher: %s", username)
		}
		return Teacher{}, errors.Wrap(err, "finding teacher by username")
	}
	return t, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (Teacher, error) {
	t, err := svc.repo.GetTeacherByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Teacher{}, core.NewNotFoundError("No teacher with id: %d", id)
		}
		return Teacher{}, errors.Wrap(err, "finding teacher by id")
	}
	return t, nil
}

// Add makes the User a Teacher and sets its role marker.
func (svc *Service) Add(ctx context.Context, username string) (Teacher, error) {
	username = core.CleanString(username, true /* lower */)
	var t Teacher
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		usr, err := svc.users.GetUserByUsername(ctx, username)
		if err != nil {
			if err == user.ErrNotFound {
				return core.NewNotFoundError("No user: %s", username)
			}
			return errors.Wrap(err, "finding user by username")
		}
		if usr.IsStudent() {
			return core.NewConflictError("Already a student: %s", username)
		}

		id, err := svc.repo.CreateTeacher(ctx, usr.ID)
		if err != nil {
			if err == ErrExists {
				return core.NewConflictError("Already a teacher: %s", username)
			}
			return errors.Wrap(err, "creating teacher")
		}
		if err = svc.users.SetUserRole(ctx, usr.ID, user.RoleTeacher); err != nil {
			return errors.Wrap(err, "setting user role")
		}

		t, err = svc.repo.GetTeacherByID(ctx, id)
		return errors.Wrap(err, "finding teacher by id")
	})
	return t, err
}

// Delete removes the Teacher row of the User and resets its role marker. It returns the user id.
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

		t, err := svc.repo.GetTeacherByUsername(ctx, username)
		if err != nil {
			if err == ErrNotFound {
				return core.NewNotFoundError("No teacher: %s", username)
			}
			return errors.Wrap(err, "finding teacher by username")
		}
		if err = svc.repo.DeleteTeacher(ctx, t.TeacherID); err != nil {
			if err == ErrHasStudents {
				return core.NewConflictError("Teacher %s still has students", username)
			}
			return errors.Wrap(err, "deleting teacher")
		}
		if err = svc.users.SetUserRole(ctx, usr.ID, user.RoleUnassigned); err != nil {
			return errors.Wrap(err, "resetting user role")
		}
		userID = usr.ID
		return nil
	})
	return userID, err
}

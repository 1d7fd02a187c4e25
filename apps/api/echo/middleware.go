package echoapi

import (
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
)

// context keys of the objects resolved by the guards
const (
	contextStudentKey           = "student"
	contextTeacherKey           = "teacher"
	contextAssignmentKey        = "assignment"
	contextStudentAssignmentKey = "studentAssignment"
)

func loggedInMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if _, ok := getContextClaims(ctx); !ok {
			return errUnauthorized
		}
		return next(ctx)
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if claims, ok := getContextClaims(ctx); !ok || !claims.IsAdmin {
			return errUnauthorized
		}
		return next(ctx)
	}
}

// isCorrectUser tells if the caller is the user of the :username param or an admin.
func isCorrectUser(ctx echo.Context) bool {
	claims, ok := getContextClaims(ctx)
	return ok && (claims.IsAdmin || strings.EqualFold(claims.Username, ctx.Param("username")))
}

func correctUserMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if !isCorrectUser(ctx) {
			return errUnauthorized
		}
		return next(ctx)
	}
}

func teacherMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if claims, ok := getContextClaims(ctx); !ok || !claims.IsTeacher() {
			return errNotTeacher
		}
		return next(ctx)
	}
}

func adminOrTeacherMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if claims, ok := getContextClaims(ctx); !ok || !(claims.IsAdmin || claims.IsTeacher()) {
			return errUnauthorized
		}
		return next(ctx)
	}
}

// contextTeacher resolves the Teacher row of the caller and keeps it in the context.
func contextTeacher(ctx echo.Context, svc *teacher.Service) (teacher.Teacher, error) {
	if t, ok := ctx.Get(contextTeacherKey).(teacher.Teacher); ok {
		return t, nil
	}
	claims, ok := getContextClaims(ctx)
	if !ok || !claims.IsTeacher() {
		return teacher.Teacher{}, errNotTeacher
	}
	t, err := svc.Get(ctx.Request().Context(), claims.Username)
	if err != nil {
		if core.IsNotFound(err) {
			return teacher.Teacher{}, errNotTeacher
		}
		return teacher.Teacher{}, errors.Wrap(err, "getting context teacher")
	}
	ctx.Set(contextTeacherKey, t)
	return t, nil
}

// ownsStudentMiddleware resolves the Student of the :username param.
// It lets admins through, and teachers whose id is the teacherID of the Student.
// With allowSelf, the Student itself is also let through.
func ownsStudentMiddleware(students *student.Service, teachers *teacher.Service, allowSelf bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, ok := getContextClaims(ctx)
			if !ok {
				return errUnauthorized
			}
			if !claims.IsAdmin && !claims.IsTeacher() &&
				!(allowSelf && strings.EqualFold(claims.Username, ctx.Param("username"))) {
				return errUnauthorized
			}

			s, err := students.Get(ctx.Request().Context(), ctx.Param("username"))
			if err != nil {
				return errors.Wrap(err, "finding student")
			}
			ctx.Set(contextStudentKey, s)

			if claims.IsAdmin || (allowSelf && strings.EqualFold(claims.Username, s.Username)) {
				return next(ctx)
			}
			t, err := contextTeacher(ctx, teachers)
			if err != nil {
				return err
			}
			if t.TeacherID != s.TeacherID {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}

func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id < 1 {
		return 0, core.NewValidationError(errors.Errorf("Invalid id: %s", ctx.Param("id")))
	}
	return id, nil
}

// authorMiddleware resolves the Assignment of the :id param and only lets its author through.
// With allowAdmin, admins are also let through.
func authorMiddleware(assignments *assignment.Service, teachers *teacher.Service, allowAdmin bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			id, err := pathID(ctx)
			if err != nil {
				return err
			}
			claims, ok := getContextClaims(ctx)
			if !ok {
				return errUnauthorized
			}
			admin := allowAdmin && claims.IsAdmin

			var t teacher.Teacher
			if !admin {
				if t, err = contextTeacher(ctx, teachers); err != nil {
					return err
				}
			}
			a, err := assignments.Get(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding assignment")
			}
			if !admin && a.TeacherID != t.TeacherID {
				return errUnauthorized
			}
			ctx.Set(contextAssignmentKey, a)
			return next(ctx)
		}
	}
}

// studentAssignmentMiddleware resolves the StudentAssignment of the :id param and its Student.
// It lets admins through, and teachers whose id is the teacherID of the Student.
// With allowStudent, the Student is also let through when it is the user of the :username param.
func studentAssignmentMiddleware(
	assignments *assignment.Service,
	students *student.Service,
	teachers *teacher.Service,
	allowStudent bool,
) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, ok := getContextClaims(ctx)
			if !ok {
				return errUnauthorized
			}
			id, err := pathID(ctx)
			if err != nil {
				return err
			}

			reqCtx := ctx.Request().Context()
			sa, err := assignments.GetStudentAssignment(reqCtx, id)
			if err != nil {
				return errors.Wrap(err, "finding student assignment")
			}
			s, err := students.GetByID(reqCtx, sa.StudentID)
			if err != nil {
				return errors.Wrap(err, "finding student")
			}
			ctx.Set(contextStudentAssignmentKey, sa)
			ctx.Set(contextStudentKey, s)

			if claims.IsAdmin {
				return next(ctx)
			}
			if allowStudent && strings.EqualFold(claims.Username, s.Username) &&
				strings.EqualFold(ctx.Param("username"), s.Username) {
				return next(ctx)
			}
			if !claims.IsTeacher() {
				return errUnauthorized
			}
			t, err := contextTeacher(ctx, teachers)
			if err != nil {
				return err
			}
			if t.TeacherID != s.TeacherID {
				return errUnauthorized
			}
			return next(ctx)
		}
	}
}

// isStaff tells if the caller is an admin or the Teacher resolved by a guard.
func isStaff(ctx echo.Context) bool {
	if claims, ok := getContextClaims(ctx); ok && claims.IsAdmin {
		return true
	}
	_, ok := ctx.Get(contextTeacherKey).(teacher.Teacher)
	return ok
}

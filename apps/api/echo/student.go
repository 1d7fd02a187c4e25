package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
)

type studentApi struct {
	svc      *student.Service
	teachers *teacher.Service
}

func registerStudentAPI(g *echo.Group, svc *student.Service, teachers *teacher.Service) {
	api := studentApi{svc: svc, teachers: teachers}

	g.GET("", api.query, adminOrTeacherMiddleware)
	g.POST("", api.create, adminOrTeacherMiddleware)
	g.GET("/:username", api.retrieve, ownsStudentMiddleware(svc, teachers, true))
	g.PATCH("/:username", api.update, ownsStudentMiddleware(svc, teachers, false))
	g.DELETE("/:username", api.destroy, ownsStudentMiddleware(svc, teachers, false))
}

type (
	StudentResponse struct {
		Student student.Student `json:"student"`
	}

	StudentsResponse struct {
		Students []student.Student `json:"students"`
	}
)

// Handlers

// query lists every Student for admins and the caller's own Students for teachers.
func (api *studentApi) query(ctx echo.Context) error {
	var scope student.Scope
	if claims, _ := getContextClaims(ctx); !claims.IsAdmin {
		t, err := contextTeacher(ctx, api.teachers)
		if err != nil {
			return err
		}
		scope.TeacherID = t.TeacherID
	}

	students, err := api.svc.QueryAll(ctx.Request().Context(), scope)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	return ctx.JSON(http.StatusOK, StudentsResponse{Students: students})
}

// create lets admins add a Student to any Teacher; teachers add Students to themselves.
func (api *studentApi) create(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}

	if claims, _ := getContextClaims(ctx); !claims.IsAdmin {
		t, err := contextTeacher(ctx, api.teachers)
		if err != nil {
			return err
		}
		if data.TeacherID == 0 {
			data.TeacherID = t.TeacherID
		}
		if data.TeacherID != t.TeacherID {
			return errUnauthorized
		}
	}

	s, err := api.svc.Add(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "adding student")
	}
	return ctx.JSON(http.StatusCreated, StudentResponse{Student: s})
}

func (api *studentApi) retrieve(ctx echo.Context) error {
	s, ok := ctx.Get(contextStudentKey).(student.Student)
	if !ok {
		return errors.New("student not found in echo.Context")
	}
	return ctx.JSON(http.StatusOK, StudentResponse{Student: s})
}

func (api *studentApi) update(ctx echo.Context) error {
	var data student.UpdateStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudent")
	}
	s, err := api.svc.Update(ctx.Request().Context(), ctx.Param("username"), data)
	if err != nil {
		return errors.Wrap(err, "updating student")
	}
	return ctx.JSON(http.StatusOK, StudentResponse{Student: s})
}

func (api *studentApi) destroy(ctx echo.Context) error {
	username := ctx.Param("username")
	if _, err := api.svc.Delete(ctx.Request().Context(), username); err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: username})
}

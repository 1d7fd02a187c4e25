package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core/teacher"
)

type teacherApi struct {
	svc *teacher.Service
}

func registerTeacherAPI(g *echo.Group, svc *teacher.Service) {
	api := teacherApi{svc: svc}

	g.GET("", api.query, adminMiddleware)
	g.POST("", api.create, adminMiddleware)
	g.GET("/:username", api.retrieve, correctUserMiddleware)
	g.DELETE("/:username", api.destroy, adminMiddleware)
}

type (
	NewTeacherRequest struct {
		Username string `json:"username"`
	}

	TeacherResponse struct {
		Teacher teacher.Teacher `json:"teacher"`
	}

	TeachersResponse struct {
		Teachers []teacher.Teacher `json:"teachers"`
	}
)

// Handlers

func (api *teacherApi) query(ctx echo.Context) error {
	teachers, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	return ctx.JSON(http.StatusOK, TeachersResponse{Teachers: teachers})
}

func (api *teacherApi) create(ctx echo.Context) error {
	var data NewTeacherRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacherRequest")
	}
	t, err := api.svc.Add(ctx.Request().Context(), data.Username)
	if err != nil {
		return errors.Wrap(err, "adding teacher")
	}
	return ctx.JSON(http.StatusCreated, TeacherResponse{Teacher: t})
}

func (api *teacherApi) retrieve(ctx echo.Context) error {
	t, err := api.svc.Get(ctx.Request().Context(), ctx.Param("username"))
	if err != nil {
		return errors.Wrap(err, "getting teacher")
	}
	return ctx.JSON(http.StatusOK, TeacherResponse{Teacher: t})
}

func (api *teacherApi) destroy(ctx echo.Context) error {
	username := ctx.Param("username")
	if _, err := api.svc.Delete(ctx.Request().Context(), username); err != nil {
		return errors.Wrap(err, "deleting teacher")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: username})
}

package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core/user"
)

type userApi struct {
	svc *user.Service
}

func registerUserAPI(g *echo.Group, svc *user.Service) {
	api := userApi{svc: svc}

	g.GET("", api.query, adminMiddleware)
	g.GET("/:username", api.retrieve, correctUserMiddleware)
	g.PATCH("/:username", api.update, correctUserMiddleware)
	g.DELETE("/:username", api.destroy, adminMiddleware)
}

type (
	UserResponse struct {
		User user.User `json:"user"`
	}

	UsersResponse struct {
		Users []user.User `json:"users"`
	}

	DeletedResponse struct {
		Deleted interface{} `json:"deleted"`
	}
)

// Handlers

func (api *userApi) query(ctx echo.Context) error {
	users, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return ctx.JSON(http.StatusOK, UsersResponse{Users: users})
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("username"))
	if err != nil {
		return errors.Wrap(err, "getting user")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

func (api *userApi) update(ctx echo.Context) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	usr, err := api.svc.Update(ctx.Request().Context(), ctx.Param("username"), data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, UserResponse{User: usr})
}

func (api *userApi) destroy(ctx echo.Context) error {
	username := ctx.Param("username")
	if err := api.svc.Delete(ctx.Request().Context(), username); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: username})
}

package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
)

var (
	errUnauthorized  = core.NewUnauthorizedError("Unauthorized")
	errNotTeacher    = core.NewUnauthorizedError("You are not logged into a Teacher account.")
	errTooManyLogins = echo.NewHTTPError(http.StatusTooManyRequests, "Too many failed login attempts, try again later")
)

type (
	errorBody struct {
		Message interface{} `json:"message"`
		Status  int         `json:"status"`
	}

	errorResponse struct {
		Error errorBody `json:"error"`
	}
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var (
			code    int
			message interface{}

			httpErr  *echo.HTTPError
			vErrs    validator.ValidationErrors
			valErr   *core.ValidationError
			nfErr    *core.NotFoundError
			authErr  *core.UnauthorizedError
			conflErr *core.ConflictError
		)

		switch {
		case errors.As(err, &vErrs):
			code = http.StatusBadRequest
			message = core.TranslateErrors(vErrs, translator)
		case errors.As(err, &valErr):
			code = http.StatusBadRequest
			if len(valErr.Fields) > 0 {
				msgs := make([]string, 0, len(valErr.Fields))
				for _, fErr := range valErr.Fields {
					msgs = append(msgs, fErr.Error)
				}
				message = msgs
			} else {
				message = valErr.Error()
			}
		case errors.As(err, &nfErr):
			code = http.StatusNotFound
			message = nfErr.Error()
		case errors.As(err, &authErr):
			code = http.StatusUnauthorized
			message = authErr.Error()
		case errors.As(err, &conflErr):
			code = http.StatusConflict
			message = conflErr.Error()
		case errors.As(err, &httpErr):
			code = httpErr.Code
			message = httpErr.Message
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(code)
			message = msg

			args := []interface{}{errors.Wrap(err, msg), map[string]interface{}{
				"method":    ctx.Request().Method,
				"path":      ctx.Request().URL.Path,
				"requestID": ctx.Response().Header().Get(echo.HeaderXRequestID),
			}}
			if claims, ok := getContextClaims(ctx); ok {
				args = append(args, claims)
			}
			logger.Error(msg, args...)

			if ctx.Echo().Debug {
				message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, errorResponse{Error: errorBody{Message: message, Status: code}})
			}
			if err != nil {
				logger.Error("sending error response", err)
			}
		}
	}
}

package echoapi

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/auth"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/services/throttle"
)

const contextClaimsKey = "claims"

var bearerPrefix = regexp.MustCompile(`^[Bb]earer `)

// authenticateJWT stores the claims of a valid bearer token in the context.
// A missing or invalid token leaves the request anonymous; the guards decide.
func authenticateJWT(tokens *auth.TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			header := ctx.Request().Header.Get(echo.HeaderAuthorization)
			if header != "" {
				token := strings.TrimSpace(bearerPrefix.ReplaceAllString(header, ""))
				if claims, err := tokens.Verify(token); err == nil {
					ctx.Set(contextClaimsKey, claims)
				}
			}
			return next(ctx)
		}
	}
}

func getContextClaims(ctx echo.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Get(contextClaimsKey).(*auth.Claims)
	return claims, ok && claims != nil
}

type authApi struct {
	svc      *user.Service
	tokens   *auth.TokenManager
	throttle throttle.Limiter
	logger   core.Logger
	validate *validator.Validate
}

func registerAuthAPI(g *echo.Group, opts *Options) {
	api := authApi{
		svc:      opts.UserSvc,
		tokens:   opts.Tokens,
		throttle: opts.Throttle,
		logger:   opts.Logger,
		validate: opts.Validate,
	}

	g.POST("/register", api.register)
	g.POST("/login", api.login)
	g.POST("/token-refresh", api.refreshToken, loggedInMiddleware)
}

type (
	// RegisterRequest is the public sign up payload. Admins are only made through the admin CLI.
	RegisterRequest struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatarURL"`
	}

	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

// Handlers

func (api *authApi) register(ctx echo.Context) error {
	var data RegisterRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RegisterRequest")
	}
	usr, err := api.svc.Register(ctx.Request().Context(), user.NewUser{
		Username:  data.Username,
		Password:  data.Password,
		FirstName: data.FirstName,
		LastName:  data.LastName,
		Email:     data.Email,
		AvatarURL: data.AvatarURL,
	})
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	token, err := api.issueToken(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, TokenResponse{Token: token})
}

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// attempts are counted per username and client IP
	reqCtx := ctx.Request().Context()
	key := data.Username + "|" + ctx.RealIP()
	allowed, err := api.throttle.Attempt(reqCtx, key)
	if err != nil {
		// let the attempt through when the store is down
		api.logger.Error("counting login attempt", err)
		allowed = true
	}
	if !allowed {
		return errTooManyLogins
	}

	usr, err := api.svc.Authenticate(reqCtx, data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	if err = api.throttle.Reset(reqCtx, key); err != nil {
		api.logger.Error("resetting login attempts", err)
	}

	token, err := api.issueToken(ctx, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

// issueToken stamps the login time of usr and returns a new token.
func (api *authApi) issueToken(ctx echo.Context, usr user.User) (string, error) {
	usr, err := api.svc.RecordLogin(ctx.Request().Context(), usr.Username)
	if err != nil {
		return "", errors.Wrap(err, "recording login")
	}
	token, err := api.tokens.Issue(usr)
	return token, errors.Wrap(err, "issuing token")
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	claims, _ := getContextClaims(ctx)
	id, err := strconv.Atoi(claims.Subject)
	if err != nil {
		return errUnauthorized
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		if core.IsNotFound(err) {
			return errUnauthorized
		}
		return errors.Wrap(err, "finding user by id")
	}

	token, err := api.tokens.Refresh(*claims, usr)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, TokenResponse{Token: token})
}

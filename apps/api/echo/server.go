package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/auth"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/services/throttle"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		Translator     ut.Translator
		Validate       *validator.Validate
		Tokens         *auth.TokenManager
		Throttle       throttle.Limiter
		SignalShutdown func()

		UserSvc       *user.Service
		TeacherSvc    *teacher.Service
		StudentSvc    *student.Service
		AssignmentSvc *assignment.Service
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.SignalShutdown == nil {
		opts.SignalShutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.IPExtractor = echo.ExtractIPFromXFFHeader()
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !conf.Server.DisableRequestLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORS())
	s.app.Use(authenticateJWT(s.opts.Tokens))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	registerAuthAPI(s.app.Group("/auth"), s.opts)
	registerUserAPI(s.app.Group("/users"), s.opts.UserSvc)
	registerTeacherAPI(s.app.Group("/teachers"), s.opts.TeacherSvc)
	registerStudentAPI(s.app.Group("/students"), s.opts.StudentSvc, s.opts.TeacherSvc)
	registerAssignmentAPI(s.app, s.opts.AssignmentSvc, s.opts.StudentSvc, s.opts.TeacherSvc)
}

func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Homeschool Helper API!")
}

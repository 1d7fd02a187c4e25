package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof" // register the /debug/pprof handlers
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/homeschool/apps/api/echo"
	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/auth"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/services/email"
	"github.com/trezcool/homeschool/services/logger"
	"github.com/trezcool/homeschool/services/throttle"
	"github.com/trezcool/homeschool/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up logger
	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		return errors.Wrap(err, "setting up zap")
	}
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	defer logger.Sync()

	// set up DB
	store, err := storage.Open(context.Background(), conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	limiter, closeLimiter, err := throttle.New(conf)
	if err != nil {
		return errors.Wrap(err, "setting up throttle")
	}
	defer func() { _ = closeLimiter() }()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	validate, translator := core.NewValidator()

	usrSvc := user.NewService(conf, store.Tx, store.Users, mailSvc, validate)
	teacherSvc := teacher.NewService(store.Tx, store.Teachers, store.Users)
	studentSvc := student.NewService(store.Tx, store.Students, store.Teachers, store.Users, validate)
	assignmentSvc := assignment.NewService(store.Tx, assignment.Repositories{
		Assignments:        store.Assignments,
		Subjects:           store.Subjects,
		StudentAssignments: store.StudentAssignments,
		Teachers:           store.Teachers,
		Students:           store.Students,
	}, mailSvc, validate)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build), map[string]interface{}{
		"env":    conf.Env,
		"engine": store.Engine,
	})
	defer logger.Info("Application stopped")

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.
	// /metrics - Prometheus exposition.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)
	http.Handle("/metrics", promhttp.Handler())

	if conf.Server.DebugHost != "" {
		go func() {
			if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
				logger.Error("debug server closed", err)
			}
		}()
	}

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:           conf,
		Logger:         logger,
		Translator:     translator,
		Validate:       validate,
		Tokens:         auth.NewTokenManager(conf),
		Throttle:       limiter,
		SignalShutdown: signalShutdown(shutdown),
		UserSvc:        usrSvc,
		TeacherSvc:     teacherSvc,
		StudentSvc:     studentSvc,
		AssignmentSvc:  assignmentSvc,
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}

// signalShutdown returns a func requesting a shutdown on ch. It never blocks once one is pending.
func signalShutdown(ch chan<- os.Signal) func() {
	return func() {
		select {
		case ch <- syscall.SIGTERM:
		default:
		}
	}
}

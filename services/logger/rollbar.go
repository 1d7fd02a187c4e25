package logsvc

import (
	"strconv"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/auth"
	"github.com/trezcool/homeschool/core/user"
)

type RollbarLogger struct {
	zl      *zap.SugaredLogger
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZapLogger builds the structured logger: console output in debug, JSON otherwise.
func NewZapLogger(conf *core.Config) (*zap.Logger, error) {
	var zapConf zap.Config
	if conf.Debug {
		zapConf = zap.NewDevelopmentConfig()
		zapConf.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapConf = zap.NewProductionConfig()
	}
	return zapConf.Build(zap.AddCallerSkip(1), zap.Fields(
		zap.String("app", conf.AppName),
		zap.String("env", conf.Env),
	))
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)

	l := &RollbarLogger{zl: zl.Sugar()}
	l.Enable(!conf.Debug && conf.RollbarToken != "")
	return l
}

// NewNopLogger discards every entry.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{zl: zap.NewNop().Sugar()}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

// Sync flushes the buffered entries of both sinks.
func (l *RollbarLogger) Sync() {
	if l.enabled {
		rollbar.Wait()
	}
	_ = l.zl.Sync()
}

type entry struct {
	rollbarArgs []interface{}
	fields      []interface{}
}

// expected args: error, map[string]interface{}, user.User | auth.Claims | *auth.Claims
func (l *RollbarLogger) prepare(msg string, args []interface{}) entry {
	var personSet bool
	setPerson := func(id int, username, email string) {
		if personSet || !l.enabled { // only set one person
			return
		}
		rollbar.SetPerson(strconv.Itoa(id), username, email)
		personSet = true
	}

	e := entry{rollbarArgs: make([]interface{}, 0, len(args)+1)}
	e.rollbarArgs = append(e.rollbarArgs, msg)
	for _, arg := range args {
		switch v := arg.(type) {
		case user.User:
			setPerson(v.ID, v.Username, v.Email)
			e.fields = append(e.fields, "username", v.Username)
		case auth.Claims:
			id, _ := strconv.Atoi(v.Subject)
			setPerson(id, v.Username, "")
			e.fields = append(e.fields, "username", v.Username)
		case *auth.Claims:
			if v == nil {
				continue
			}
			id, _ := strconv.Atoi(v.Subject)
			setPerson(id, v.Username, "")
			e.fields = append(e.fields, "username", v.Username)
		case error:
			e.rollbarArgs = append(e.rollbarArgs, v)
			e.fields = append(e.fields, zap.Error(v))
		case map[string]interface{}:
			e.rollbarArgs = append(e.rollbarArgs, v)
			for k, val := range v {
				e.fields = append(e.fields, k, val)
			}
		default:
			e.rollbarArgs = append(e.rollbarArgs, v)
			e.fields = append(e.fields, zap.Any("extra", v))
		}
	}
	if l.enabled && !personSet {
		rollbar.ClearPerson()
	}
	return e
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	if l.enabled {
		rollbar.Debug(e.rollbarArgs...)
	}
	l.zl.Debugw(msg, e.fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	if l.enabled {
		rollbar.Info(e.rollbarArgs...)
	}
	l.zl.Infow(msg, e.fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	if l.enabled {
		rollbar.Warning(e.rollbarArgs...)
	}
	l.zl.Warnw(msg, e.fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	if l.enabled {
		rollbar.Error(e.rollbarArgs...)
	}
	l.zl.Errorw(msg, e.fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	if l.enabled {
		rollbar.Critical(e.rollbarArgs...)
		rollbar.Wait()
	}
	l.zl.Fatalw(msg, e.fields...)
}

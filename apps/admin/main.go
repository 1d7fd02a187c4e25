package main

import (
	"context"
	"database/sql"
	"os"

	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/services/email"
	"github.com/trezcool/homeschool/services/logger"
	"github.com/trezcool/homeschool/storage"
	"github.com/trezcool/homeschool/storage/database"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZapLogger(conf)
	if err != nil {
		panic(err)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	defer logger.Sync()

	// set up DB
	store, err := storage.Open(context.Background(), conf)
	if err != nil {
		logger.Fatal("setting up database", err)
	}

	// start CLI
	validate, _ := core.NewValidator()
	cli := commandLine{
		usrSvc: user.NewService(conf, store.Tx, store.Users, emailsvc.NewConsoleService(conf, logger), validate),
		openDB: func() (*sql.DB, error) {
			if store.Engine != storage.EnginePostgres {
				return nil, errors.Errorf("migrate: the %s engine has no migrations", store.Engine)
			}
			db, err := database.Open(conf)
			if err != nil {
				return nil, err
			}
			return db.DB, nil
		},
	}
	err = cli.run(os.Args)
	_ = store.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		os.Exit(1)
	}
}

// Package storage opens the repositories of the configured database engine.
package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
	"github.com/trezcool/homeschool/core/user"
	"github.com/trezcool/homeschool/storage/database"
	"github.com/trezcool/homeschool/storage/database/inmem"
	"github.com/trezcool/homeschool/storage/database/sqlx"
)

const (
	EnginePostgres = "postgres"
	EngineMemory   = "memory"
)

// Store groups the repositories of one database.
type Store struct {
	Engine             string
	Tx                 core.Transactor
	Users              user.Repository
	Teachers           teacher.Repository
	Students           student.Repository
	Assignments        assignment.Repository
	Subjects           assignment.SubjectRepository
	StudentAssignments assignment.StudentAssignmentRepository

	close func() error
}

// Open returns the Store of conf.Database.Engine.
// The postgres engine creates the database when missing and applies the pending migrations.
func Open(ctx context.Context, conf *core.Config) (*Store, error) {
	switch conf.Database.Engine {
	case EngineMemory:
		return NewMemoryStore(inmemdb.NewDB()), nil
	case EnginePostgres, "":
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.DB); err != nil {
			_ = db.Close()
			return nil, err
		}
		return &Store{
			Engine:             EnginePostgres,
			Tx:                 sqlxrepos.NewTransactor(db),
			Users:              sqlxrepos.NewUserRepository(db),
			Teachers:           sqlxrepos.NewTeacherRepository(db),
			Students:           sqlxrepos.NewStudentRepository(db),
			Assignments:        sqlxrepos.NewAssignmentRepository(db),
			Subjects:           sqlxrepos.NewSubjectRepository(db),
			StudentAssignments: sqlxrepos.NewStudentAssignmentRepository(db),
			close:              db.Close,
		}, nil
	default:
		return nil, errors.Errorf("unknown database engine %q", conf.Database.Engine)
	}
}

func NewMemoryStore(db *inmemdb.DB) *Store {
	return &Store{
		Engine:             EngineMemory,
		Tx:                 db,
		Users:              inmemdb.NewUserRepository(db),
		Teachers:           inmemdb.NewTeacherRepository(db),
		Students:           inmemdb.NewStudentRepository(db),
		Assignments:        inmemdb.NewAssignmentRepository(db),
		Subjects:           inmemdb.NewSubjectRepository(db),
		StudentAssignments: inmemdb.NewStudentAssignmentRepository(db),
	}
}

func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

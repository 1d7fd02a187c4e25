package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/user"
)

type (
	teacherRow struct {
		ID     int
		UserID int
	}

	studentRow struct {
		ID        int
		UserID    int
		TeacherID int
		Grade     string
	}

	tables struct {
		pkCount            map[string]int
		users              map[int]user.User
		teachers           map[int]teacherRow
		students           map[int]studentRow
		subjects           map[string]assignment.Subject
		assignments        map[int]assignment.Assignment
		studentAssignments map[int]assignment.StudentAssignment
	}

	// DB is an in-memory store with the same constraints as the SQL schema.
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex // serializes transactions
		tables
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil)

// DefaultSubjects seeds the subject registry.
var DefaultSubjects = []assignment.Subject{
	{Code: "MATH1", Name: "Math"},
	{Code: "SCI1", Name: "Science"},
	{Code: "LANG1", Name: "Language Arts"},
	{Code: "HIST1", Name: "History"},
}

func NewDB() *DB {
	db := &DB{tables: newTables()}
	for _, s := range DefaultSubjects {
		db.subjects[s.Code] = s
	}
	return db
}

func newTables() tables {
	return tables{
		pkCount:            make(map[string]int),
		users:              make(map[int]user.User),
		teachers:           make(map[int]teacherRow),
		students:           make(map[int]studentRow),
		subjects:           make(map[string]assignment.Subject),
		assignments:        make(map[int]assignment.Assignment),
		studentAssignments: make(map[int]assignment.StudentAssignment),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.pkCount {
		c.pkCount[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.subjects {
		c.subjects[k] = v
	}
	for k, v := range t.assignments {
		c.assignments[k] = v
	}
	for k, v := range t.studentAssignments {
		c.studentAssignments[k] = v
	}
	return c
}

func (db *DB) nextID(table string) int {
	db.pkCount[table]++
	return db.pkCount[table]
}

// WithinTx runs fn with exclusive write access; the tables are restored if fn fails.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if inTx(ctx) { // already in a transaction
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mutex.RLock()
	snapshot := db.tables.clone()
	db.mutex.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			db.restore(snapshot)
			panic(p)
		}
		if err != nil {
			db.restore(snapshot)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, true))
}

func inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) != nil
}

// write runs fn under the write lock. Outside of a transaction it also waits for running transactions.
func (db *DB) write(ctx context.Context, fn func() error) error {
	if !inTx(ctx) {
		db.txMu.Lock()
		defer db.txMu.Unlock()
	}
	db.mutex.Lock()
	defer db.mutex.Unlock()
	return fn()
}

func (db *DB) read(fn func() error) error {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return fn()
}

func (db *DB) restore(snapshot tables) {
	db.mutex.Lock()
	db.tables = snapshot
	db.mutex.Unlock()
}

// Reset empties every table except the subject registry.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	subjects := db.subjects
	db.tables = newTables()
	db.subjects = subjects
}

package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/homeschool/core/teacher"
)

type teacherRepository struct {
	db *DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (db *DB) teacherOfUser(userID int) (teacherRow, bool) {
	for _, t := range db.teachers {
		if t.UserID == userID {
			return t, true
		}
	}
	return teacherRow{}, false
}

func (db *DB) teacherHasStudents(id int) bool {
	for _, s := range db.students {
		if s.TeacherID == id {
			return true
		}
	}
	return false
}

// deleteTeacher removes the teacher row with its assignments.
func (db *DB) deleteTeacher(id int) {
	for aID, a := range db.assignments {
		if a.TeacherID == id {
			db.deleteAssignment(aID)
		}
	}
	delete(db.teachers, id)
}

func (db *DB) joinTeacher(t teacherRow) teacher.Teacher {
	usr := db.users[t.UserID]
	return teacher.Teacher{
		TeacherID: t.ID,
		UserID:    usr.ID,
		Username:  usr.Username,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
		Email:     usr.Email,
		Role:      usr.Role,
	}
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, userID int) (int, error) {
	var id int
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.teacherOfUser(userID); ok {
			return teacher.ErrExists
		}
		id = repo.db.nextID("teachers")
		repo.db.teachers[id] = teacherRow{ID: id, UserID: userID}
		return nil
	})
	return id, err
}

func (repo *teacherRepository) QueryAllTeachers(ctx context.Context) ([]teacher.Teacher, error) {
	var teachers []teacher.Teacher
	_ = repo.db.read(func() error {
		teachers = make([]teacher.Teacher, 0, len(repo.db.teachers))
		for _, t := range repo.db.teachers {
			teachers = append(teachers, repo.db.joinTeacher(t))
		}
		return nil
	})
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].TeacherID < teachers[j].TeacherID })
	return teachers, nil
}

func (repo *teacherRepository) GetTeacherByID(ctx context.Context, id int) (teacher.Teacher, error) {
	var t teacher.Teacher
	err := repo.db.read(func() error {
		row, ok := repo.db.teachers[id]
		if !ok {
			return teacher.ErrNotFound
		}
		t = repo.db.joinTeacher(row)
		return nil
	})
	return t, err
}

func (repo *teacherRepository) GetTeacherByUsername(ctx context.Context, username string) (teacher.Teacher, error) {
	var t teacher.Teacher
	err := repo.db.read(func() error {
		usr, ok := repo.db.findUser(username)
		if !ok {
			return teacher.ErrNotFound
		}
		row, ok := repo.db.teacherOfUser(usr.ID)
		if !ok {
			return teacher.ErrNotFound
		}
		t = repo.db.joinTeacher(row)
		return nil
	})
	return t, err
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id int) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.teachers[id]; !ok {
			return teacher.ErrNotFound
		}
		if repo.db.teacherHasStudents(id) {
			return teacher.ErrHasStudents
		}
		repo.db.deleteTeacher(id)
		return nil
	})
}

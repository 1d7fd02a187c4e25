package inmemdb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (db *DB) studentOfUser(userID int) (studentRow, bool) {
	for _, s := range db.students {
		if s.UserID == userID {
			return s, true
		}
	}
	return studentRow{}, false
}

// deleteStudent removes the student row with its student assignments.
func (db *DB) deleteStudent(id int) {
	for saID, sa := range db.studentAssignments {
		if sa.StudentID == id {
			delete(db.studentAssignments, saID)
		}
	}
	delete(db.students, id)
}

func (db *DB) joinStudent(s studentRow) student.Student {
	usr := db.users[s.UserID]
	return student.Student{
		StudentID: s.ID,
		UserID:    usr.ID,
		TeacherID: s.TeacherID,
		Grade:     s.Grade,
		Username:  usr.Username,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
		Email:     usr.Email,
		Role:      usr.Role,
	}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, userID, teacherID int, grade string) (int, error) {
	var id int
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.studentOfUser(userID); ok {
			return student.ErrExists
		}
		if _, ok := repo.db.teachers[teacherID]; !ok {
			return teacher.ErrNotFound
		}
		id = repo.db.nextID("students")
		repo.db.students[id] = studentRow{ID: id, UserID: userID, TeacherID: teacherID, Grade: grade}
		return nil
	})
	return id, err
}

func (repo *studentRepository) QueryStudents(ctx context.Context, scope student.Scope) ([]student.Student, error) {
	var students []student.Student
	_ = repo.db.read(func() error {
		students = make([]student.Student, 0, len(repo.db.students))
		for _, s := range repo.db.students {
			if scope.TeacherID == 0 || s.TeacherID == scope.TeacherID {
				students = append(students, repo.db.joinStudent(s))
			}
		}
		return nil
	})
	sort.Slice(students, func(i, j int) bool {
		if students[i].Grade != students[j].Grade {
			return students[i].Grade < students[j].Grade
		}
		return students[i].StudentID < students[j].StudentID
	})
	return students, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id int) (student.Student, error) {
	var s student.Student
	err := repo.db.read(func() error {
		row, ok := repo.db.students[id]
		if !ok {
			return student.ErrNotFound
		}
		s = repo.db.joinStudent(row)
		return nil
	})
	return s, err
}

func (repo *studentRepository) GetStudentByUsername(ctx context.Context, username string) (student.Student, error) {
	var s student.Student
	err := repo.db.read(func() error {
		usr, ok := repo.db.findUser(username)
		if !ok {
			return student.ErrNotFound
		}
		row, ok := repo.db.studentOfUser(usr.ID)
		if !ok {
			return student.ErrNotFound
		}
		s = repo.db.joinStudent(row)
		return nil
	})
	return s, err
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, id int, data core.Fields) (student.Student, error) {
	var s student.Student
	err := repo.db.write(ctx, func() error {
		row, ok := repo.db.students[id]
		if !ok {
			return student.ErrNotFound
		}
		for _, fld := range data {
			switch fld.Name {
			case "teacherID":
				row.TeacherID, ok = fld.Value.(int)
				if ok {
					if _, exists := repo.db.teachers[row.TeacherID]; !exists {
						return teacher.ErrNotFound
					}
				}
			case "grade":
				row.Grade, ok = fld.Value.(string)
			default:
				ok = false
			}
			if !ok {
				return errors.Errorf("invalid student field %s: %v", fld.Name, fld.Value)
			}
		}
		repo.db.students[id] = row
		s = repo.db.joinStudent(row)
		return nil
	})
	return s, err
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id int) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.students[id]; !ok {
			return student.ErrNotFound
		}
		repo.db.deleteStudent(id)
		return nil
	})
}

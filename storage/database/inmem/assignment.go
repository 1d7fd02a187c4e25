package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
)

type (
	assignmentRepository struct {
		db *DB
	}

	subjectRepository struct {
		db *DB
	}

	studentAssignmentRepository struct {
		db *DB
	}
)

var (
	_ assignment.Repository                  = (*assignmentRepository)(nil)
	_ assignment.SubjectRepository           = (*subjectRepository)(nil)
	_ assignment.StudentAssignmentRepository = (*studentAssignmentRepository)(nil)
)

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func NewSubjectRepository(db *DB) assignment.SubjectRepository {
	return &subjectRepository{db: db}
}

func NewStudentAssignmentRepository(db *DB) assignment.StudentAssignmentRepository {
	return &studentAssignmentRepository{db: db}
}

// deleteAssignment removes the assignment with its student assignments.
func (db *DB) deleteAssignment(id int) {
	for saID, sa := range db.studentAssignments {
		if sa.AssignmentID == id {
			delete(db.studentAssignments, saID)
		}
	}
	delete(db.assignments, id)
}

// Assignments

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, na assignment.NewAssignment) (assignment.Assignment, error) {
	a := assignment.Assignment{
		Title:        na.Title,
		SubjectCode:  na.SubjectCode,
		Instructions: na.Instructions,
		TeacherID:    na.TeacherID,
	}
	err := repo.db.write(ctx, func() error {
		a.ID = repo.db.nextID("assignments")
		repo.db.assignments[a.ID] = a
		return nil
	})
	return a, err
}

func (repo *assignmentRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID int) ([]assignment.Assignment, error) {
	assignments := make([]assignment.Assignment, 0)
	_ = repo.db.read(func() error {
		for _, a := range repo.db.assignments {
			if a.TeacherID == teacherID {
				assignments = append(assignments, a)
			}
		}
		return nil
	})
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].ID < assignments[j].ID })
	return assignments, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id int) (assignment.Assignment, error) {
	var a assignment.Assignment
	err := repo.db.read(func() error {
		var ok bool
		if a, ok = repo.db.assignments[id]; !ok {
			return assignment.ErrNotFound
		}
		return nil
	})
	return a, err
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, id int, data core.Fields) (assignment.Assignment, error) {
	var a assignment.Assignment
	err := repo.db.write(ctx, func() error {
		var ok bool
		if a, ok = repo.db.assignments[id]; !ok {
			return assignment.ErrNotFound
		}
		for _, fld := range data {
			switch fld.Name {
			case "title":
				a.Title, ok = fld.Value.(string)
			case "subjectCode":
				a.SubjectCode, ok = fld.Value.(string)
			case "instructions":
				a.Instructions, ok = fld.Value.(string)
			default:
				ok = false
			}
			if !ok {
				return errors.Errorf("invalid assignment field %s: %v", fld.Name, fld.Value)
			}
		}
		repo.db.assignments[id] = a
		return nil
	})
	return a, err
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id int) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.assignments[id]; !ok {
			return assignment.ErrNotFound
		}
		repo.db.deleteAssignment(id)
		return nil
	})
}

// Subjects

func (repo *subjectRepository) QueryAllSubjects(ctx context.Context) ([]assignment.Subject, error) {
	var subjects []assignment.Subject
	_ = repo.db.read(func() error {
		subjects = make([]assignment.Subject, 0, len(repo.db.subjects))
		for _, s := range repo.db.subjects {
			subjects = append(subjects, s)
		}
		return nil
	})
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects, nil
}

func (repo *subjectRepository) SubjectExists(ctx context.Context, code string) (bool, error) {
	var ok bool
	_ = repo.db.read(func() error {
		_, ok = repo.db.subjects[code]
		return nil
	})
	return ok, nil
}

// Student Assignments

func (repo *studentAssignmentRepository) CreateStudentAssignment(
	ctx context.Context,
	sa assignment.StudentAssignment,
) (assignment.StudentAssignment, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.assignments[sa.AssignmentID]; !ok {
			return assignment.ErrNotFound
		}
		if _, ok := repo.db.students[sa.StudentID]; !ok {
			return student.ErrNotFound
		}
		sa.ID = repo.db.nextID("students_assignments")
		repo.db.studentAssignments[sa.ID] = sa
		return nil
	})
	if err != nil {
		return assignment.StudentAssignment{}, err
	}
	return sa, nil
}

func (repo *studentAssignmentRepository) query(match func(sa assignment.StudentAssignment) bool) []assignment.StudentAssignment {
	sas := make([]assignment.StudentAssignment, 0)
	_ = repo.db.read(func() error {
		for _, sa := range repo.db.studentAssignments {
			if match(sa) {
				sas = append(sas, sa)
			}
		}
		return nil
	})
	sort.Slice(sas, func(i, j int) bool {
		if !sas[i].DateDue.Equal(sas[j].DateDue) {
			return sas[i].DateDue.Before(sas[j].DateDue)
		}
		return sas[i].ID < sas[j].ID
	})
	return sas
}

func (repo *studentAssignmentRepository) QueryStudentAssignmentsByStudent(
	ctx context.Context,
	studentID int,
) ([]assignment.StudentAssignment, error) {
	return repo.query(func(sa assignment.StudentAssignment) bool { return sa.StudentID == studentID }), nil
}

func (repo *studentAssignmentRepository) QueryStudentAssignmentsByAssignment(
	ctx context.Context,
	assignmentID int,
) ([]assignment.StudentAssignment, error) {
	return repo.query(func(sa assignment.StudentAssignment) bool { return sa.AssignmentID == assignmentID }), nil
}

func (repo *studentAssignmentRepository) GetStudentAssignment(ctx context.Context, id int) (assignment.StudentAssignment, error) {
	var sa assignment.StudentAssignment
	err := repo.db.read(func() error {
		var ok bool
		if sa, ok = repo.db.studentAssignments[id]; !ok {
			return assignment.ErrStudentAssignmentNotFound
		}
		return nil
	})
	return sa, err
}

// GetStudentAssignmentForUpdate relies on the transaction lock of the DB.
func (repo *studentAssignmentRepository) GetStudentAssignmentForUpdate(
	ctx context.Context,
	id int,
) (assignment.StudentAssignment, error) {
	return repo.GetStudentAssignment(ctx, id)
}

func (repo *studentAssignmentRepository) UpdateStudentAssignment(
	ctx context.Context,
	id int,
	data core.Fields,
) (assignment.StudentAssignment, error) {
	var sa assignment.StudentAssignment
	err := repo.db.write(ctx, func() error {
		var ok bool
		if sa, ok = repo.db.studentAssignments[id]; !ok {
			return assignment.ErrStudentAssignmentNotFound
		}
		for _, fld := range data {
			switch fld.Name {
			case "dateDue":
				var t time.Time
				t, ok = fld.Value.(time.Time)
				sa.DateDue = t.UTC()
			case "dateSubmitted":
				sa.DateSubmitted, ok = fld.Value.(null.Time)
			case "isSubmitted":
				sa.IsSubmitted, ok = fld.Value.(bool)
			case "dateApproved":
				sa.DateApproved, ok = fld.Value.(null.Time)
			case "isApproved":
				sa.IsApproved, ok = fld.Value.(bool)
			default:
				ok = false
			}
			if !ok {
				return errors.Errorf("invalid student assignment field %s: %v", fld.Name, fld.Value)
			}
		}
		repo.db.studentAssignments[id] = sa
		return nil
	})
	return sa, err
}

func (repo *studentAssignmentRepository) DeleteStudentAssignment(ctx context.Context, id int) error {
	return repo.db.write(ctx, func() error {
		if _, ok := repo.db.studentAssignments[id]; !ok {
			return assignment.ErrStudentAssignmentNotFound
		}
		delete(repo.db.studentAssignments, id)
		return nil
	})
}

package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
)

const (
	assignmentColumns        = `id, title, subject_code, instructions, teacher_id`
	studentAssignmentColumns = `id, assignment_id, student_id, date_assigned, date_due, date_submitted, date_approved, is_submitted, is_approved`
)

var (
	assignmentFields = map[string]string{
		"subjectCode": "subject_code",
	}

	studentAssignmentFields = map[string]string{
		"dateDue":       "date_due",
		"dateSubmitted": "date_submitted",
		"isSubmitted":   "is_submitted",
		"dateApproved":  "date_approved",
		"isApproved":    "is_approved",
	}
)

type (
	assignmentRepository struct {
		db *sqlx.DB
	}

	subjectRepository struct {
		db *sqlx.DB
	}

	studentAssignmentRepository struct {
		db *sqlx.DB
	}
)

var (
	_ assignment.Repository                  = (*assignmentRepository)(nil)
	_ assignment.SubjectRepository           = (*subjectRepository)(nil)
	_ assignment.StudentAssignmentRepository = (*studentAssignmentRepository)(nil)
)

func NewAssignmentRepository(db *sqlx.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func NewSubjectRepository(db *sqlx.DB) assignment.SubjectRepository {
	return &subjectRepository{db: db}
}

func NewStudentAssignmentRepository(db *sqlx.DB) assignment.StudentAssignmentRepository {
	return &studentAssignmentRepository{db: db}
}

// Assignments

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, na assignment.NewAssignment) (assignment.Assignment, error) {
	q := `INSERT INTO assignments (title, subject_code, instructions, teacher_id)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + assignmentColumns

	var a assignment.Assignment
	err := executor(ctx, repo.db).QueryRowxContext(ctx, q, na.Title, na.SubjectCode, na.Instructions, na.TeacherID).StructScan(&a)
	return a, errors.Wrap(err, "inserting assignment")
}

func (repo *assignmentRepository) QueryAssignmentsByTeacher(ctx context.Context, teacherID int) ([]assignment.Assignment, error) {
	assignments := make([]assignment.Assignment, 0)
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE teacher_id = $1 ORDER BY id`
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &assignments, q, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	return assignments, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id int) (assignment.Assignment, error) {
	var a assignment.Assignment
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &a, q, id); err != nil {
		if notFound(err) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "selecting assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, id int, data core.Fields) (assignment.Assignment, error) {
	setCols, values, err := core.PartialUpdate(data, assignmentFields)
	if err != nil {
		return assignment.Assignment{}, err
	}
	q := `UPDATE assignments SET ` + setCols + ` WHERE id = $` + placeholder(len(values)+1) + ` RETURNING ` + assignmentColumns

	var a assignment.Assignment
	if err = executor(ctx, repo.db).QueryRowxContext(ctx, q, append(values, id)...).StructScan(&a); err != nil {
		if notFound(err) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, id int) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return checkAffected(res, assignment.ErrNotFound)
}

// Subjects

func (repo *subjectRepository) QueryAllSubjects(ctx context.Context) ([]assignment.Subject, error) {
	subjects := make([]assignment.Subject, 0)
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &subjects, `SELECT code, name FROM subjects ORDER BY code`); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	return subjects, nil
}

func (repo *subjectRepository) SubjectExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM subjects WHERE code = $1)`
	if err := executor(ctx, repo.db).QueryRowxContext(ctx, q, code).Scan(&exists); err != nil {
		return false, errors.Wrap(err, "checking subject")
	}
	return exists, nil
}

// Student Assignments

func (repo *studentAssignmentRepository) CreateStudentAssignment(
	ctx context.Context,
	sa assignment.StudentAssignment,
) (assignment.StudentAssignment, error) {
	q := `INSERT INTO students_assignments (assignment_id, student_id, date_assigned, date_due)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + studentAssignmentColumns

	var created assignment.StudentAssignment
	err := executor(ctx, repo.db).QueryRowxContext(ctx, q, sa.AssignmentID, sa.StudentID, sa.DateAssigned, sa.DateDue).StructScan(&created)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return assignment.StudentAssignment{}, student.ErrNotFound
		}
		return assignment.StudentAssignment{}, errors.Wrap(err, "inserting student assignment")
	}
	return created, nil
}

func (repo *studentAssignmentRepository) query(ctx context.Context, where string, arg interface{}) ([]assignment.StudentAssignment, error) {
	sas := make([]assignment.StudentAssignment, 0)
	q := `SELECT ` + studentAssignmentColumns + ` FROM students_assignments WHERE ` + where + ` ORDER BY date_due, id`
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &sas, q, arg); err != nil {
		return nil, errors.Wrap(err, "selecting student assignments")
	}
	return sas, nil
}

func (repo *studentAssignmentRepository) QueryStudentAssignmentsByStudent(
	ctx context.Context,
	studentID int,
) ([]assignment.StudentAssignment, error) {
	return repo.query(ctx, `student_id = $1`, studentID)
}

func (repo *studentAssignmentRepository) QueryStudentAssignmentsByAssignment(
	ctx context.Context,
	assignmentID int,
) ([]assignment.StudentAssignment, error) {
	return repo.query(ctx, `assignment_id = $1`, assignmentID)
}

func (repo *studentAssignmentRepository) get(ctx context.Context, id int, suffix string) (assignment.StudentAssignment, error) {
	var sa assignment.StudentAssignment
	q := `SELECT ` + studentAssignmentColumns + ` FROM students_assignments WHERE id = $1` + suffix
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &sa, q, id); err != nil {
		if notFound(err) {
			return assignment.StudentAssignment{}, assignment.ErrStudentAssignmentNotFound
		}
		return assignment.StudentAssignment{}, errors.Wrap(err, "selecting student assignment")
	}
	return sa, nil
}

func (repo *studentAssignmentRepository) GetStudentAssignment(ctx context.Context, id int) (assignment.StudentAssignment, error) {
	return repo.get(ctx, id, "")
}

func (repo *studentAssignmentRepository) GetStudentAssignmentForUpdate(
	ctx context.Context,
	id int,
) (assignment.StudentAssignment, error) {
	return repo.get(ctx, id, ` FOR UPDATE`)
}

func (repo *studentAssignmentRepository) UpdateStudentAssignment(
	ctx context.Context,
	id int,
	data core.Fields,
) (assignment.StudentAssignment, error) {
	setCols, values, err := core.PartialUpdate(data, studentAssignmentFields)
	if err != nil {
		return assignment.StudentAssignment{}, err
	}
	q := `UPDATE students_assignments SET ` + setCols + ` WHERE id = $` + placeholder(len(values)+1) + ` RETURNING ` + studentAssignmentColumns

	var sa assignment.StudentAssignment
	if err = executor(ctx, repo.db).QueryRowxContext(ctx, q, append(values, id)...).StructScan(&sa); err != nil {
		if notFound(err) {
			return assignment.StudentAssignment{}, assignment.ErrStudentAssignmentNotFound
		}
		return assignment.StudentAssignment{}, errors.Wrap(err, "updating student assignment")
	}
	return sa, nil
}

func (repo *studentAssignmentRepository) DeleteStudentAssignment(ctx context.Context, id int) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM students_assignments WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting student assignment")
	}
	return checkAffected(res, assignment.ErrStudentAssignmentNotFound)
}

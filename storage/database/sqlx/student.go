package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
)

const selectStudents = `SELECT
		s.id AS student_id,
		u.id AS user_id,
		s.teacher_id,
		s.grade,
		u.username,
		u.first_name,
		u.last_name,
		u.email,
		u.user_type_id
	FROM students AS s
	JOIN users AS u ON u.id = s.user_id`

var studentFields = map[string]string{
	"teacherID": "teacher_id",
}

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, userID, teacherID int, grade string) (int, error) {
	var id int
	q := `INSERT INTO students (user_id, teacher_id, grade) VALUES ($1, $2, $3) RETURNING id`
	if err := executor(ctx, repo.db).QueryRowxContext(ctx, q, userID, teacherID, grade).Scan(&id); err != nil {
		switch {
		case isPQError(err, uniqueViolation):
			return 0, student.ErrExists
		case isPQError(err, foreignKeyViolation):
			return 0, teacher.ErrNotFound
		}
		return 0, errors.Wrap(err, "inserting student")
	}
	return id, nil
}

func (repo *studentRepository) QueryStudents(ctx context.Context, scope student.Scope) ([]student.Student, error) {
	students := make([]student.Student, 0)
	q := selectStudents
	var args []interface{}
	if scope.TeacherID != 0 {
		q += ` WHERE s.teacher_id = $1`
		args = append(args, scope.TeacherID)
	}
	q += ` ORDER BY s.grade, s.id`
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &students, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return students, nil
}

func (repo *studentRepository) get(ctx context.Context, where string, arg interface{}) (student.Student, error) {
	var s student.Student
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &s, selectStudents+` WHERE `+where, arg); err != nil {
		if notFound(err) {
			return student.Student{}, student.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "selecting student")
	}
	return s, nil
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id int) (student.Student, error) {
	return repo.get(ctx, `s.id = $1`, id)
}

func (repo *studentRepository) GetStudentByUsername(ctx context.Context, username string) (student.Student, error) {
	return repo.get(ctx, `lower(u.username) = lower($1)`, username)
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, id int, data core.Fields) (student.Student, error) {
	setCols, values, err := core.PartialUpdate(data, studentFields)
	if err != nil {
		return student.Student{}, err
	}
	q := `UPDATE students SET ` + setCols + ` WHERE id = $` + placeholder(len(values)+1)

	res, err := executor(ctx, repo.db).ExecContext(ctx, q, append(values, id)...)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return student.Student{}, teacher.ErrNotFound
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if err = checkAffected(res, student.ErrNotFound); err != nil {
		return student.Student{}, err
	}
	return repo.GetStudentByID(ctx, id)
}

func (repo *studentRepository) DeleteStudent(ctx context.Context, id int) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return checkAffected(res, student.ErrNotFound)
}

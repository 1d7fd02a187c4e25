package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core/teacher"
)

const selectTeachers = `SELECT
		t.id AS teacher_id,
		u.id AS user_id,
		u.username,
		u.first_name,
		u.last_name,
		u.email,
		u.user_type_id
	FROM teachers AS t
	JOIN users AS u ON u.id = t.user_id`

type teacherRepository struct {
	db *sqlx.DB
}

var _ teacher.Repository = (*teacherRepository)(nil)

func NewTeacherRepository(db *sqlx.DB) teacher.Repository {
	return &teacherRepository{db: db}
}

func (repo *teacherRepository) CreateTeacher(ctx context.Context, userID int) (int, error) {
	var id int
	err := executor(ctx, repo.db).QueryRowxContext(ctx, `INSERT INTO teachers (user_id) VALUES ($1) RETURNING id`, userID).Scan(&id)
	if err != nil {
		if isPQError(err, uniqueViolation) {
			return 0, teacher.ErrExists
		}
		return 0, errors.Wrap(err, "inserting teacher")
	}
	return id, nil
}

func (repo *teacherRepository) QueryAllTeachers(ctx context.Context) ([]teacher.Teacher, error) {
	teachers := make([]teacher.Teacher, 0)
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &teachers, selectTeachers+` ORDER BY t.id`); err != nil {
		return nil, errors.Wrap(err, "selecting teachers")
	}
	return teachers, nil
}

func (repo *teacherRepository) get(ctx context.Context, where string, arg interface{}) (teacher.Teacher, error) {
	var t teacher.Teacher
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &t, selectTeachers+` WHERE `+where, arg); err != nil {
		if notFound(err) {
			return teacher.Teacher{}, teacher.ErrNotFound
		}
		return teacher.Teacher{}, errors.Wrap(err, "selecting teacher")
	}
	return t, nil
}

func (repo *teacherRepository) GetTeacherByID(ctx context.Context, id int) (teacher.Teacher, error) {
	return repo.get(ctx, `t.id = $1`, id)
}

func (repo *teacherRepository) GetTeacherByUsername(ctx context.Context, username string) (teacher.Teacher, error) {
	return repo.get(ctx, `lower(u.username) = lower($1)`, username)
}

func (repo *teacherRepository) DeleteTeacher(ctx context.Context, id int) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM teachers WHERE id = $1`, id)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return teacher.ErrHasStudents
		}
		return errors.Wrap(err, "deleting teacher")
	}
	return checkAffected(res, teacher.ErrNotFound)
}

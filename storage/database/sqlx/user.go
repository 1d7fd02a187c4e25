package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
)

const userColumns = `id, username, password, first_name, last_name, email, avatar_url, user_type_id, is_admin, join_at, last_login_at`

// userFields maps partial update fields to the columns of "users".
var userFields = map[string]string{
	"firstName":   "first_name",
	"lastName":    "last_name",
	"avatarURL":   "avatar_url",
	"lastLoginAt": "last_login_at",
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO users (username, password, first_name, last_name, email, avatar_url, user_type_id, is_admin, join_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + userColumns

	var created user.User
	err := executor(ctx, repo.db).QueryRowxContext(ctx, q,
		usr.Username,
		string(usr.PasswordHash),
		usr.FirstName,
		usr.LastName,
		usr.Email,
		usr.AvatarURL,
		int(usr.Role),
		usr.IsAdmin,
		usr.JoinAt,
	).StructScan(&created)
	if err != nil {
		if isPQError(err, uniqueViolation) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return created, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	users := make([]user.User, 0)
	q := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	if err := sqlx.SelectContext(ctx, executor(ctx, repo.db), &users, q); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}

func (repo *userRepository) get(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var usr user.User
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if err := sqlx.GetContext(ctx, executor(ctx, repo.db), &usr, q, arg); err != nil {
		if notFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	return repo.get(ctx, `id = $1`, id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.get(ctx, `lower(username) = lower($1)`, username)
}

func (repo *userRepository) UpdateUser(ctx context.Context, username string, data core.Fields) (user.User, error) {
	setCols, values, err := core.PartialUpdate(data, userFields)
	if err != nil {
		return user.User{}, err
	}
	q := `UPDATE users SET ` + setCols + ` WHERE lower(username) = lower($` + placeholder(len(values)+1) + `) RETURNING ` + userColumns

	var usr user.User
	if err = executor(ctx, repo.db).QueryRowxContext(ctx, q, append(values, username)...).StructScan(&usr); err != nil {
		if notFound(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

func (repo *userRepository) SetUserRole(ctx context.Context, id int, role user.Role) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `UPDATE users SET user_type_id = $1 WHERE id = $2`, int(role), id)
	if err != nil {
		return errors.Wrap(err, "updating user role")
	}
	return checkAffected(res, user.ErrNotFound)
}

func (repo *userRepository) DeleteUser(ctx context.Context, username string) error {
	res, err := executor(ctx, repo.db).ExecContext(ctx, `DELETE FROM users WHERE lower(username) = lower($1)`, username)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return user.ErrInUse
		}
		return errors.Wrap(err, "deleting user")
	}
	return checkAffected(res, user.ErrNotFound)
}

package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

// findUser returns the user matching username case-insensitively. The caller holds a lock.
func (db *DB) findUser(username string) (user.User, bool) {
	for _, usr := range db.users {
		if strings.EqualFold(usr.Username, username) {
			return usr, true
		}
	}
	return user.User{}, false
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.db.write(ctx, func() error {
		if _, ok := repo.db.findUser(usr.Username); ok {
			return user.ErrUsernameExists
		}
		usr.ID = repo.db.nextID("users")
		if usr.Role == 0 {
			usr.Role = user.RoleUnassigned
		}
		repo.db.users[usr.ID] = usr
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	_ = repo.db.read(func() error {
		users = make([]user.User, 0, len(repo.db.users))
		for _, usr := range repo.db.users {
			users = append(users, usr)
		}
		return nil
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var usr user.User
	err := repo.db.read(func() error {
		var ok bool
		if usr, ok = repo.db.users[id]; !ok {
			return user.ErrNotFound
		}
		return nil
	})
	return usr, err
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var usr user.User
	err := repo.db.read(func() error {
		var ok bool
		if usr, ok = repo.db.findUser(username); !ok {
			return user.ErrNotFound
		}
		return nil
	})
	return usr, err
}

func (repo *userRepository) UpdateUser(ctx context.Context, username string, data core.Fields) (user.User, error) {
	var usr user.User
	err := repo.db.write(ctx, func() error {
		var ok bool
		if usr, ok = repo.db.findUser(username); !ok {
			return user.ErrNotFound
		}
		for _, fld := range data {
			if err := setUserField(&usr, fld); err != nil {
				return err
			}
		}
		repo.db.users[usr.ID] = usr
		return nil
	})
	return usr, err
}

func setUserField(usr *user.User, fld core.Field) error {
	var ok bool
	switch fld.Name {
	case "firstName":
		usr.FirstName, ok = fld.Value.(string)
	case "lastName":
		usr.LastName, ok = fld.Value.(string)
	case "email":
		usr.Email, ok = fld.Value.(string)
	case "avatarURL":
		usr.AvatarURL, ok = fld.Value.(null.String)
	case "password":
		var hash string
		hash, ok = fld.Value.(string)
		usr.PasswordHash = []byte(hash)
	case "lastLoginAt":
		var t time.Time
		t, ok = fld.Value.(time.Time)
		usr.LastLoginAt = null.TimeFrom(t)
	}
	if !ok {
		return errors.Errorf("invalid user field %s: %v", fld.Name, fld.Value)
	}
	return nil
}

func (repo *userRepository) SetUserRole(ctx context.Context, id int, role user.Role) error {
	return repo.db.write(ctx, func() error {
		usr, ok := repo.db.users[id]
		if !ok {
			return user.ErrNotFound
		}
		usr.Role = role
		repo.db.users[id] = usr
		return nil
	})
}

func (repo *userRepository) DeleteUser(ctx context.Context, username string) error {
	return repo.db.write(ctx, func() error {
		usr, ok := repo.db.findUser(username)
		if !ok {
			return user.ErrNotFound
		}
		if t, ok := repo.db.teacherOfUser(usr.ID); ok {
			if repo.db.teacherHasStudents(t.ID) {
				return user.ErrInUse
			}
			repo.db.deleteTeacher(t.ID)
		}
		if s, ok := repo.db.studentOfUser(usr.ID); ok {
			repo.db.deleteStudent(s.ID)
		}
		delete(repo.db.users, usr.ID)
		return nil
	})
}

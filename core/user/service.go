package user

import (
	"context"
	"net/mail"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/homeschool/core"
)

var (
	// repository errors
	ErrNotFound       = errors.New("user not found")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInUse          = errors.New("user is still referenced")

	errInvalidCredentials = "Invalid username/password"
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		// UpdateUser applies the changed fields to the user and returns the updated row.
		UpdateUser(ctx context.Context, username string, data core.Fields) (User, error)
		SetUserRole(ctx context.Context, id int, role Role) error
		DeleteUser(ctx context.Context, username string) error
	}

	Service struct {
		conf     *core.Config
		tx       core.Transactor
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate

		dummyOnce sync.Once
		dummyHash []byte
	}
)

func NewService(
	conf *core.Config,
	tx core.Transactor,
	repo Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
) *Service {
	return &Service{
		conf:     conf,
		tx:       tx,
		repo:     repo,
		mailSvc:  mailSvc,
		validate: validate,
	}
}

func notFound(username string) error {
	return core.NewNotFoundError("No user: %s", username)
}

// Register validates nu, hashes its password and creates an unassigned User.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	usr := User{
		Username:  nu.Username,
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Role:      RoleUnassigned,
		IsAdmin:   nu.IsAdmin,
		JoinAt:    core.Now(),
	}
	usr.AvatarURL = null.NewString(nu.AvatarURL, nu.AvatarURL != "")
	if err := usr.SetPassword(nu.Password, svc.conf.BcryptCost); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.repo.GetUserByUsername(ctx, usr.Username); err == nil {
			return core.NewConflictError("Duplicate username: %s", usr.Username)
		} else if err != ErrNotFound {
			return errors.Wrap(err, "checking username")
		}

		created, err := svc.repo.CreateUser(ctx, usr)
		if err != nil {
			if err == ErrUsernameExists {
				return core.NewConflictError("Duplicate username: %s", usr.Username)
			}
			return errors.Wrap(err, "creating user")
		}
		usr = created
		return nil
	})
	if err != nil {
		return User{}, err
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FirstName + " " + usr.LastName, Address: usr.Email}},
		Subject:      "Welcome!",
		TemplateName: "welcome",
		TemplateData: usr,
	})
	return usr, nil
}

// Authenticate returns the User matching the credentials.
func (svc *Service) Authenticate(ctx context.Context, username, pwd string) (User, error) {
	username = core.CleanString(username, true /* lower */)
	usr, err := svc.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if err != ErrNotFound {
			return User{}, errors.Wrap(err, "finding user by username")
		}
		// compare anyway so a missing user costs as much as a wrong password
		_ = bcrypt.CompareHashAndPassword(svc.getDummyHash(), []byte(pwd))
		return User{}, core.NewUnauthorizedError(errInvalidCredentials)
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, core.NewUnauthorizedError(errInvalidCredentials)
	}
	return usr, nil
}

func (svc *Service) getDummyHash() []byte {
	svc.dummyOnce.Do(func() {
		svc.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-password"), svc.conf.BcryptCost)
	})
	return svc.dummyHash
}

// RecordLogin stamps the last login time of the User.
func (svc *Service) RecordLogin(ctx context.Context, username string) (User, error) {
	username = core.CleanString(username, true /* lower */)
	var data core.Fields
	data.Set("lastLoginAt", core.Now())
	usr, err := svc.repo.UpdateUser(ctx, username, data)
	if err != nil {
		if err == ErrNotFound {
			return User{}, notFound(username)
		}
		return User{}, errors.Wrap(err, "stamping last login")
	}
	return usr, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	users, err := svc.repo.QueryAllUsers(ctx)
	return users, errors.Wrap(err, "querying users")
}

func (svc *Service) Get(ctx context.Context, username string) (User, error) {
	username = core.CleanString(username, true /* lower */)
	usr, err := svc.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if err == ErrNotFound {
			return User{}, notFound(username)
		}
		return User{}, errors.Wrap(err, "finding user by username")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return User{}, core.NewNotFoundError("No user with id: %d", id)
		}
		return User{}, errors.Wrap(err, "finding user by id")
	}
	return usr, nil
}

// Update applies the non-nil fields of uu to the User.
func (svc *Service) Update(ctx context.Context, username string, uu UpdateUser) (User, error) {
	username = core.CleanString(username, true /* lower */)
	if err := uu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	var hash []byte
	if uu.Password != nil {
		var tmp User
		if err := tmp.SetPassword(*uu.Password, svc.conf.BcryptCost); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
		hash = tmp.PasswordHash
	}

	data := uu.fields(hash)
	if len(data) == 0 {
		return User{}, core.NewValidationError(core.ErrNoData)
	}
	usr, err := svc.repo.UpdateUser(ctx, username, data)
	if err != nil {
		if err == ErrNotFound {
			return User{}, notFound(username)
		}
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

// ResetPassword sets a new password for the User.
func (svc *Service) ResetPassword(ctx context.Context, username, pwd string) error {
	_, err := svc.Update(ctx, username, UpdateUser{Password: &pwd})
	return err
}

// Delete removes the User together with its Teacher or Student row.
func (svc *Service) Delete(ctx context.Context, username string) error {
	username = core.CleanString(username, true /* lower */)
	if err := svc.repo.DeleteUser(ctx, username); err != nil {
		switch err {
		case ErrNotFound:
			return notFound(username)
		case ErrInUse:
			return core.NewConflictError("Cannot delete %s: teacher still has students", username)
		}
		return errors.Wrap(err, "deleting user")
	}
	return nil
}

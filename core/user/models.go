package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/homeschool/core"
)

// Role is the role marker of a User. It agrees with the existence of its Teacher or Student row.
type Role int

const (
	RoleUnassigned Role = 1
	RoleTeacher    Role = 2
	RoleStudent    Role = 3
)

func (r Role) IsValid() bool {
	return r == RoleUnassigned || r == RoleTeacher || r == RoleStudent
}

func (r Role) String() string {
	switch r {
	case RoleTeacher:
		return "teacher"
	case RoleStudent:
		return "student"
	case RoleUnassigned:
		return "unassigned"
	default:
		return "unknown"
	}
}

type User struct {
	ID           int         `json:"id" db:"id"`
	Username     string      `json:"username" db:"username"`
	FirstName    string      `json:"firstName" db:"first_name"`
	LastName     string      `json:"lastName" db:"last_name"`
	Email        string      `json:"email" db:"email"`
	AvatarURL    null.String `json:"avatarURL" db:"avatar_url"`
	Role         Role        `json:"userTypeID" db:"user_type_id"`
	IsAdmin      bool        `json:"isAdmin" db:"is_admin"`
	PasswordHash []byte      `json:"-" db:"password"`
	JoinAt       time.Time   `json:"joinAt" db:"join_at"`            // UTC
	LastLoginAt  null.Time   `json:"lastLoginAt" db:"last_login_at"` // UTC
}

func (u *User) SetPassword(pwd string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username  string `json:"username" validate:"required,min=1,max=25,alphanum_"`
	Password  string `json:"password" validate:"required,max=72"`
	FirstName string `json:"firstName" validate:"required,max=30"`
	LastName  string `json:"lastName" validate:"required,max=30"`
	Email     string `json:"email" validate:"required,email,max=60"`
	AvatarURL string `json:"avatarURL" validate:"omitempty,url"`
	IsAdmin   bool   `json:"-"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.AvatarURL = core.CleanString(nu.AvatarURL)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Nil fields are left untouched.
type UpdateUser struct {
	FirstName *string `json:"firstName" validate:"omitempty,min=1,max=30"`
	LastName  *string `json:"lastName" validate:"omitempty,min=1,max=30"`
	Email     *string `json:"email" validate:"omitempty,email,max=60"`
	AvatarURL *string `json:"avatarURL" validate:"omitempty,url"`
	Password  *string `json:"password" validate:"omitempty,max=72"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(uu.FirstName, false)
	clean(uu.LastName, false)
	clean(uu.Email, true /* lower */)
	clean(uu.AvatarURL, false)
	return validate.Struct(uu)
}

// fields returns the changed fields in declaration order. hash replaces the raw password.
func (uu UpdateUser) fields(hash []byte) core.Fields {
	var f core.Fields
	if uu.FirstName != nil {
		f.Set("firstName", *uu.FirstName)
	}
	if uu.LastName != nil {
		f.Set("lastName", *uu.LastName)
	}
	if uu.Email != nil {
		f.Set("email", *uu.Email)
	}
	if uu.AvatarURL != nil {
		f.Set("avatarURL", null.NewString(*uu.AvatarURL, *uu.AvatarURL != ""))
	}
	if hash != nil {
		f.Set("password", string(hash))
	}
	return f
}

package student

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/user"
)

// Student is the learning extension of a User, joined with its public profile.
type Student struct {
	StudentID int       `json:"studentID" db:"student_id"`
	UserID    int       `json:"userID" db:"user_id"`
	TeacherID int       `json:"teacherID" db:"teacher_id"`
	Grade     string    `json:"grade" db:"grade"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"firstName" db:"first_name"`
	LastName  string    `json:"lastName" db:"last_name"`
	Email     string    `json:"email" db:"email"`
	Role      user.Role `json:"userTypeID" db:"user_type_id"`
}

// NewStudent contains information needed to make a User a Student.
type NewStudent struct {
	Username  string `json:"username" validate:"required"`
	TeacherID int    `json:"teacherID" validate:"required,min=1"`
	Grade     string `json:"grade" validate:"required,max=10"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Username = core.CleanString(ns.Username, true /* lower */)
	ns.Grade = core.CleanString(ns.Grade)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
type UpdateStudent struct {
	TeacherID *int    `json:"teacherID" validate:"omitempty,min=1"`
	Grade     *string `json:"grade" validate:"omitempty,min=1,max=10"`
}

// UnmarshalJSON rejects explicit nulls, which would otherwise read as "unchanged".
func (us *UpdateStudent) UnmarshalJSON(b []byte) error {
	type alias UpdateStudent
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, k := range []string{"teacherID", "grade"} {
		if v, ok := raw[k]; ok && string(v) == "null" {
			return core.NewValidationError(errors.Errorf("%s cannot be null", k))
		}
	}
	return json.Unmarshal(b, (*alias)(us))
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.Grade != nil {
		*us.Grade = core.CleanString(*us.Grade)
	}
	return validate.Struct(us)
}

func (us UpdateStudent) fields() core.Fields {
	var f core.Fields
	if us.TeacherID != nil {
		f.Set("teacherID", *us.TeacherID)
	}
	if us.Grade != nil {
		f.Set("grade", *us.Grade)
	}
	return f
}

// Scope selects the Students returned by Service.QueryAll.
type Scope struct {
	TeacherID int // 0 selects every Student
}

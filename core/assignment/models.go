package assignment

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/homeschool/core"
)

type Subject struct {
	Code string `json:"code" db:"code"`
	Name string `json:"name" db:"name"`
}

type Assignment struct {
	ID           int    `json:"id" db:"id"`
	Title        string `json:"title" db:"title"`
	SubjectCode  string `json:"subjectCode" db:"subject_code"`
	Instructions string `json:"instructions" db:"instructions"`
	TeacherID    int    `json:"teacherID" db:"teacher_id"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title        string `json:"title" validate:"required,max=100"`
	SubjectCode  string `json:"subjectCode" validate:"required,max=10"`
	Instructions string `json:"instructions" validate:"required"`
	TeacherID    int    `json:"teacherID" validate:"required,min=1"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.SubjectCode = core.CleanString(na.SubjectCode)
	na.Instructions = core.CleanString(na.Instructions)
	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
type UpdateAssignment struct {
	Title        *string `json:"title" validate:"omitempty,min=1,max=100"`
	SubjectCode  *string `json:"subjectCode" validate:"omitempty,min=1,max=10"`
	Instructions *string `json:"instructions" validate:"omitempty,min=1"`
}

func (ua *UpdateAssignment) UnmarshalJSON(b []byte) error {
	type alias UpdateAssignment
	if _, err := presentKeys(b, "title", "subjectCode", "instructions"); err != nil {
		return err
	}
	return json.Unmarshal(b, (*alias)(ua))
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	for _, s := range []*string{ua.Title, ua.SubjectCode, ua.Instructions} {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	return validate.Struct(ua)
}

func (ua UpdateAssignment) fields() core.Fields {
	var f core.Fields
	if ua.Title != nil {
		f.Set("title", *ua.Title)
	}
	if ua.SubjectCode != nil {
		f.Set("subjectCode", *ua.SubjectCode)
	}
	if ua.Instructions != nil {
		f.Set("instructions", *ua.Instructions)
	}
	return f
}

// StudentAssignment is an Assignment given to one Student.
// Its lifecycle is Assigned -> Submitted -> Approved; each step is a timestamp and boolean pair.
type StudentAssignment struct {
	ID            int       `json:"id" db:"id"`
	AssignmentID  int       `json:"assignmentID" db:"assignment_id"`
	StudentID     int       `json:"studentID" db:"student_id"`
	DateAssigned  time.Time `json:"dateAssigned" db:"date_assigned"`
	DateDue       time.Time `json:"dateDue" db:"date_due"`
	DateSubmitted null.Time `json:"dateSubmitted" db:"date_submitted"`
	DateApproved  null.Time `json:"dateApproved" db:"date_approved"`
	IsSubmitted   bool      `json:"isSubmitted" db:"is_submitted"`
	IsApproved    bool      `json:"isApproved" db:"is_approved"`
}

// NewStudentAssignment contains information needed to assign an Assignment to a Student.
type NewStudentAssignment struct {
	AssignmentID int       `json:"-"`
	StudentID    int       `json:"studentID"`
	DateDue      time.Time `json:"dateDue" validate:"required"`
}

type assignedEmailData struct {
	ID        int
	Username  string
	FirstName string
	Title     string
	DateDue   time.Time
}

// UpdateStudentAssignment defines what information may be provided to modify an existing StudentAssignment.
// Only the keys present in the decoded JSON are changed; null clears a timestamp.
type UpdateStudentAssignment struct {
	DateDue       null.Time `json:"dateDue"`
	DateSubmitted null.Time `json:"dateSubmitted"`
	IsSubmitted   null.Bool `json:"isSubmitted"`
	DateApproved  null.Time `json:"dateApproved"`
	IsApproved    null.Bool `json:"isApproved"`

	present map[string]bool
}

var studentAssignmentKeys = []string{"dateDue", "dateSubmitted", "isSubmitted", "dateApproved", "isApproved"}

func (usa *UpdateStudentAssignment) UnmarshalJSON(b []byte) error {
	type alias UpdateStudentAssignment
	present, err := presentKeys(b, "dateDue", "isSubmitted", "isApproved")
	if err != nil {
		return err
	}
	if err = json.Unmarshal(b, (*alias)(usa)); err != nil {
		return err
	}
	usa.present = present
	return nil
}

// SetsApproval tells if the update touches the approval pair.
func (usa UpdateStudentAssignment) SetsApproval() bool {
	return usa.present["isApproved"] || usa.present["dateApproved"]
}

func (usa UpdateStudentAssignment) fields() core.Fields {
	var f core.Fields
	for _, k := range studentAssignmentKeys {
		if !usa.present[k] {
			continue
		}
		switch k {
		case "dateDue":
			f.Set(k, usa.DateDue.Time)
		case "dateSubmitted":
			f.Set(k, usa.DateSubmitted)
		case "isSubmitted":
			f.Set(k, usa.IsSubmitted.Bool)
		case "dateApproved":
			f.Set(k, usa.DateApproved)
		case "isApproved":
			f.Set(k, usa.IsApproved.Bool)
		}
	}
	return f
}

// presentKeys returns the keys of the JSON object b and fails if one of notNull is null.
func presentKeys(b []byte, notNull ...string) (map[string]bool, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, err
	}
	for _, k := range notNull {
		if v, ok := raw[k]; ok && string(v) == "null" {
			return nil, core.NewValidationError(errors.Errorf("%s cannot be null", k))
		}
	}
	present := make(map[string]bool, len(raw))
	for k := range raw {
		present[k] = true
	}
	return present, nil
}

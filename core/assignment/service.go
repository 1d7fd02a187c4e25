package assignment

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/homeschool/core"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
)

var (
	// repository errors
	ErrNotFound                  = errors.New("assignment not found")
	ErrStudentAssignmentNotFound = errors.New("student assignment not found")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, na NewAssignment) (Assignment, error)
		QueryAssignmentsByTeacher(ctx context.Context, teacherID int) ([]Assignment, error)
		GetAssignment(ctx context.Context, id int) (Assignment, error)
		UpdateAssignment(ctx context.Context, id int, data core.Fields) (Assignment, error)
		DeleteAssignment(ctx context.Context, id int) error
	}

	SubjectRepository interface {
		QueryAllSubjects(ctx context.Context) ([]Subject, error)
		SubjectExists(ctx context.Context, code string) (bool, error)
	}

	StudentAssignmentRepository interface {
		CreateStudentAssignment(ctx context.Context, sa StudentAssignment) (StudentAssignment, error)
		// the query methods order by due date
		QueryStudentAssignmentsByStudent(ctx context.Context, studentID int) ([]StudentAssignment, error)
		QueryStudentAssignmentsByAssignment(ctx context.Context, assignmentID int) ([]StudentAssignment, error)
		GetStudentAssignment(ctx context.Context, id int) (StudentAssignment, error)
		// GetStudentAssignmentForUpdate also locks the row until the end of the transaction.
		GetStudentAssignmentForUpdate(ctx context.Context, id int) (StudentAssignment, error)
		UpdateStudentAssignment(ctx context.Context, id int, data core.Fields) (StudentAssignment, error)
		DeleteStudentAssignment(ctx context.Context, id int) error
	}

	Service struct {
		tx                 core.Transactor
		repo               Repository
		subjects           SubjectRepository
		studentAssignments StudentAssignmentRepository
		teachers           teacher.Repository
		students           student.Repository
		mailSvc            core.EmailService
		validate           *validator.Validate
	}

	// Repositories groups the repositories the Service reads and writes.
	Repositories struct {
		Assignments        Repository
		Subjects           SubjectRepository
		StudentAssignments StudentAssignmentRepository
		Teachers           teacher.Repository
		Students           student.Repository
	}
)

func NewService(tx core.Transactor, repos Repositories, mailSvc core.EmailService, validate *validator.Validate) *Service {
	return &Service{
		tx:                 tx,
		repo:               repos.Assignments,
		subjects:           repos.Subjects,
		studentAssignments: repos.StudentAssignments,
		teachers:           repos.Teachers,
		students:           repos.Students,
		mailSvc:            mailSvc,
		validate:           validate,
	}
}

func (svc *Service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	subjects, err := svc.subjects.QueryAllSubjects(ctx)
	return subjects, errors.Wrap(err, "querying subjects")
}

func (svc *Service) checkSubject(ctx context.Context, code string) error {
	ok, err := svc.subjects.SubjectExists(ctx, code)
	if err != nil {
		return errors.Wrap(err, "checking subject code")
	}
	if !ok {
		return core.NewNotFoundError("No subject code: %s", code)
	}
	return nil
}

// Create validates na and creates the Assignment of its Teacher.
func (svc *Service) Create(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}

	var a Assignment
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := svc.teachers.GetTeacherByID(ctx, na.TeacherID); err != nil {
			if err == teacher.ErrNotFound {
				return core.NewNotFoundError("No teacher with id: %d", na.TeacherID)
			}
			return errors.Wrap(err, "finding teacher by id")
		}
		if err := svc.checkSubject(ctx, na.SubjectCode); err != nil {
			return err
		}

		var err error
		a, err = svc.repo.CreateAssignment(ctx, na)
		return errors.Wrap(err, "creating assignment")
	})
	return a, err
}

// QueryByTeacher returns the Assignments authored by the Teacher.
func (svc *Service) QueryByTeacher(ctx context.Context, username string) ([]Assignment, error) {
	username = core.CleanString(username, true /* lower */)
	t, err := svc.teachers.GetTeacherByUsername(ctx, username)
	if err != nil {
		if err == teacher.ErrNotFound {
			return nil, core.NewNotFoundError("No teacher: %s", username)
		}
		return nil, errors.Wrap(err, "finding teacher by username")
	}
	assignments, err := svc.repo.QueryAssignmentsByTeacher(ctx, t.TeacherID)
	return assignments, errors.Wrap(err, "querying assignments")
}

func (svc *Service) Get(ctx context.Context, id int) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return Assignment{}, core.NewNotFoundError("No assignment: %d", id)
		}
		return Assignment{}, errors.Wrap(err, "finding assignment")
	}
	return a, nil
}

// Update applies the non-nil fields of ua. A new subject code must exist.
func (svc *Service) Update(ctx context.Context, id int, ua UpdateAssignment) (Assignment, error) {
	if err := ua.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	data := ua.fields()
	if len(data) == 0 {
		return Assignment{}, core.NewValidationError(core.ErrNoData)
	}

	var a Assignment
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		if ua.SubjectCode != nil {
			if err := svc.checkSubject(ctx, *ua.SubjectCode); err != nil {
				return err
			}
		}

		var err error
		a, err = svc.repo.UpdateAssignment(ctx, id, data)
		if err != nil {
			if err == ErrNotFound {
				return core.NewNotFoundError("No assignment: %d", id)
			}
			return errors.Wrap(err, "updating assignment")
		}
		return nil
	})
	return a, err
}

// Delete removes the Assignment and every StudentAssignment made from it.
func (svc *Service) Delete(ctx context.Context, id int) error {
	if err := svc.repo.DeleteAssignment(ctx, id); err != nil {
		if err == ErrNotFound {
			return core.NewNotFoundError("No assignment: %d", id)
		}
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

// Assign gives the Assignment to the Student and emails them.
func (svc *Service) Assign(ctx context.Context, nsa NewStudentAssignment) (StudentAssignment, error) {
	if err := svc.validate.Struct(nsa); err != nil {
		return StudentAssignment{}, err
	}

	var (
		sa  StudentAssignment
		a   Assignment
		stu student.Student
	)
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		if a, err = svc.repo.GetAssignment(ctx, nsa.AssignmentID); err != nil {
			if err == ErrNotFound {
				return core.NewNotFoundError("No assignment with id: %d", nsa.AssignmentID)
			}
			return errors.Wrap(err, "finding assignment")
		}
		if stu, err = svc.students.GetStudentByID(ctx, nsa.StudentID); err != nil {
			if err == student.ErrNotFound {
				return core.NewNotFoundError("No student with id: %d", nsa.StudentID)
			}
			return errors.Wrap(err, "finding student by id")
		}

		sa, err = svc.studentAssignments.CreateStudentAssignment(ctx, StudentAssignment{
			AssignmentID: nsa.AssignmentID,
			StudentID:    nsa.StudentID,
			DateAssigned: core.Now(),
			DateDue:      nsa.DateDue.UTC(),
		})
		return errors.Wrap(err, "creating student assignment")
	})
	if err != nil {
		return StudentAssignment{}, err
	}

	if stu.Email != "" {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: stu.FirstName + " " + stu.LastName, Address: stu.Email}},
			Subject:      "New assignment: " + a.Title,
			TemplateName: "assignment",
			TemplateData: assignedEmailData{
				ID:        sa.ID,
				Username:  stu.Username,
				FirstName: stu.FirstName,
				Title:     a.Title,
				DateDue:   sa.DateDue,
			},
		})
	}
	return sa, nil
}

// QueryByStudent returns the StudentAssignments of the Student.
func (svc *Service) QueryByStudent(ctx context.Context, username string) ([]StudentAssignment, error) {
	username = core.CleanString(username, true /* lower */)
	stu, err := svc.students.GetStudentByUsername(ctx, username)
	if err != nil {
		if err == student.ErrNotFound {
			return nil, core.NewNotFoundError("No student: %s", username)
		}
		return nil, errors.Wrap(err, "finding student by username")
	}
	sas, err := svc.studentAssignments.QueryStudentAssignmentsByStudent(ctx, stu.StudentID)
	return sas, errors.Wrap(err, "querying student assignments")
}

// QueryByAssignment returns the StudentAssignments made from the Assignment.
func (svc *Service) QueryByAssignment(ctx context.Context, id int) ([]StudentAssignment, error) {
	if _, err := svc.repo.GetAssignment(ctx, id); err != nil {
		if err == ErrNotFound {
			return nil, core.NewNotFoundError("No assignment: %d", id)
		}
		return nil, errors.Wrap(err, "finding assignment")
	}
	sas, err := svc.studentAssignments.QueryStudentAssignmentsByAssignment(ctx, id)
	return sas, errors.Wrap(err, "querying student assignments")
}

func studentAssignmentNotFound(id int) error {
	return core.NewNotFoundError("No student assignment: %d", id)
}

func (svc *Service) GetStudentAssignment(ctx context.Context, id int) (StudentAssignment, error) {
	sa, err := svc.studentAssignments.GetStudentAssignment(ctx, id)
	if err != nil {
		if err == ErrStudentAssignmentNotFound {
			return StudentAssignment{}, studentAssignmentNotFound(id)
		}
		return StudentAssignment{}, errors.Wrap(err, "finding student assignment")
	}
	return sa, nil
}

// UpdateStudentAssignment applies the present fields of usa.
// Timestamp and boolean pairs are written as given; combinations are not checked.
func (svc *Service) UpdateStudentAssignment(ctx context.Context, id int, usa UpdateStudentAssignment) (StudentAssignment, error) {
	data := usa.fields()
	if len(data) == 0 {
		return StudentAssignment{}, core.NewValidationError(core.ErrNoData)
	}
	sa, err := svc.studentAssignments.UpdateStudentAssignment(ctx, id, data)
	if err != nil {
		if err == ErrStudentAssignmentNotFound {
			return StudentAssignment{}, studentAssignmentNotFound(id)
		}
		return StudentAssignment{}, errors.Wrap(err, "updating student assignment")
	}
	return sa, nil
}

// ToggleSubmit flips the submission state: it either clears dateSubmitted or stamps it with the current time.
func (svc *Service) ToggleSubmit(ctx context.Context, id int) (StudentAssignment, error) {
	var sa StudentAssignment
	err := svc.tx.WithinTx(ctx, func(ctx context.Context) error {
		curr, err := svc.studentAssignments.GetStudentAssignmentForUpdate(ctx, id)
		if err != nil {
			if err == ErrStudentAssignmentNotFound {
				return core.NewNotFoundError("Student Assignment %d not found.", id)
			}
			return errors.Wrap(err, "finding student assignment")
		}

		var data core.Fields
		if curr.IsSubmitted {
			data.Set("dateSubmitted", null.Time{})
			data.Set("isSubmitted", false)
		} else {
			data.Set("dateSubmitted", null.TimeFrom(core.Now()))
			data.Set("isSubmitted", true)
		}
		sa, err = svc.studentAssignments.UpdateStudentAssignment(ctx, id, data)
		return errors.Wrap(err, "toggling submission")
	})
	return sa, err
}

func (svc *Service) DeleteStudentAssignment(ctx context.Context, id int) error {
	if err := svc.studentAssignments.DeleteStudentAssignment(ctx, id); err != nil {
		if err == ErrStudentAssignmentNotFound {
			return studentAssignmentNotFound(id)
		}
		return errors.Wrap(err, "deleting student assignment")
	}
	return nil
}

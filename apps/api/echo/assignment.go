package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/homeschool/core/assignment"
	"github.com/trezcool/homeschool/core/student"
	"github.com/trezcool/homeschool/core/teacher"
)

type assignmentApi struct {
	svc      *assignment.Service
	students *student.Service
	teachers *teacher.Service
}

func registerAssignmentAPI(app *echo.Echo, svc *assignment.Service, students *student.Service, teachers *teacher.Service) {
	api := assignmentApi{svc: svc, students: students, teachers: teachers}
	author := authorMiddleware(svc, teachers, false)
	ownsWork := studentAssignmentMiddleware(svc, students, teachers, true)
	assignedWork := studentAssignmentMiddleware(svc, students, teachers, false)

	app.GET("/subjects", api.querySubjects, loggedInMiddleware)

	g := app.Group("/assignments")
	g.POST("", api.create, teacherMiddleware)
	g.GET("/:username", api.queryByTeacher, correctUserMiddleware)
	g.GET("/:username/:id", api.retrieve, correctUserMiddleware, authorMiddleware(svc, teachers, true))
	g.PATCH("/:username/:id", api.update, correctUserMiddleware, teacherMiddleware, author)
	g.DELETE("/:username/:id", api.destroy, correctUserMiddleware, teacherMiddleware, author)

	sg := app.Group("/studentAssignments")
	sg.GET("/:username", api.queryByStudent, correctUserMiddleware)
	sg.GET("/:username/:id", api.retrieveStudentAssignment, correctUserMiddleware, ownsWork)
	sg.PATCH("/:username/:id", api.updateStudentAssignment, correctUserMiddleware, ownsWork)
	sg.POST("/:username/:id", api.assign, correctUserMiddleware, teacherMiddleware)
	sg.POST("/:username/:id/toggle-submit", api.toggleSubmit, correctUserMiddleware, ownsWork)
	sg.DELETE("/:username/:id", api.destroyStudentAssignment, teacherMiddleware, assignedWork)
}

func contextStudentAssignment(ctx echo.Context) (assignment.StudentAssignment, error) {
	sa, ok := ctx.Get(contextStudentAssignmentKey).(assignment.StudentAssignment)
	if !ok {
		return assignment.StudentAssignment{}, errors.New("student assignment not found in echo.Context")
	}
	return sa, nil
}

type (
	SubjectsResponse struct {
		Subjects []assignment.Subject `json:"subjects"`
	}

	AssignmentResponse struct {
		Assignment assignment.Assignment `json:"assignment"`
	}

	AssignmentsResponse struct {
		Assignments []assignment.Assignment `json:"assignments"`
	}

	// AssignmentDetail is an Assignment with the StudentAssignments made from it.
	AssignmentDetail struct {
		assignment.Assignment
		StudentAssignments []assignment.StudentAssignment `json:"studentAssignments"`
	}

	AssignmentDetailResponse struct {
		Assignment AssignmentDetail `json:"assignment"`
	}

	StudentAssignmentResponse struct {
		StudentAssignment assignment.StudentAssignment `json:"studentAssignment"`
	}

	StudentAssignmentsResponse struct {
		StudentAssignments []assignment.StudentAssignment `json:"studentAssignments"`
	}
)

// Handlers

func (api *assignmentApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, SubjectsResponse{Subjects: subjects})
}

// create makes an Assignment authored by the calling Teacher.
func (api *assignmentApi) create(ctx echo.Context) error {
	var data assignment.NewAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssignment")
	}

	t, err := contextTeacher(ctx, api.teachers)
	if err != nil {
		return err
	}
	if data.TeacherID == 0 {
		data.TeacherID = t.TeacherID
	}
	if data.TeacherID != t.TeacherID {
		return errUnauthorized
	}

	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assignment")
	}
	return ctx.JSON(http.StatusCreated, AssignmentResponse{Assignment: a})
}

func (api *assignmentApi) queryByTeacher(ctx echo.Context) error {
	assignments, err := api.svc.QueryByTeacher(ctx.Request().Context(), ctx.Param("username"))
	if err != nil {
		return errors.Wrap(err, "querying assignments")
	}
	return ctx.JSON(http.StatusOK, AssignmentsResponse{Assignments: assignments})
}

func (api *assignmentApi) retrieve(ctx echo.Context) error {
	a, ok := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	if !ok {
		return errors.New("assignment not found in echo.Context")
	}
	sas, err := api.svc.QueryByAssignment(ctx.Request().Context(), a.ID)
	if err != nil {
		return errors.Wrap(err, "querying student assignments")
	}
	return ctx.JSON(http.StatusOK, AssignmentDetailResponse{
		Assignment: AssignmentDetail{Assignment: a, StudentAssignments: sas},
	})
}

func (api *assignmentApi) update(ctx echo.Context) error {
	a, ok := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	if !ok {
		return errors.New("assignment not found in echo.Context")
	}
	var data assignment.UpdateAssignment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAssignment")
	}
	a, err := api.svc.Update(ctx.Request().Context(), a.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return ctx.JSON(http.StatusOK, AssignmentResponse{Assignment: a})
}

func (api *assignmentApi) destroy(ctx echo.Context) error {
	a, ok := ctx.Get(contextAssignmentKey).(assignment.Assignment)
	if !ok {
		return errors.New("assignment not found in echo.Context")
	}
	if err := api.svc.Delete(ctx.Request().Context(), a.ID); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: a.ID})
}

func (api *assignmentApi) queryByStudent(ctx echo.Context) error {
	sas, err := api.svc.QueryByStudent(ctx.Request().Context(), ctx.Param("username"))
	if err != nil {
		return errors.Wrap(err, "querying student assignments")
	}
	return ctx.JSON(http.StatusOK, StudentAssignmentsResponse{StudentAssignments: sas})
}

func (api *assignmentApi) retrieveStudentAssignment(ctx echo.Context) error {
	sa, err := contextStudentAssignment(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, StudentAssignmentResponse{StudentAssignment: sa})
}

// updateStudentAssignment patches the StudentAssignment. Only staff may touch its approval.
func (api *assignmentApi) updateStudentAssignment(ctx echo.Context) error {
	sa, err := contextStudentAssignment(ctx)
	if err != nil {
		return err
	}
	var data assignment.UpdateStudentAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStudentAssignment")
	}
	if data.SetsApproval() && !isStaff(ctx) {
		return errUnauthorized
	}
	sa, err = api.svc.UpdateStudentAssignment(ctx.Request().Context(), sa.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating student assignment")
	}
	return ctx.JSON(http.StatusOK, StudentAssignmentResponse{StudentAssignment: sa})
}

// assign gives the Assignment of the :id param to one of the calling Teacher's Students.
func (api *assignmentApi) assign(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	t, err := contextTeacher(ctx, api.teachers)
	if err != nil {
		return err
	}
	var data assignment.NewStudentAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudentAssignment")
	}
	data.AssignmentID = id

	reqCtx := ctx.Request().Context()
	s, err := api.students.GetByID(reqCtx, data.StudentID)
	if err != nil {
		return errors.Wrap(err, "finding student")
	}
	if s.TeacherID != t.TeacherID {
		return errUnauthorized
	}

	sa, err := api.svc.Assign(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "assigning")
	}
	return ctx.JSON(http.StatusCreated, StudentAssignmentResponse{StudentAssignment: sa})
}

func (api *assignmentApi) toggleSubmit(ctx echo.Context) error {
	sa, err := contextStudentAssignment(ctx)
	if err != nil {
		return err
	}
	sa, err = api.svc.ToggleSubmit(ctx.Request().Context(), sa.ID)
	if err != nil {
		return errors.Wrap(err, "toggling submission")
	}
	return ctx.JSON(http.StatusOK, StudentAssignmentResponse{StudentAssignment: sa})
}

func (api *assignmentApi) destroyStudentAssignment(ctx echo.Context) error {
	sa, err := contextStudentAssignment(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteStudentAssignment(ctx.Request().Context(), sa.ID); err != nil {
		return errors.Wrap(err, "deleting student assignment")
	}
	return ctx.JSON(http.StatusOK, DeletedResponse{Deleted: sa.ID})
}

package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/auth"
	"github.com/phinguyen111/studytime/internal/infrastructure/validate"
)

// HeartbeatPost track-heartbeat request body. CourseID also binds the legacy
// langId field some clients still send.
type HeartbeatPost struct {
	CourseID string `json:"courseId"`
	LangID   string `json:"langId"`
	LessonID string `json:"lessonId" validate:"required"`
}

type ProgressHandler struct {
	progressUseCase domain.ProgressUseCase
	jwtUtil         *auth.JWTUtil
	validator       validate.Validator
}

func NewProgressHandler(
	ProgressUseCase domain.ProgressUseCase,
	JWTUtil *auth.JWTUtil,
	Validator validate.Validator,
) *ProgressHandler {
	handler := &ProgressHandler{ProgressUseCase, JWTUtil, Validator}
	return handler
}

// HandleTrackHeartbeat credit study time for the authenticated caller
func (ph *ProgressHandler) HandleTrackHeartbeat(c echo.Context) (err error) {
	user := ph.jwtUtil.ContextUser(c)

	post := new(HeartbeatPost)
	if err = c.Bind(post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	if post.CourseID == "" {
		post.CourseID = post.LangID
	}

	// validation
	if fieldErrors := ph.validator.Empty("courseId", post.CourseID); fieldErrors != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", fieldErrors))
	}
	if fieldErrors := ph.validator.Empty("lessonId", post.LessonID); fieldErrors != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", fieldErrors))
	}

	result, err := ph.progressUseCase.TrackHeartbeat(c.Request().Context(), user, post.CourseID, post.LessonID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

// HandleGetCourseProgress the caller's own completion and time stats
func (ph *ProgressHandler) HandleGetCourseProgress(c echo.Context) (err error) {
	user := ph.jwtUtil.ContextUser(c)
	courseID := c.Param("courseId")

	progress, err := ph.progressUseCase.GetCourseProgress(c.Request().Context(), user, courseID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, progress)
}

// HandleCompleteLesson mark a lesson as completed for the caller
func (ph *ProgressHandler) HandleCompleteLesson(c echo.Context) (err error) {
	user := ph.jwtUtil.ContextUser(c)
	courseID := c.Param("courseId")

	post := new(HeartbeatPost)
	if err = c.Bind(post); err != nil {
		internal := err.(*echo.HTTPError).Internal
		return c.JSON(http.StatusUnprocessableEntity,
			NewRESTStandardError(http.StatusUnprocessableEntity, internal.Error()))
	}
	if fieldErrors := ph.validator.Empty("lessonId", post.LessonID); fieldErrors != nil {
		return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate fields", fieldErrors))
	}

	if err := ph.progressUseCase.CompleteLesson(c.Request().Context(), user, courseID, post.LessonID); err != nil {
		if err == domain.ErrLessonNotInCourse {
			return c.JSON(http.StatusBadRequest, NewRESTStandardError(http.StatusBadRequest, err.Error()))
		}
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

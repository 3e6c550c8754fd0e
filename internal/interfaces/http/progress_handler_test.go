package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/auth"
	"github.com/phinguyen111/studytime/internal/infrastructure/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProgressUseCase struct {
	result   *domain.HeartbeatResult
	courseID string
	lessonID string
}

func (s *stubProgressUseCase) TrackHeartbeat(ctx context.Context, user *domain.UserModel, courseID, lessonID string) (*domain.HeartbeatResult, error) {
	s.courseID = courseID
	s.lessonID = lessonID
	return s.result, nil
}

func (s *stubProgressUseCase) GetCourseProgress(ctx context.Context, user *domain.UserModel, courseID string) (*domain.CourseProgress, error) {
	return &domain.CourseProgress{CourseID: courseID, TotalLessons: 10}, nil
}

func (s *stubProgressUseCase) CompleteLesson(ctx context.Context, user *domain.UserModel, courseID, lessonID string) error {
	if lessonID == "other-01" {
		return domain.ErrLessonNotInCourse
	}
	return nil
}

func newProgressTestContext(t *testing.T, method, target, body string) (echo.Context, *httptest.ResponseRecorder, *ProgressHandler, *stubProgressUseCase) {
	t.Helper()
	app := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c := app.NewContext(req, rec)

	ju := auth.NewJWTUtil("HS256", "test-secret", "app_token", time.Hour)
	ju.SetContextToken(c, &auth.AppTokenClaims{
		UID:   "u-1",
		Name:  "alice",
		Email: "alice@example.com",
		Role:  domain.RoleUser,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: time.Now().Add(time.Hour).Unix(),
		},
	})

	stub := &stubProgressUseCase{result: &domain.HeartbeatResult{AddedSeconds: 16, TotalLessonSeconds: 16}}
	handler := NewProgressHandler(stub, ju, validate.NewValidator())
	return c, rec, handler, stub
}

func TestHandleTrackHeartbeat(t *testing.T) {
	c, rec, handler, stub := newProgressTestContext(t, http.MethodPost, "/api/v1/progress/track-heartbeat",
		`{"courseId":"html","lessonId":"html-01"}`)

	require.NoError(t, handler.HandleTrackHeartbeat(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "html", stub.courseID)
	assert.Equal(t, "html-01", stub.lessonID)

	var result domain.HeartbeatResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.EqualValues(t, 16, result.AddedSeconds)
	assert.EqualValues(t, 16, result.TotalLessonSeconds)
}

func TestHandleTrackHeartbeatAcceptsLangIDAlias(t *testing.T) {
	c, rec, handler, stub := newProgressTestContext(t, http.MethodPost, "/api/v1/progress/track-heartbeat",
		`{"langId":"html","lessonId":"html-01"}`)

	require.NoError(t, handler.HandleTrackHeartbeat(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "html", stub.courseID)
}

func TestHandleTrackHeartbeatMissingCourse(t *testing.T) {
	c, rec, handler, _ := newProgressTestContext(t, http.MethodPost, "/api/v1/progress/track-heartbeat",
		`{"lessonId":"html-01"}`)

	require.NoError(t, handler.HandleTrackHeartbeat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTrackHeartbeatMissingLesson(t *testing.T) {
	c, rec, handler, _ := newProgressTestContext(t, http.MethodPost, "/api/v1/progress/track-heartbeat",
		`{"courseId":"html"}`)

	require.NoError(t, handler.HandleTrackHeartbeat(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetCourseProgress(t *testing.T) {
	c, rec, handler, _ := newProgressTestContext(t, http.MethodGet, "/api/v1/progress/html", "")
	c.SetParamNames("courseId")
	c.SetParamValues("html")

	require.NoError(t, handler.HandleGetCourseProgress(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var progress domain.CourseProgress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &progress))
	assert.Equal(t, "html", progress.CourseID)
	assert.Equal(t, 10, progress.TotalLessons)
}

func TestHandleCompleteLesson(t *testing.T) {
	c, rec, handler, _ := newProgressTestContext(t, http.MethodPut, "/api/v1/progress/html/complete",
		`{"lessonId":"html-01"}`)
	c.SetParamNames("courseId")
	c.SetParamValues("html")

	require.NoError(t, handler.HandleCompleteLesson(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandleCompleteLessonForeignLesson(t *testing.T) {
	c, rec, handler, _ := newProgressTestContext(t, http.MethodPut, "/api/v1/progress/html/complete",
		`{"lessonId":"other-01"}`)
	c.SetParamNames("courseId")
	c.SetParamValues("html")

	require.NoError(t, handler.HandleCompleteLesson(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

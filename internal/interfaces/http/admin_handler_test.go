package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUsageUseCase struct {
	filter *domain.UsageFilter
}

func (s *stubUsageUseCase) GetUsageReport(ctx context.Context, filter *domain.UsageFilter) (*domain.UsageReport, error) {
	s.filter = filter
	return &domain.UsageReport{Report: []*domain.UsageRow{
		{UserID: "u-1", CourseID: "html", TotalSecondsAllLessons: 30},
	}}, nil
}

func newAdminTestContext(t *testing.T, target string) (echo.Context, *httptest.ResponseRecorder, *AdminHandler, *stubUsageUseCase) {
	t.Helper()
	app := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	c := app.NewContext(req, rec)

	stub := &stubUsageUseCase{}
	handler := NewAdminHandler(stub, validate.NewValidator())
	return c, rec, handler, stub
}

func TestHandleGetUsage(t *testing.T) {
	c, rec, handler, stub := newAdminTestContext(t, "/api/v1/admin/usage?from=2024-06-01&to=2024-06-30&courseId=html&userId=u-1")

	require.NoError(t, handler.HandleGetUsage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.filter)
	assert.Equal(t, "2024-06-01", stub.filter.From)
	assert.Equal(t, "2024-06-30", stub.filter.To)
	assert.Equal(t, "html", stub.filter.CourseID)
	assert.Equal(t, "u-1", stub.filter.UserID)

	var report domain.UsageReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Report, 1)
	assert.Equal(t, "u-1", report.Report[0].UserID)
}

func TestHandleGetUsageLangIDAlias(t *testing.T) {
	c, rec, handler, stub := newAdminTestContext(t, "/api/v1/admin/usage?langId=html")

	require.NoError(t, handler.HandleGetUsage(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "html", stub.filter.CourseID)
}

func TestHandleGetUsageRejectsBadDate(t *testing.T) {
	c, rec, handler, _ := newAdminTestContext(t, "/api/v1/admin/usage?from=June+1st")

	require.NoError(t, handler.HandleGetUsage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

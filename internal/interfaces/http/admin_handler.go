package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/phinguyen111/studytime/internal/domain"
	"github.com/phinguyen111/studytime/internal/infrastructure/validate"
)

type AdminHandler struct {
	usageUseCase domain.UsageUseCase
	validator    validate.Validator
}

func NewAdminHandler(
	UsageUseCase domain.UsageUseCase,
	Validator validate.Validator,
) *AdminHandler {
	handler := &AdminHandler{UsageUseCase, Validator}
	return handler
}

// HandleGetUsage per-(user, course) usage rows for the admin dashboard.
// Query params: from, to (inclusive day keys), courseId (langId alias), userId.
func (ah *AdminHandler) HandleGetUsage(c echo.Context) (err error) {
	filter := &domain.UsageFilter{
		From:     c.QueryParam("from"),
		To:       c.QueryParam("to"),
		CourseID: c.QueryParam("courseId"),
		UserID:   c.QueryParam("userId"),
	}
	if filter.CourseID == "" {
		filter.CourseID = c.QueryParam("langId")
	}

	for _, param := range []struct {
		name  string
		value string
	}{{"from", filter.From}, {"to", filter.To}} {
		if param.value == "" {
			continue
		}
		if _, err := time.Parse(domain.DayKeyLayout, param.value); err != nil {
			return c.JSON(http.StatusBadRequest, NewRESTValidationError(http.StatusBadRequest, "Failed to validate params", []*validate.FieldError{{
				Domain: param.name,
				Reason: fmt.Sprintf("%s must be a %s date, %s", param.name, domain.DayKeyLayout, err.Error()),
			}}))
		}
	}

	report, err := ah.usageUseCase.GetUsageReport(c.Request().Context(), filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report)
}

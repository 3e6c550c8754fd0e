package middleware

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
)

// AbortRequestOption options for request timeout
type AbortRequestOption struct {
	Timeout time.Duration
}

// AbortRequest bind a deadline to the request context
func AbortRequest(options ...*AbortRequestOption) echo.MiddlewareFunc {
	timeout := 30 * time.Second
	if len(options) > 0 {
		if option := options[0]; option.Timeout > 0 {
			timeout = option.Timeout
		}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			r := c.Request()
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			c.SetRequest(r.WithContext(ctx))
			return next(c)
		}
	}
}

package middleware

import (
	"context"
	"recurring-card/pkg/logger"
	"time"

	"github.com/labstack/echo/v4"
)

// WithContext bounds every request by timeout and attaches a request scoped
// logger so service code logging through the context carries the route.
func WithContext(log *logger.Logger, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			reqLog := log.With(
				logger.StringField("method", c.Request().Method),
				logger.StringField("route", c.Path()),
			)
			c.SetRequest(c.Request().WithContext(logger.NewContext(ctx, reqLog)))
			return next(c)
		}
	}
}

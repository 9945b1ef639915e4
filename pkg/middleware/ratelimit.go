package middleware

import (
	"net/http"
	"recurring-card/config"
	"recurring-card/internal/dto"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// NewRateLimiterMiddleware limits requests per client IP using cfg.API.
func NewRateLimiterMiddleware(cfg config.API) echo.MiddlewareFunc {
	perSecond := cfg.MaxRequestPerSec
	if perSecond <= 0 {
		perSecond = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = perSecond
	}

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(perSecond),
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			},
		),

		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},

		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(http.StatusForbidden, dto.NewBaseResponse(http.StatusForbidden, "Access forbidden: Rate limiter error occurred", nil))
		},

		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(http.StatusTooManyRequests, dto.NewBaseResponse(http.StatusTooManyRequests, "Too many requests: Rate limit exceeded. Please try again later", nil))
		},
	}

	return middleware.RateLimiterWithConfig(limiterConfig)
}

package http

import (
	"context"
	"errors"
	"net/http"
	"recurring-card/internal/contract"
	"recurring-card/internal/dto"
	"recurring-card/internal/recurrence"
	"recurring-card/internal/service"
	"recurring-card/pkg/logger"
	"strconv"

	goValidator "github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HttpAPIHandler struct {
	echo      *echo.Echo
	log       *logger.Logger
	validator *goValidator.Validate
	service   *service.Service
	db        Pinger
}

func NewHttpAPIHandler(ctx context.Context, echo *echo.Echo, log *logger.Logger, validator *goValidator.Validate, service *service.Service, db Pinger) *HttpAPIHandler {
	return &HttpAPIHandler{
		echo:      echo,
		log:       log,
		validator: validator,
		service:   service,
		db:        db,
	}
}

func (h *HttpAPIHandler) SetupRoutes() {
	h.echo.GET("/health", h.Health)
	base := h.echo.Group("/api")
	h.SetupSchedules(base)
	h.SetupReconcile(base)
	h.SetupSettings(base)
}

func (h *HttpAPIHandler) Health(c echo.Context) error {
	if h.db != nil {
		if err := h.db.Ping(c.Request().Context()); err != nil {
			response := dto.NewBaseResponse(http.StatusServiceUnavailable, err.Error(), nil)
			return c.JSON(response.Code, response)
		}
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", nil))
}

func (h *HttpAPIHandler) errorResponse(c echo.Context, err error) error {
	var response *dto.BaseResponse
	switch {
	case errors.Is(err, contract.ErrScheduleNotFound):
		response = dto.NewNotFoundResponse(err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, recurrence.ErrInvalidScheduleDefinition),
		errors.Is(err, recurrence.ErrUnsupportedFrequency):
		response = dto.NewBadRequestResponse(err.Error())
	default:
		h.log.ErrorContext(c.Request().Context(), "Request failed",
			logger.StringField("path", c.Path()),
			logger.ErrorField(err),
		)
		response = dto.NewInternalErrorResponse(err.Error())
	}
	return c.JSON(response.Code, response)
}

func scheduleID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid schedule id")
	}
	return uint(id), nil
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(message))
}

package http

import (
	"net/http"
	"recurring-card/internal/dto"
	"recurring-card/pkg/common"
	"strconv"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupSchedules(base *echo.Group) {
	v1 := base.Group("/v1/schedules")
	{
		v1.GET("", h.ListSchedules)
		v1.POST("", h.CreateSchedule)
		v1.GET("/:id", h.GetSchedule)
		v1.PUT("/:id", h.UpdateSchedule)
		v1.PATCH("/:id/active", h.SetScheduleActive)
		v1.DELETE("/:id", h.DeleteSchedule)
		v1.GET("/:id/next", h.NextDue)
		v1.GET("/:id/audit", h.ScheduleAuditTrail)
		v1.POST("/:id/run", h.RunSchedule)
	}
}

func (h *HttpAPIHandler) ListSchedules(c echo.Context) error {
	var req dto.ListScheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if raw := c.QueryParam("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "invalid is_active")
		}
		req.IsActive = &active
	}

	schedules, err := h.service.ScheduleService.List(c.Request().Context(), req)
	if err != nil {
		return h.errorResponse(c, err)
	}

	data := make([]dto.ScheduleResponse, 0, len(schedules))
	for _, s := range schedules {
		data = append(data, dto.NewScheduleResponse(s))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", data))
}

func (h *HttpAPIHandler) CreateSchedule(c echo.Context) error {
	var req dto.ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}

	schedule, err := h.service.ScheduleService.Create(c.Request().Context(), req, common.ACTOR_API)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Schedule created", dto.NewScheduleResponse(*schedule)))
}

func (h *HttpAPIHandler) GetSchedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	schedule, err := h.service.ScheduleService.Get(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", dto.NewScheduleResponse(*schedule)))
}

func (h *HttpAPIHandler) UpdateSchedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req dto.ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}

	schedule, err := h.service.ScheduleService.Update(c.Request().Context(), id, req, common.ACTOR_API)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Schedule updated", dto.NewScheduleResponse(*schedule)))
}

func (h *HttpAPIHandler) SetScheduleActive(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req dto.SetActiveRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := h.service.ScheduleService.SetActive(c.Request().Context(), id, *req.IsActive, common.ACTOR_API); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Schedule updated", nil))
}

func (h *HttpAPIHandler) DeleteSchedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if err := h.service.ScheduleService.Delete(c.Request().Context(), id, common.ACTOR_API); err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Schedule deleted", nil))
}

func (h *HttpAPIHandler) NextDue(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	next, err := h.service.SchedulerService.NextDue(c.Request().Context(), id)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", next))
}

func (h *HttpAPIHandler) ScheduleAuditTrail(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 {
			return badRequest(c, "invalid limit")
		}
	}

	logs, err := h.service.ScheduleService.AuditTrail(c.Request().Context(), id, limit)
	if err != nil {
		return h.errorResponse(c, err)
	}
	data := make([]dto.AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		data = append(data, dto.NewAuditLogResponse(l))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", data))
}

// RunSchedule reconciles one schedule now. The status code follows the outcome.
func (h *HttpAPIHandler) RunSchedule(c echo.Context) error {
	id, err := scheduleID(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	outcome, err := h.service.SchedulerService.RunSchedule(c.Request().Context(), id, common.ACTOR_API)
	if err != nil {
		return h.errorResponse(c, err)
	}

	data := dto.RunScheduleResponse{
		ScheduleID: id,
		Outcome:    string(outcome.Kind),
		Reason:     outcome.Reason,
		Card:       outcome.Card,
	}
	status := outcome.HTTPStatus()
	return c.JSON(status, dto.NewBaseResponse(status, outcome.Message(), data))
}

package http

import (
	"net/http"
	"recurring-card/internal/dto"
	"recurring-card/internal/service"
	"recurring-card/pkg/common"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupReconcile(base *echo.Group) {
	v1 := base.Group("/v1/reconcile")
	{
		v1.POST("/run", h.RunCycle)
	}
}

func (h *HttpAPIHandler) RunCycle(c echo.Context) error {
	ctx := service.WithActor(c.Request().Context(), common.ACTOR_API)
	summary, err := h.service.SchedulerService.Execute(ctx)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Reconciliation cycle completed", summary))
}

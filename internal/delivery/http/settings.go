package http

import (
	"net/http"
	"recurring-card/internal/dto"
	"recurring-card/pkg/common"

	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupSettings(base *echo.Group) {
	v1 := base.Group("/v1/settings")
	{
		v1.GET("/board", h.GetBoardSettings)
		v1.PUT("/board", h.UpdateBoardSettings)
	}
}

func (h *HttpAPIHandler) GetBoardSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("OK", h.service.SettingsService.Current()))
}

func (h *HttpAPIHandler) UpdateBoardSettings(c echo.Context) error {
	var req dto.BoardSettings
	if err := c.Bind(&req); err != nil {
		return badRequest(c, err.Error())
	}

	settings, err := h.service.SettingsService.Update(c.Request().Context(), req, common.ACTOR_API)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Board settings updated", settings))
}

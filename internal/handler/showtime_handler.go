package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs-lzh/seat-booking/internal/app"
)

type ShowtimeHandler struct {
	app *app.App
}

func NewShowtimeHandler(app *app.App) *ShowtimeHandler {
	return &ShowtimeHandler{
		app: app,
	}
}

func (h *ShowtimeHandler) HandleSeatMap(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		badRequest(ctx, err)
		return
	}

	seatMap, err := h.app.ReservationService.AvailableSeats(ctx.Request.Context(), uint(id))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, seatMap)
}

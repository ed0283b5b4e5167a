package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs-lzh/seat-booking/internal/app"
	"github.com/qs-lzh/seat-booking/internal/model"
)

type TicketHandler struct {
	app *app.App
}

func NewTicketHandler(app *app.App) *TicketHandler {
	return &TicketHandler{
		app: app,
	}
}

type TicketView struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"order_id"`
	ShowtimeID uint       `json:"showtime_id"`
	SeatID     uint       `json:"seat_id"`
	Price      float64    `json:"price"`
	Status     string     `json:"status"`
	Used       bool       `json:"used"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
}

func toTicketView(t *model.Ticket) TicketView {
	return TicketView{
		ID:         t.ID,
		OrderID:    t.OrderID,
		ShowtimeID: t.ShowtimeID,
		SeatID:     t.SeatID,
		Price:      t.Price.Float(),
		Status:     string(t.Status),
		Used:       t.Used,
		UsedAt:     t.UsedAt,
	}
}

func (h *TicketHandler) HandleGet(ctx *gin.Context) {
	ticket, err := h.app.TicketService.GetByToken(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toTicketView(ticket))
}

func (h *TicketHandler) HandleCheckIn(ctx *gin.Context) {
	ticket, err := h.app.TicketService.CheckIn(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toTicketView(ticket))
}

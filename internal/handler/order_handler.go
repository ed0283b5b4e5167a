package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs-lzh/seat-booking/internal/app"
	"github.com/qs-lzh/seat-booking/internal/model"
)

type OrderHandler struct {
	app *app.App
}

func NewOrderHandler(app *app.App) *OrderHandler {
	return &OrderHandler{
		app: app,
	}
}

type OrderView struct {
	ID         string       `json:"id"`
	ShowtimeID uint         `json:"showtime_id"`
	Status     string       `json:"status"`
	Subtotal   float64      `json:"subtotal"`
	Discount   float64      `json:"discount"`
	Total      float64      `json:"total"`
	CreatedAt  time.Time    `json:"created_at"`
	Tickets    []TicketView `json:"tickets,omitempty"`
}

func toOrderView(o *model.Order) OrderView {
	view := OrderView{
		ID:         o.ID,
		ShowtimeID: o.ShowtimeID,
		Status:     string(o.Status),
		Subtotal:   o.Subtotal.Float(),
		Discount:   o.DiscountAmount.Float(),
		Total:      o.TotalPrice.Float(),
		CreatedAt:  o.CreatedAt,
	}
	for i := range o.Tickets {
		view.Tickets = append(view.Tickets, toTicketView(&o.Tickets[i]))
	}
	return view
}

func (h *OrderHandler) HandleGet(ctx *gin.Context) {
	order, err := h.app.OrderService.GetOrder(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, toOrderView(order))
}

// HandleList lists the orders placed under a holder token.
func (h *OrderHandler) HandleList(ctx *gin.Context) {
	orders, err := h.app.OrderService.ListByHolder(ctx.Request.Context(), ctx.Query("holder_token"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	views := make([]OrderView, 0, len(orders))
	for i := range orders {
		views = append(views, toOrderView(&orders[i]))
	}
	ctx.JSON(http.StatusOK, gin.H{"orders": views})
}

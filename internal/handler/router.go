package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs-lzh/seat-booking/internal/app"
)

func NewRouter(app *app.App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	booking := NewBookingHandler(app)
	order := NewOrderHandler(app)
	payment := NewPaymentHandler(app)
	showtime := NewShowtimeHandler(app)
	ticket := NewTicketHandler(app)

	r.POST("/bookings", booking.HandleBook)
	r.POST("/reservations", booking.HandleReserve)
	r.DELETE("/reservations", booking.HandleRelease)
	r.GET("/orders", order.HandleList)
	r.GET("/orders/:id", order.HandleGet)
	r.POST("/payments/callback", payment.HandleCallback)
	r.GET("/showtimes/:id/seats", showtime.HandleSeatMap)
	r.GET("/tickets/:token", ticket.HandleGet)
	r.POST("/tickets/:token/check-in", ticket.HandleCheckIn)

	if app.MockGateway != nil && app.Config.IsDev() {
		r.GET("/mock-pay/:ref", payment.HandleMockPay)
	}

	return r
}

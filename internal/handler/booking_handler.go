package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs-lzh/seat-booking/internal/app"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
	"github.com/qs-lzh/seat-booking/internal/service/workflow"
)

type BookingHandler struct {
	app *app.App
}

func NewBookingHandler(app *app.App) *BookingHandler {
	return &BookingHandler{
		app: app,
	}
}

type BookRequest struct {
	ShowtimeID    uint            `json:"showtime_id" binding:"required"`
	SeatIDs       []uint          `json:"seat_ids" binding:"required,min=1"`
	HolderToken   string          `json:"holder_token" binding:"required"`
	Customer      domain.Customer `json:"customer"`
	CouponCode    string          `json:"coupon_code"`
	EventCode     string          `json:"event_code"`
	PaymentMethod string          `json:"payment_method"`
}

type TicketResponse struct {
	ID     string  `json:"id"`
	SeatID uint    `json:"seat_id"`
	Price  float64 `json:"price"`
	Status string  `json:"status"`
}

type BookResponse struct {
	OrderID         string           `json:"order_id"`
	Status          string           `json:"status"`
	Subtotal        float64          `json:"subtotal"`
	Discount        float64          `json:"discount"`
	Total           float64          `json:"total"`
	RedirectURL     string           `json:"redirect_url"`
	PaymentDeadline time.Time        `json:"payment_deadline"`
	Tickets         []TicketResponse `json:"tickets"`
}

func (h *BookingHandler) HandleBook(ctx *gin.Context) {
	var req BookRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	result, err := h.app.BookingWorkflow.Book(ctx.Request.Context(), workflow.BookingRequest{
		ShowtimeID:    req.ShowtimeID,
		SeatIDs:       req.SeatIDs,
		HolderToken:   req.HolderToken,
		Customer:      req.Customer,
		CouponCode:    req.CouponCode,
		EventCode:     req.EventCode,
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		h.app.Logger.Info("booking rejected", zap.Uint("showtime_id", req.ShowtimeID), zap.Error(err))
		writeError(ctx, err)
		return
	}

	resp := BookResponse{
		OrderID:         result.Order.ID,
		Status:          string(result.Order.Status),
		Subtotal:        result.Total.Subtotal.Float(),
		Discount:        result.Total.Discount.Float(),
		Total:           result.Total.Total.Float(),
		RedirectURL:     result.RedirectURL,
		PaymentDeadline: result.Intent.Deadline,
	}
	for _, t := range result.Order.Tickets {
		resp.Tickets = append(resp.Tickets, TicketResponse{
			ID:     t.ID,
			SeatID: t.SeatID,
			Price:  t.Price.Float(),
			Status: string(t.Status),
		})
	}
	ctx.JSON(http.StatusCreated, resp)
}

type ReserveRequest struct {
	ShowtimeID  uint   `json:"showtime_id" binding:"required"`
	SeatIDs     []uint `json:"seat_ids" binding:"required,min=1"`
	HolderToken string `json:"holder_token" binding:"required"`
}

// HandleReserve holds seats without creating an order.
func (h *BookingHandler) HandleReserve(ctx *gin.Context) {
	var req ReserveRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	handle, err := h.app.ReservationService.Reserve(ctx.Request.Context(), req.ShowtimeID, req.SeatIDs, req.HolderToken, 0)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"message": "Seats reserved successfully",
		"handle":  handle,
	})
}

type ReleaseRequest struct {
	HandleID    string `json:"handle_id" binding:"required"`
	ShowtimeID  uint   `json:"showtime_id" binding:"required"`
	HolderToken string `json:"holder_token" binding:"required"`
}

func (h *BookingHandler) HandleRelease(ctx *gin.Context) {
	var req ReleaseRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, err)
		return
	}

	handle := &domain.ReservationHandle{ID: req.HandleID, ShowtimeID: req.ShowtimeID, HolderToken: req.HolderToken}
	if err := h.app.ReservationService.Release(ctx.Request.Context(), handle); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.Status(http.StatusNoContent)
}

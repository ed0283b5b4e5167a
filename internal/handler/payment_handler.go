package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs-lzh/seat-booking/internal/app"
	"github.com/qs-lzh/seat-booking/internal/gateway"
)

type PaymentHandler struct {
	app *app.App
}

func NewPaymentHandler(app *app.App) *PaymentHandler {
	return &PaymentHandler{
		app: app,
	}
}

// HandleCallback receives payment results pushed by the gateway.
func (h *PaymentHandler) HandleCallback(ctx *gin.Context) {
	var cb gateway.Callback
	if err := ctx.ShouldBindJSON(&cb); err != nil {
		badRequest(ctx, err)
		return
	}

	if err := h.app.PaymentService.OnCallback(ctx.Request.Context(), cb); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Callback processed"})
}

// HandleMockPay settles an intent opened at the mock gateway, standing in
// for the payment page the customer is redirected to.
func (h *PaymentHandler) HandleMockPay(ctx *gin.Context) {
	outcome := gateway.OutcomePaid
	if ctx.Query("outcome") == string(gateway.OutcomeFailed) {
		outcome = gateway.OutcomeFailed
	}

	cb, ok := h.app.MockGateway.Callback(ctx.Param("ref"), outcome)
	if !ok {
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": "unknown payment reference"})
		return
	}
	if err := h.app.PaymentService.OnCallback(ctx.Request.Context(), cb); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Mock payment " + string(outcome)})
}

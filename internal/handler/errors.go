package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs-lzh/seat-booking/internal/service"
)

// writeError maps an error kind to a status code.
func writeError(ctx *gin.Context, err error) {
	var conflict *service.SeatConflictError
	switch {
	case errors.As(err, &conflict):
		ctx.JSON(http.StatusConflict, gin.H{
			"error":    "Seats unavailable",
			"message":  err.Error(),
			"seat_ids": conflict.SeatIDs,
		})
	case errors.Is(err, service.ErrConflict):
		ctx.JSON(http.StatusConflict, gin.H{"error": "Conflict", "message": err.Error()})
	case errors.Is(err, service.ErrExpired):
		ctx.JSON(http.StatusGone, gin.H{"error": "Expired", "message": err.Error()})
	case errors.Is(err, service.ErrInvalid), errors.Is(err, service.ErrExhausted):
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Request rejected", "message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": "Not found", "message": err.Error()})
	default:
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to process request, please try again later",
		})
	}
}

func badRequest(ctx *gin.Context, err error) {
	ctx.JSON(http.StatusBadRequest, gin.H{
		"error":  "Invalid request format",
		"detail": err.Error(),
	})
}

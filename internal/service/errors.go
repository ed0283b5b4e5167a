package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds. Every error returned by the booking engine wraps exactly one
// of them so callers can branch with errors.Is.
var (
	ErrConflict  = errors.New("conflict")
	ErrExpired   = errors.New("expired")
	ErrInvalid   = errors.New("invalid")
	ErrExhausted = errors.New("exhausted")
	ErrNotFound  = errors.New("resource not found")
)

var (
	ErrExpiredReservation   = fmt.Errorf("seat reservation expired: %w", ErrExpired)
	ErrDiscountNotFound     = fmt.Errorf("discount code not found: %w", ErrNotFound)
	ErrDiscountInactive     = fmt.Errorf("discount is not active: %w", ErrInvalid)
	ErrDiscountOutOfWindow  = fmt.Errorf("discount is outside its validity window: %w", ErrInvalid)
	ErrBelowMinimum         = fmt.Errorf("order amount below discount minimum: %w", ErrInvalid)
	ErrCouponExhausted      = fmt.Errorf("coupon usage exhausted: %w", ErrExhausted)
	ErrConflictingDiscounts = fmt.Errorf("coupon and event cannot be combined: %w", ErrInvalid)
	ErrInvalidSignature     = fmt.Errorf("invalid callback signature: %w", ErrInvalid)
	ErrAmountMismatch       = fmt.Errorf("callback amount does not match intent: %w", ErrInvalid)
	ErrIntentNotFound       = fmt.Errorf("payment intent not found: %w", ErrNotFound)
	ErrInvalidSeatSelection = fmt.Errorf("invalid seat selection: %w", ErrInvalid)
	ErrInvalidHolder        = fmt.Errorf("holder token is required: %w", ErrInvalid)
	ErrTicketNotPaid        = fmt.Errorf("ticket is not paid: %w", ErrInvalid)
	ErrTicketUsed           = fmt.Errorf("ticket already used: %w", ErrConflict)
)

// SeatConflictError reports the seats of a reservation attempt that are held
// by someone else.
type SeatConflictError struct {
	ShowtimeID uint
	SeatIDs    []uint
}

func NewSeatConflictError(showtimeID uint, seatIDs []uint) *SeatConflictError {
	ids := append([]uint(nil), seatIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &SeatConflictError{ShowtimeID: showtimeID, SeatIDs: ids}
}

func (e *SeatConflictError) Error() string {
	parts := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("seats [%s] of showtime %d are already held", strings.Join(parts, ","), e.ShowtimeID)
}

func (e *SeatConflictError) Unwrap() error {
	return ErrConflict
}

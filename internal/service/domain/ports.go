package domain

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/qs-lzh/seat-booking/internal/cache"
	"github.com/qs-lzh/seat-booking/internal/mq"
	"github.com/qs-lzh/seat-booking/internal/service"
)

// SeatMapCache caches the seat map of showtimes. Implemented by
// cache.RedisCache; a nil SeatMapCache disables caching.
type SeatMapCache interface {
	GetSeatMap(ctx context.Context, showtimeID uint) (*cache.SeatMap, bool, error)
	SeatMapVersion(ctx context.Context, showtimeID uint) (int64, error)
	PutSeatMap(ctx context.Context, showtimeID uint, version int64, seatMap *cache.SeatMap) (bool, error)
	InvalidateSeatMap(ctx context.Context, showtimeID uint) error
}

// ExpiryScheduler arranges for Expire to be called once a payment deadline
// passes. Implemented by mq.Publisher.
type ExpiryScheduler interface {
	SchedulePaymentExpiry(ctx context.Context, msg mq.PaymentExpiryMessage) error
}

// OrderEventPublisher announces paid orders. Implemented by mq.Publisher.
type OrderEventPublisher interface {
	PublishOrderPaid(ctx context.Context, msg mq.OrderPaidMessage) error
}

func invalidateSeatMap(ctx context.Context, c SeatMapCache, logger *zap.Logger, showtimeID uint) {
	if c == nil {
		return
	}
	if err := c.InvalidateSeatMap(ctx, showtimeID); err != nil {
		logger.Warn("failed to invalidate seat map", zap.Uint("showtime_id", showtimeID), zap.Error(err))
	}
}

// newToken returns 32 random bytes, hex encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// isPermanent reports whether err is a domain outcome that a retry cannot
// change.
func isPermanent(err error) bool {
	for _, kind := range []error{
		service.ErrConflict, service.ErrExpired, service.ErrInvalid,
		service.ErrExhausted, service.ErrNotFound,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// retry runs fn up to attempts times, doubling the pause after each
// transient failure.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || isPermanent(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

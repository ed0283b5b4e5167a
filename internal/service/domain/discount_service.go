package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service"
)

type DiscountService interface {
	Validate(ctx context.Context, code string, isEvent bool, orderAmount pricing.Money, now time.Time) (pricing.DiscountOutcome, error)
	ValidateSelection(ctx context.Context, couponCode, eventCode string, orderAmount pricing.Money, now time.Time) (*pricing.DiscountOutcome, error)
}

type discountService struct {
	couponRepo repository.CouponRepo
	eventRepo  repository.EventRepo
}

var _ DiscountService = (*discountService)(nil)

func NewDiscountService(couponRepo repository.CouponRepo, eventRepo repository.EventRepo) *discountService {
	return &discountService{
		couponRepo: couponRepo,
		eventRepo:  eventRepo,
	}
}

// ValidateSelection validates the discount chosen for an order. At most one
// of couponCode and eventCode may be set; with neither it returns nil.
func (s *discountService) ValidateSelection(ctx context.Context, couponCode, eventCode string, orderAmount pricing.Money, now time.Time) (*pricing.DiscountOutcome, error) {
	couponCode = strings.TrimSpace(couponCode)
	eventCode = strings.TrimSpace(eventCode)

	switch {
	case couponCode != "" && eventCode != "":
		return nil, service.ErrConflictingDiscounts
	case couponCode != "":
		outcome, err := s.Validate(ctx, couponCode, false, orderAmount, now)
		if err != nil {
			return nil, err
		}
		return &outcome, nil
	case eventCode != "":
		outcome, err := s.Validate(ctx, eventCode, true, orderAmount, now)
		if err != nil {
			return nil, err
		}
		return &outcome, nil
	default:
		return nil, nil
	}
}

// Validate looks up a coupon or event by code and prices it against
// orderAmount. It reads only; coupon usage is consumed when the order is
// materialized.
func (s *discountService) Validate(ctx context.Context, code string, isEvent bool, orderAmount pricing.Money, now time.Time) (pricing.DiscountOutcome, error) {
	code = strings.TrimSpace(code)
	if isEvent {
		return s.validateEvent(ctx, code, orderAmount, now)
	}
	return s.validateCoupon(ctx, code, orderAmount, now)
}

func (s *discountService) validateCoupon(ctx context.Context, code string, orderAmount pricing.Money, now time.Time) (pricing.DiscountOutcome, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.DiscountOutcome{}, service.ErrDiscountNotFound
		}
		return pricing.DiscountOutcome{}, err
	}
	if err := checkWindow(coupon.Active, coupon.StartDate, coupon.EndDate, now); err != nil {
		return pricing.DiscountOutcome{}, err
	}
	if orderAmount < coupon.MinOrderAmount {
		return pricing.DiscountOutcome{}, service.ErrBelowMinimum
	}
	if coupon.RemainingQuantity <= 0 || coupon.UsedQuantity >= coupon.TotalQuantity {
		return pricing.DiscountOutcome{}, service.ErrCouponExhausted
	}

	rule, ok := pricing.NewRule(coupon.DiscountType, coupon.Value, coupon.MaxDiscountAmount)
	if !ok {
		return pricing.DiscountOutcome{}, fmt.Errorf("coupon %s has discount type %q: %w", code, coupon.DiscountType, service.ErrInvalid)
	}
	return pricing.NewOutcome(pricing.SourceCoupon, coupon.ID, coupon.Code, rule, orderAmount), nil
}

func (s *discountService) validateEvent(ctx context.Context, code string, orderAmount pricing.Money, now time.Time) (pricing.DiscountOutcome, error) {
	event, err := s.eventRepo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pricing.DiscountOutcome{}, service.ErrDiscountNotFound
		}
		return pricing.DiscountOutcome{}, err
	}
	if err := checkWindow(event.Active, event.StartDate, event.EndDate, now); err != nil {
		return pricing.DiscountOutcome{}, err
	}
	if orderAmount < event.MinOrderAmount {
		return pricing.DiscountOutcome{}, service.ErrBelowMinimum
	}

	rule := pricing.Percentage{Percent: event.DiscountPercentage, Cap: event.MaxDiscountAmount}
	return pricing.NewOutcome(pricing.SourceEvent, event.ID, event.Code, rule, orderAmount), nil
}

// checkWindow validates the active flag and the inclusive [start, end]
// validity window.
func checkWindow(active bool, start, end, now time.Time) error {
	if !active {
		return service.ErrDiscountInactive
	}
	if now.Before(start) || now.After(end) {
		return service.ErrDiscountOutOfWindow
	}
	return nil
}

package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type CouponRepo interface {
	WithTx(tx *gorm.DB) CouponRepo
	Create(ctx context.Context, coupon *model.Coupon) error
	GetByID(ctx context.Context, id uint) (*model.Coupon, error)
	GetByCode(ctx context.Context, code string) (*model.Coupon, error)
	Redeem(ctx context.Context, couponID uint, orderID string, now time.Time) error
	Restore(ctx context.Context, orderID string, now time.Time) (bool, error)
}

type couponRepoGorm struct {
	db *gorm.DB
}

var _ CouponRepo = (*couponRepoGorm)(nil)

func NewCouponRepoGorm(db *gorm.DB) *couponRepoGorm {
	return &couponRepoGorm{db: db}
}

func (r *couponRepoGorm) WithTx(tx *gorm.DB) CouponRepo {
	return &couponRepoGorm{db: tx}
}

func (r *couponRepoGorm) Create(ctx context.Context, coupon *model.Coupon) error {
	coupon.RemainingQuantity = coupon.TotalQuantity - coupon.UsedQuantity
	return gorm.G[model.Coupon](r.db).Create(ctx, coupon)
}

func (r *couponRepoGorm) GetByID(ctx context.Context, id uint) (*model.Coupon, error) {
	coupon, err := gorm.G[model.Coupon](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

func (r *couponRepoGorm) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
	coupon, err := gorm.G[model.Coupon](r.db).Where("code = ?", code).First(ctx)
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Redeem consumes one use of the coupon for orderID. The counter update is
// guarded by used_quantity < total_quantity; ErrNotApplied means the coupon
// ran out. Must run inside a transaction together with the order insert.
func (r *couponRepoGorm) Redeem(ctx context.Context, couponID uint, orderID string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ? AND used_quantity < total_quantity", couponID).
		Updates(map[string]any{
			"used_quantity":      gorm.Expr("used_quantity + 1"),
			"remaining_quantity": gorm.Expr("remaining_quantity - 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotApplied
	}
	return gorm.G[model.CouponRedemption](r.db).Create(ctx, &model.CouponRedemption{
		CouponID:   couponID,
		OrderID:    orderID,
		RedeemedAt: now,
	})
}

// Restore gives back the coupon use redeemed by orderID. It returns false
// when the order redeemed nothing or was already restored.
func (r *couponRepoGorm) Restore(ctx context.Context, orderID string, now time.Time) (bool, error) {
	redemption, err := gorm.G[model.CouponRedemption](r.db).Where("order_id = ?", orderID).First(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	marked, err := gorm.G[model.CouponRedemption](r.db).
		Where("id = ? AND restored_at IS NULL", redemption.ID).
		Update(ctx, "restored_at", now)
	if err != nil {
		return false, err
	}
	if marked == 0 {
		return false, nil
	}

	res := r.db.WithContext(ctx).Model(&model.Coupon{}).
		Where("id = ? AND used_quantity > 0", redemption.CouponID).
		Updates(map[string]any{
			"used_quantity":      gorm.Expr("used_quantity - 1"),
			"remaining_quantity": gorm.Expr("remaining_quantity + 1"),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

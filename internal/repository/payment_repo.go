package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type PaymentRepo interface {
	WithTx(tx *gorm.DB) PaymentRepo
	Create(ctx context.Context, intent *model.PaymentIntent) error
	GetByID(ctx context.Context, id string) (*model.PaymentIntent, error)
	GetByGatewayRef(ctx context.Context, ref string) (*model.PaymentIntent, error)
	Complete(ctx context.Context, id string, to model.PaymentStatus, reason string, now time.Time) (bool, error)
	Expire(ctx context.Context, id string, now time.Time) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.PaymentIntent, error)
}

type paymentRepoGorm struct {
	db *gorm.DB
}

var _ PaymentRepo = (*paymentRepoGorm)(nil)

func NewPaymentRepoGorm(db *gorm.DB) *paymentRepoGorm {
	return &paymentRepoGorm{db: db}
}

func (r *paymentRepoGorm) WithTx(tx *gorm.DB) PaymentRepo {
	return &paymentRepoGorm{db: tx}
}

func (r *paymentRepoGorm) Create(ctx context.Context, intent *model.PaymentIntent) error {
	return gorm.G[model.PaymentIntent](r.db).Create(ctx, intent)
}

func (r *paymentRepoGorm) GetByID(ctx context.Context, id string) (*model.PaymentIntent, error) {
	intent, err := gorm.G[model.PaymentIntent](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *paymentRepoGorm) GetByGatewayRef(ctx context.Context, ref string) (*model.PaymentIntent, error) {
	intent, err := gorm.G[model.PaymentIntent](r.db).Where("gateway_ref = ?", ref).First(ctx)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// Complete moves an INITIATED intent to a terminal status. It reports false
// when the intent was already terminal.
func (r *paymentRepoGorm) Complete(ctx context.Context, id string, to model.PaymentStatus, reason string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PaymentIntent{}).
		Where("id = ? AND status = ?", id, model.PaymentInitiated).
		Updates(map[string]any{
			"status":         to,
			"failure_reason": reason,
			"completed_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Expire moves an INITIATED intent whose deadline has passed to EXPIRED.
func (r *paymentRepoGorm) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.PaymentIntent{}).
		Where("id = ? AND status = ? AND deadline <= ?", id, model.PaymentInitiated, now).
		Updates(map[string]any{
			"status":         model.PaymentExpired,
			"failure_reason": "payment deadline passed",
			"completed_at":   now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *paymentRepoGorm) ListDue(ctx context.Context, now time.Time, limit int) ([]model.PaymentIntent, error) {
	return gorm.G[model.PaymentIntent](r.db).
		Where("status = ? AND deadline <= ?", model.PaymentInitiated, now).
		Order("deadline").
		Limit(limit).
		Find(ctx)
}

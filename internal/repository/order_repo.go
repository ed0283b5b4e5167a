package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type OrderRepo interface {
	WithTx(tx *gorm.DB) OrderRepo
	Create(ctx context.Context, order *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	GetByHolder(ctx context.Context, holderToken string) ([]model.Order, error)
	Transition(ctx context.Context, id string, from []model.OrderStatus, to model.OrderStatus) (int, error)
}

type orderRepoGorm struct {
	db *gorm.DB
}

var _ OrderRepo = (*orderRepoGorm)(nil)

func NewOrderRepoGorm(db *gorm.DB) *orderRepoGorm {
	return &orderRepoGorm{
		db: db,
	}
}

func (r *orderRepoGorm) WithTx(tx *gorm.DB) OrderRepo {
	return &orderRepoGorm{
		db: tx,
	}
}

// Create inserts the order together with its tickets.
func (r *orderRepoGorm) Create(ctx context.Context, order *model.Order) error {
	return gorm.G[model.Order](r.db).Create(ctx, order)
}

func (r *orderRepoGorm) GetByID(ctx context.Context, id string) (*model.Order, error) {
	order, err := gorm.G[model.Order](r.db).
		Preload("Tickets", func(db gorm.PreloadBuilder) error {
			db.Order("seat_id")
			return nil
		}).
		Where("id = ?", id).
		First(ctx)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoGorm) GetByHolder(ctx context.Context, holderToken string) ([]model.Order, error) {
	return gorm.G[model.Order](r.db).Where("holder_token = ?", holderToken).Order("created_at DESC").Find(ctx)
}

// Transition moves the order to status to if its current status is one of
// from, and returns the number of rows changed.
func (r *orderRepoGorm) Transition(ctx context.Context, id string, from []model.OrderStatus, to model.OrderStatus) (int, error) {
	return gorm.G[model.Order](r.db).Where("id = ? AND status IN ?", id, from).Update(ctx, "status", to)
}

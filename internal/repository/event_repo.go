package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type EventRepo interface {
	WithTx(tx *gorm.DB) EventRepo
	Create(ctx context.Context, event *model.Event) error
	GetByCode(ctx context.Context, code string) (*model.Event, error)
}

type eventRepoGorm struct {
	db *gorm.DB
}

var _ EventRepo = (*eventRepoGorm)(nil)

func NewEventRepoGorm(db *gorm.DB) *eventRepoGorm {
	return &eventRepoGorm{db: db}
}

func (r *eventRepoGorm) WithTx(tx *gorm.DB) EventRepo {
	return &eventRepoGorm{db: tx}
}

func (r *eventRepoGorm) Create(ctx context.Context, event *model.Event) error {
	return gorm.G[model.Event](r.db).Create(ctx, event)
}

func (r *eventRepoGorm) GetByCode(ctx context.Context, code string) (*model.Event, error) {
	event, err := gorm.G[model.Event](r.db).Where("code = ?", code).First(ctx)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

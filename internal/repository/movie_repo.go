package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type MovieRepo interface {
	WithTx(tx *gorm.DB) MovieRepo
	Create(ctx context.Context, movie *model.Movie) error
	GetByID(ctx context.Context, id uint) (*model.Movie, error)
	GetByTitle(ctx context.Context, title string) (*model.Movie, error)
	ListAll(ctx context.Context) ([]model.Movie, error)
}

type movieRepoGorm struct {
	db *gorm.DB
}

var _ MovieRepo = (*movieRepoGorm)(nil)

func NewMovieRepoGorm(db *gorm.DB) *movieRepoGorm {
	return &movieRepoGorm{
		db: db,
	}
}

func (r *movieRepoGorm) WithTx(tx *gorm.DB) MovieRepo {
	return &movieRepoGorm{
		db: tx,
	}
}

func (r *movieRepoGorm) Create(ctx context.Context, movie *model.Movie) error {
	return gorm.G[model.Movie](r.db).Create(ctx, movie)
}

func (r *movieRepoGorm) GetByID(ctx context.Context, id uint) (*model.Movie, error) {
	movie, err := gorm.G[model.Movie](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (r *movieRepoGorm) GetByTitle(ctx context.Context, title string) (*model.Movie, error) {
	movie, err := gorm.G[model.Movie](r.db).Where(&model.Movie{Title: title}).First(ctx)
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

func (r *movieRepoGorm) ListAll(ctx context.Context) ([]model.Movie, error) {
	return gorm.G[model.Movie](r.db).Order("id").Find(ctx)
}

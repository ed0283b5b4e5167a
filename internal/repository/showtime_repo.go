package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type ShowtimeRepo interface {
	WithTx(tx *gorm.DB) ShowtimeRepo
	Create(ctx context.Context, showtime *model.Showtime) error
	GetByID(ctx context.Context, id uint) (*model.Showtime, error)
	GetByMovieID(ctx context.Context, movieID uint) ([]model.Showtime, error)
}

type showtimeRepoGorm struct {
	db *gorm.DB
}

var _ ShowtimeRepo = (*showtimeRepoGorm)(nil)

func NewShowtimeRepoGorm(db *gorm.DB) *showtimeRepoGorm {
	return &showtimeRepoGorm{db: db}
}

func (r *showtimeRepoGorm) WithTx(tx *gorm.DB) ShowtimeRepo {
	return &showtimeRepoGorm{db: tx}
}

func (r *showtimeRepoGorm) Create(ctx context.Context, showtime *model.Showtime) error {
	return gorm.G[model.Showtime](r.db).Create(ctx, showtime)
}

func (r *showtimeRepoGorm) GetByID(ctx context.Context, id uint) (*model.Showtime, error) {
	showtime, err := gorm.G[model.Showtime](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &showtime, nil
}

func (r *showtimeRepoGorm) GetByMovieID(ctx context.Context, movieID uint) ([]model.Showtime, error) {
	return gorm.G[model.Showtime](r.db).Where("movie_id = ?", movieID).Order("start_at").Find(ctx)
}

package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

// VenueRepo reads and writes cinemas, rooms and their seats.
type VenueRepo interface {
	WithTx(tx *gorm.DB) VenueRepo
	CreateCinema(ctx context.Context, cinema *model.Cinema) error
	CreateRoom(ctx context.Context, room *model.Room) error
	CreateSeats(ctx context.Context, seats []model.Seat) error
	GetCinema(ctx context.Context, id uint) (*model.Cinema, error)
	GetRoom(ctx context.Context, id uint) (*model.Room, error)
	GetSeat(ctx context.Context, id uint) (*model.Seat, error)
	ListSeatsByRoom(ctx context.Context, roomID uint) ([]model.Seat, error)
	GetSeatsByIDs(ctx context.Context, ids []uint) ([]model.Seat, error)
}

type venueRepoGorm struct {
	db *gorm.DB
}

var _ VenueRepo = (*venueRepoGorm)(nil)

func NewVenueRepoGorm(db *gorm.DB) *venueRepoGorm {
	return &venueRepoGorm{db: db}
}

func (r *venueRepoGorm) WithTx(tx *gorm.DB) VenueRepo {
	return &venueRepoGorm{db: tx}
}

func (r *venueRepoGorm) CreateCinema(ctx context.Context, cinema *model.Cinema) error {
	return gorm.G[model.Cinema](r.db).Create(ctx, cinema)
}

func (r *venueRepoGorm) CreateRoom(ctx context.Context, room *model.Room) error {
	return gorm.G[model.Room](r.db).Create(ctx, room)
}

func (r *venueRepoGorm) CreateSeats(ctx context.Context, seats []model.Seat) error {
	if len(seats) == 0 {
		return nil
	}
	return gorm.G[model.Seat](r.db).CreateInBatches(ctx, &seats, 100)
}

func (r *venueRepoGorm) GetCinema(ctx context.Context, id uint) (*model.Cinema, error) {
	cinema, err := gorm.G[model.Cinema](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &cinema, nil
}

func (r *venueRepoGorm) GetRoom(ctx context.Context, id uint) (*model.Room, error) {
	room, err := gorm.G[model.Room](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *venueRepoGorm) GetSeat(ctx context.Context, id uint) (*model.Seat, error) {
	seat, err := gorm.G[model.Seat](r.db).Where("id = ?", id).First(ctx)
	if err != nil {
		return nil, err
	}
	return &seat, nil
}

func (r *venueRepoGorm) ListSeatsByRoom(ctx context.Context, roomID uint) ([]model.Seat, error) {
	return gorm.G[model.Seat](r.db).Where("room_id = ?", roomID).Order("seat_row, seat_col").Find(ctx)
}

func (r *venueRepoGorm) GetSeatsByIDs(ctx context.Context, ids []uint) ([]model.Seat, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return gorm.G[model.Seat](r.db).Where("id IN ?", ids).Order("id").Find(ctx)
}

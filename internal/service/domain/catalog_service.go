package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service"
)

// CatalogService serves read-only lookups of movies, showtimes and venues,
// plus the writes used to seed them.
type CatalogService interface {
	CreateMovie(ctx context.Context, movie *model.Movie) error
	GetMovieByID(ctx context.Context, id uint) (*model.Movie, error)
	GetMovieByTitle(ctx context.Context, title string) (*model.Movie, error)
	GetAllMovies(ctx context.Context) ([]model.Movie, error)

	CreateShowtime(ctx context.Context, movieID, roomID uint, startAt time.Time, basePrice pricing.Money) (*model.Showtime, error)
	GetShowtimeByID(ctx context.Context, id uint) (*model.Showtime, error)
	GetShowtimesByMovieID(ctx context.Context, movieID uint) ([]model.Showtime, error)

	CreateRoom(ctx context.Context, cinema *model.Cinema, room *model.Room, seats []model.Seat) error
	GetRoom(ctx context.Context, id uint) (*model.Room, error)
	GetCinema(ctx context.Context, id uint) (*model.Cinema, error)
	GetSeat(ctx context.Context, id uint) (*model.Seat, error)
	GetSeats(ctx context.Context, ids []uint) ([]model.Seat, error)
}

type catalogService struct {
	db           *gorm.DB
	movieRepo    repository.MovieRepo
	showtimeRepo repository.ShowtimeRepo
	venueRepo    repository.VenueRepo
}

var _ CatalogService = (*catalogService)(nil)

func NewCatalogService(db *gorm.DB, movieRepo repository.MovieRepo, showtimeRepo repository.ShowtimeRepo, venueRepo repository.VenueRepo) *catalogService {
	return &catalogService{
		db:           db,
		movieRepo:    movieRepo,
		showtimeRepo: showtimeRepo,
		venueRepo:    venueRepo,
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return service.ErrNotFound
	}
	return err
}

// CreateMovie adds a movie. Titles are unique.
func (s *catalogService) CreateMovie(ctx context.Context, movie *model.Movie) error {
	if movie.Title == "" || movie.DurationMinutes <= 0 {
		return fmt.Errorf("movie needs a title and a duration: %w", service.ErrInvalid)
	}
	if err := s.movieRepo.Create(ctx, movie); err != nil {
		if repository.IsUniqueViolation(err) {
			return fmt.Errorf("movie %q: %w", movie.Title, service.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *catalogService) GetMovieByTitle(ctx context.Context, title string) (*model.Movie, error) {
	movie, err := s.movieRepo.GetByTitle(ctx, title)
	if err != nil {
		return nil, notFound(err)
	}
	return movie, nil
}

func (s *catalogService) GetMovieByID(ctx context.Context, id uint) (*model.Movie, error) {
	movie, err := s.movieRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return movie, nil
}

func (s *catalogService) GetAllMovies(ctx context.Context) ([]model.Movie, error) {
	return s.movieRepo.ListAll(ctx)
}

// CreateShowtime schedules a movie in a room. The end time follows from the
// movie's duration.
func (s *catalogService) CreateShowtime(ctx context.Context, movieID, roomID uint, startAt time.Time, basePrice pricing.Money) (*model.Showtime, error) {
	if basePrice < 0 {
		return nil, fmt.Errorf("negative base price: %w", service.ErrInvalid)
	}
	var showtime *model.Showtime
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		movie, err := s.movieRepo.WithTx(tx).GetByID(ctx, movieID)
		if err != nil {
			return notFound(err)
		}
		if _, err := s.venueRepo.WithTx(tx).GetRoom(ctx, roomID); err != nil {
			return notFound(err)
		}
		showtime = &model.Showtime{
			MovieID:   movieID,
			RoomID:    roomID,
			StartAt:   startAt.UTC(),
			EndAt:     startAt.UTC().Add(time.Duration(movie.DurationMinutes) * time.Minute),
			BasePrice: basePrice,
		}
		return s.showtimeRepo.WithTx(tx).Create(ctx, showtime)
	})
	if err != nil {
		return nil, err
	}
	return showtime, nil
}

func (s *catalogService) GetShowtimeByID(ctx context.Context, id uint) (*model.Showtime, error) {
	showtime, err := s.showtimeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return showtime, nil
}

func (s *catalogService) GetShowtimesByMovieID(ctx context.Context, movieID uint) ([]model.Showtime, error) {
	return s.showtimeRepo.GetByMovieID(ctx, movieID)
}

// CreateRoom stores a room with its seats, creating the cinema first when it
// has no id yet.
func (s *catalogService) CreateRoom(ctx context.Context, cinema *model.Cinema, room *model.Room, seats []model.Seat) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		venues := s.venueRepo.WithTx(tx)
		if cinema.ID == 0 {
			if err := venues.CreateCinema(ctx, cinema); err != nil {
				return err
			}
		}
		room.CinemaID = cinema.ID
		if err := venues.CreateRoom(ctx, room); err != nil {
			return err
		}
		for i := range seats {
			seats[i].RoomID = room.ID
			if seats[i].Type == "" {
				seats[i].Type = pricing.SeatStandard
			}
		}
		return venues.CreateSeats(ctx, seats)
	})
}

func (s *catalogService) GetRoom(ctx context.Context, id uint) (*model.Room, error) {
	room, err := s.venueRepo.GetRoom(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return room, nil
}

func (s *catalogService) GetCinema(ctx context.Context, id uint) (*model.Cinema, error) {
	cinema, err := s.venueRepo.GetCinema(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return cinema, nil
}

func (s *catalogService) GetSeat(ctx context.Context, id uint) (*model.Seat, error) {
	seat, err := s.venueRepo.GetSeat(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return seat, nil
}

func (s *catalogService) GetSeats(ctx context.Context, ids []uint) ([]model.Seat, error) {
	return s.venueRepo.GetSeatsByIDs(ctx, ids)
}

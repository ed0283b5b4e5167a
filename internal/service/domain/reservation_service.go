package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/cache"
	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service"
)

const DefaultHoldTTL = 5 * time.Minute

// ReservationHandle identifies the seats claimed by one Reserve call.
type ReservationHandle struct {
	ID          string    `json:"id"`
	ShowtimeID  uint      `json:"showtime_id"`
	SeatIDs     []uint    `json:"seat_ids"`
	HolderToken string    `json:"-"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type ReservationService interface {
	Reserve(ctx context.Context, showtimeID uint, seatIDs []uint, holderToken string, ttl time.Duration) (*ReservationHandle, error)
	Release(ctx context.Context, handle *ReservationHandle) error
	Confirm(ctx context.Context, handle *ReservationHandle) error
	SweepExpired(ctx context.Context) (int, error)
	AvailableSeats(ctx context.Context, showtimeID uint) (*cache.SeatMap, error)
}

type reservationService struct {
	db           *gorm.DB
	showtimeRepo repository.ShowtimeRepo
	venueRepo    repository.VenueRepo
	claimRepo    repository.ClaimRepo
	ticketRepo   repository.TicketRepo
	cache        SeatMapCache
	clock        clock.Clock
	logger       *zap.Logger
	holdTTL      time.Duration
}

var _ ReservationService = (*reservationService)(nil)

type ReservationOption func(*reservationService)

// WithHoldTTL sets the claim lifetime used when Reserve is given no TTL.
func WithHoldTTL(ttl time.Duration) ReservationOption {
	return func(s *reservationService) {
		if ttl > 0 {
			s.holdTTL = ttl
		}
	}
}

func NewReservationService(
	db *gorm.DB,
	showtimeRepo repository.ShowtimeRepo,
	venueRepo repository.VenueRepo,
	claimRepo repository.ClaimRepo,
	ticketRepo repository.TicketRepo,
	seatCache SeatMapCache,
	clk clock.Clock,
	logger *zap.Logger,
	opts ...ReservationOption,
) *reservationService {
	s := &reservationService{
		db:           db,
		showtimeRepo: showtimeRepo,
		venueRepo:    venueRepo,
		claimRepo:    claimRepo,
		ticketRepo:   ticketRepo,
		cache:        seatCache,
		clock:        clk,
		logger:       logger,
		holdTTL:      DefaultHoldTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reserve claims every seat in seatIDs for holderToken, or none of them.
// Repeating a call whose claims are all still live returns the same handle.
func (s *reservationService) Reserve(ctx context.Context, showtimeID uint, seatIDs []uint, holderToken string, ttl time.Duration) (*ReservationHandle, error) {
	seats, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}
	if holderToken == "" {
		return nil, service.ErrInvalidHolder
	}
	if ttl <= 0 {
		ttl = s.holdTTL
	}

	showtime, err := s.showtimeRepo.GetByID(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("showtime %d: %w", showtimeID, service.ErrNotFound)
		}
		return nil, err
	}
	if err := s.checkSeatsInRoom(ctx, showtime.RoomID, seats); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if handle, ok, err := s.existingHandle(ctx, showtimeID, seats, holderToken, now); err != nil || ok {
		return handle, err
	}

	handle := &ReservationHandle{
		ID:          handleID(showtimeID, seats, holderToken),
		ShowtimeID:  showtimeID,
		SeatIDs:     seats,
		HolderToken: holderToken,
		ExpiresAt:   now.Add(ttl),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claims := s.claimRepo.WithTx(tx)
		var contested []uint
		for _, seatID := range seats {
			ok, err := claims.Acquire(ctx, &model.SeatClaim{
				ID:          uuid.NewString(),
				HandleID:    handle.ID,
				ShowtimeID:  showtimeID,
				SeatID:      seatID,
				HolderToken: holderToken,
				ExpiresAt:   handle.ExpiresAt,
				CreatedAt:   now,
			}, now)
			if err != nil {
				return fmt.Errorf("acquire seat %d: %w", seatID, err)
			}
			if !ok {
				contested = append(contested, seatID)
			}
		}

		// Checked after the claims are taken: an upsert that waited on a
		// materializing order sees its tickets here once that order commits.
		sold, err := s.ticketRepo.WithTx(tx).LiveSeatIDs(ctx, showtimeID, seats)
		if err != nil {
			return err
		}
		contested = append(contested, sold...)
		if len(contested) > 0 {
			return service.NewSeatConflictError(showtimeID, contested)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("seats reserved",
		zap.String("handle_id", handle.ID),
		zap.Uint("showtime_id", showtimeID),
		zap.Int("seats", len(seats)),
		zap.Time("expires_at", handle.ExpiresAt))
	invalidateSeatMap(ctx, s.cache, s.logger, showtimeID)
	return handle, nil
}

// handleID names the hold of seats by holderToken. Identical requests racing
// each other end up on the same handle.
func handleID(showtimeID uint, seats []uint, holderToken string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s", showtimeID, holderToken)
	for _, id := range seats {
		fmt.Fprintf(&b, "|%d", id)
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String())).String()
}

// existingHandle finds a live reservation by the same holder covering
// exactly the requested seats.
func (s *reservationService) existingHandle(ctx context.Context, showtimeID uint, seats []uint, holderToken string, now time.Time) (*ReservationHandle, bool, error) {
	claims, err := s.claimRepo.ListLiveByHolder(ctx, showtimeID, holderToken, now)
	if err != nil {
		return nil, false, err
	}
	if len(claims) != len(seats) {
		return nil, false, nil
	}
	handleID := claims[0].HandleID
	expiresAt := claims[0].ExpiresAt
	for i, c := range claims {
		if c.HandleID != handleID || c.SeatID != seats[i] {
			return nil, false, nil
		}
		if c.ExpiresAt.Before(expiresAt) {
			expiresAt = c.ExpiresAt
		}
	}
	return &ReservationHandle{
		ID:          handleID,
		ShowtimeID:  showtimeID,
		SeatIDs:     seats,
		HolderToken: holderToken,
		ExpiresAt:   expiresAt,
	}, true, nil
}

func (s *reservationService) checkSeatsInRoom(ctx context.Context, roomID uint, seatIDs []uint) error {
	seats, err := s.venueRepo.GetSeatsByIDs(ctx, seatIDs)
	if err != nil {
		return err
	}
	if len(seats) != len(seatIDs) {
		return fmt.Errorf("unknown seat in selection: %w", service.ErrInvalidSeatSelection)
	}
	for _, seat := range seats {
		if seat.RoomID != roomID {
			return fmt.Errorf("seat %d is not in the showtime's room: %w", seat.ID, service.ErrInvalidSeatSelection)
		}
	}
	return nil
}

// Release drops the claims of handle. Releasing twice is harmless.
// Release drops the claims of handle. Claims taken by another holder are
// not touched.
func (s *reservationService) Release(ctx context.Context, handle *ReservationHandle) error {
	if handle.HolderToken == "" {
		return service.ErrInvalidHolder
	}
	n, err := s.claimRepo.DeleteByHandle(ctx, handle.ID, handle.HolderToken)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("seats released", zap.String("handle_id", handle.ID), zap.Int("seats", n))
		invalidateSeatMap(ctx, s.cache, s.logger, handle.ShowtimeID)
	}
	return nil
}

// Confirm checks that every claim of handle is still live.
func (s *reservationService) Confirm(ctx context.Context, handle *ReservationHandle) error {
	claims, err := s.claimRepo.ListByHandle(ctx, handle.ID)
	if err != nil {
		return err
	}
	if len(claims) != len(handle.SeatIDs) {
		return service.ErrExpiredReservation
	}
	now := s.clock.Now()
	for _, c := range claims {
		if !c.ExpiresAt.After(now) {
			return service.ErrExpiredReservation
		}
	}
	return nil
}

func (s *reservationService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.claimRepo.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, err
	}
	showtimes := make(map[uint]struct{})
	for _, c := range expired {
		showtimes[c.ShowtimeID] = struct{}{}
	}
	for id := range showtimes {
		invalidateSeatMap(ctx, s.cache, s.logger, id)
	}
	return len(expired), nil
}

// AvailableSeats returns every seat of the showtime's room with its current
// status, from cache when possible.
func (s *reservationService) AvailableSeats(ctx context.Context, showtimeID uint) (*cache.SeatMap, error) {
	var version int64
	if s.cache != nil {
		seatMap, ok, err := s.cache.GetSeatMap(ctx, showtimeID)
		if err == nil && ok {
			return seatMap, nil
		}
		if err != nil {
			s.logger.Warn("seat map cache read failed", zap.Uint("showtime_id", showtimeID), zap.Error(err))
		}
		if version, err = s.cache.SeatMapVersion(ctx, showtimeID); err != nil {
			s.logger.Warn("seat map version read failed", zap.Uint("showtime_id", showtimeID), zap.Error(err))
		}
	}

	seatMap, err := s.loadSeatMap(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if _, err := s.cache.PutSeatMap(ctx, showtimeID, version, seatMap); err != nil {
			s.logger.Warn("seat map cache write failed", zap.Uint("showtime_id", showtimeID), zap.Error(err))
		}
	}
	return seatMap, nil
}

func (s *reservationService) loadSeatMap(ctx context.Context, showtimeID uint) (*cache.SeatMap, error) {
	showtime, err := s.showtimeRepo.GetByID(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("showtime %d: %w", showtimeID, service.ErrNotFound)
		}
		return nil, err
	}
	seats, err := s.venueRepo.ListSeatsByRoom(ctx, showtime.RoomID)
	if err != nil {
		return nil, err
	}
	claims, err := s.claimRepo.ListLiveByShowtime(ctx, showtimeID, s.clock.Now())
	if err != nil {
		return nil, err
	}
	sold, err := s.ticketRepo.LiveSeatIDs(ctx, showtimeID, nil)
	if err != nil {
		return nil, err
	}

	status := make(map[uint]cache.SeatStatus, len(claims)+len(sold))
	for _, c := range claims {
		status[c.SeatID] = cache.SeatHeld
	}
	for _, id := range sold {
		status[id] = cache.SeatSold
	}

	seatMap := &cache.SeatMap{ShowtimeID: showtimeID, Seats: make([]cache.SeatState, len(seats))}
	for i, seat := range seats {
		st, ok := status[seat.ID]
		if !ok {
			st = cache.SeatAvailable
		}
		seatMap.Seats[i] = cache.SeatState{
			SeatID: seat.ID,
			Row:    seat.Row,
			Column: seat.Column,
			Type:   string(seat.Type),
			Price:  int64(pricing.SeatPrice(showtime.BasePrice, seat.Type)),
			Status: st,
		}
	}
	return seatMap, nil
}

// normalizeSeatIDs rejects empty and duplicate selections and returns the
// ids in ascending order.
func normalizeSeatIDs(seatIDs []uint) ([]uint, error) {
	if len(seatIDs) == 0 {
		return nil, fmt.Errorf("no seats selected: %w", service.ErrInvalidSeatSelection)
	}
	seen := make(map[uint]struct{}, len(seatIDs))
	out := make([]uint, 0, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("seat %d selected twice: %w", id, service.ErrInvalidSeatSelection)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

package domain

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service"
)

type TicketService interface {
	GetByToken(ctx context.Context, token string) (*model.Ticket, error)
	CheckIn(ctx context.Context, token string) (*model.Ticket, error)
}

type ticketService struct {
	ticketRepo repository.TicketRepo
	clock      clock.Clock
	logger     *zap.Logger
}

var _ TicketService = (*ticketService)(nil)

func NewTicketService(ticketRepo repository.TicketRepo, clk clock.Clock, logger *zap.Logger) *ticketService {
	return &ticketService{
		ticketRepo: ticketRepo,
		clock:      clk,
		logger:     logger,
	}
}

func (s *ticketService) GetByToken(ctx context.Context, token string) (*model.Ticket, error) {
	ticket, err := s.ticketRepo.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}
	return ticket, nil
}

// CheckIn admits the holder of a paid ticket. A ticket can be checked in
// only once.
func (s *ticketService) CheckIn(ctx context.Context, token string) (*model.Ticket, error) {
	n, err := s.ticketRepo.CheckIn(ctx, token, s.clock.Now())
	if err != nil {
		return nil, err
	}
	ticket, err := s.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		if ticket.Status == model.TicketUsed {
			return nil, service.ErrTicketUsed
		}
		return nil, service.ErrTicketNotPaid
	}
	s.logger.Info("ticket checked in", zap.String("ticket_id", ticket.ID), zap.Uint("seat_id", ticket.SeatID))
	return ticket, nil
}

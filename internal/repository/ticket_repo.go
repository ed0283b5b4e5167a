package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/model"
)

type TicketRepo interface {
	WithTx(tx *gorm.DB) TicketRepo
	GetByToken(ctx context.Context, token string) (*model.Ticket, error)
	LiveSeatIDs(ctx context.Context, showtimeID uint, seatIDs []uint) ([]uint, error)
	SetStatusByOrder(ctx context.Context, orderID string, from []model.TicketStatus, to model.TicketStatus) (int, error)
	CheckIn(ctx context.Context, token string, now time.Time) (int, error)
}

type ticketRepoGorm struct {
	db *gorm.DB
}

var _ TicketRepo = (*ticketRepoGorm)(nil)

func NewTicketRepoGorm(db *gorm.DB) *ticketRepoGorm {
	return &ticketRepoGorm{db: db}
}

func (r *ticketRepoGorm) WithTx(tx *gorm.DB) TicketRepo {
	return &ticketRepoGorm{db: tx}
}

func (r *ticketRepoGorm) GetByToken(ctx context.Context, token string) (*model.Ticket, error) {
	ticket, err := gorm.G[model.Ticket](r.db).Where("token = ?", token).First(ctx)
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// LiveSeatIDs returns which of seatIDs already carry a non-cancelled ticket
// for the showtime. A nil seatIDs checks every seat of the showtime.
func (r *ticketRepoGorm) LiveSeatIDs(ctx context.Context, showtimeID uint, seatIDs []uint) ([]uint, error) {
	q := gorm.G[model.Ticket](r.db).Where("showtime_id = ? AND status <> ?", showtimeID, model.TicketCancelled)
	if seatIDs != nil {
		q = q.Where("seat_id IN ?", seatIDs)
	}
	tickets, err := q.Select("seat_id").Find(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(tickets))
	for i, t := range tickets {
		ids[i] = t.SeatID
	}
	return ids, nil
}

func (r *ticketRepoGorm) SetStatusByOrder(ctx context.Context, orderID string, from []model.TicketStatus, to model.TicketStatus) (int, error) {
	return gorm.G[model.Ticket](r.db).Where("order_id = ? AND status IN ?", orderID, from).Update(ctx, "status", to)
}

// CheckIn marks a paid ticket as used. Zero rows means the ticket is
// missing, unpaid or already used.
func (r *ticketRepoGorm) CheckIn(ctx context.Context, token string, now time.Time) (int, error) {
	res := r.db.WithContext(ctx).Model(&model.Ticket{}).
		Where("token = ? AND status = ? AND used = ?", token, model.TicketPaid, false).
		Updates(map[string]any{
			"status":  model.TicketUsed,
			"used":    true,
			"used_at": now,
		})
	return int(res.RowsAffected), res.Error
}

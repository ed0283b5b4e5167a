package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/qs-lzh/seat-booking/internal/pricing"
)

type Movie struct {
	ID              uint   `gorm:"primaryKey"`
	Title           string `gorm:"size:100;not null;uniqueIndex"`
	Description     string `gorm:"type:text"`
	DurationMinutes int    `gorm:"not null"`
}

type Cinema struct {
	ID      uint   `gorm:"primaryKey"`
	Name    string `gorm:"size:100;not null"`
	Address string `gorm:"size:255"`
}

type Room struct {
	ID       uint   `gorm:"primaryKey"`
	CinemaID uint   `gorm:"not null;index"`
	Name     string `gorm:"size:64;not null"`
}

type Seat struct {
	ID     uint             `gorm:"primaryKey"`
	RoomID uint             `gorm:"not null;uniqueIndex:idx_room_seat_position"`
	Row    string           `gorm:"column:seat_row;size:8;not null;uniqueIndex:idx_room_seat_position"`
	Column int              `gorm:"column:seat_col;not null;uniqueIndex:idx_room_seat_position"`
	Type   pricing.SeatType `gorm:"type:varchar(16);not null"`
}

type Showtime struct {
	ID        uint          `gorm:"primaryKey"`
	MovieID   uint          `gorm:"not null;index"`
	RoomID    uint          `gorm:"not null;index"`
	StartAt   time.Time     `gorm:"not null"`
	EndAt     time.Time     `gorm:"not null"`
	BasePrice pricing.Money `gorm:"not null"`
}

// SeatClaim is a time-bounded exclusive hold of one seat for one showtime.
// A row whose ExpiresAt has passed counts as absent.
type SeatClaim struct {
	ID          string    `gorm:"primaryKey;size:36"`
	HandleID    string    `gorm:"size:36;not null;index"`
	ShowtimeID  uint      `gorm:"not null;uniqueIndex:idx_claim_showtime_seat"`
	SeatID      uint      `gorm:"not null;uniqueIndex:idx_claim_showtime_seat"`
	HolderToken string    `gorm:"size:128;not null;index"`
	ExpiresAt   time.Time `gorm:"not null;index"`
	CreatedAt   time.Time
}

type Coupon struct {
	ID                uint                 `gorm:"primaryKey"`
	Code              string               `gorm:"size:64;not null;uniqueIndex"`
	DiscountType      pricing.DiscountType `gorm:"type:varchar(16);not null"`
	Value             decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	MinOrderAmount    pricing.Money        `gorm:"not null"`
	MaxDiscountAmount pricing.Money        `gorm:"not null"`
	TotalQuantity     int                  `gorm:"not null"`
	UsedQuantity      int                  `gorm:"not null"`
	RemainingQuantity int                  `gorm:"not null"`
	StartDate         time.Time            `gorm:"not null"`
	EndDate           time.Time            `gorm:"not null"`
	Active            bool                 `gorm:"not null"`
}

// CouponRedemption records one use of a coupon by an order. RestoredAt is
// set at most once, when the order is cancelled.
type CouponRedemption struct {
	ID         uint       `gorm:"primaryKey"`
	CouponID   uint       `gorm:"not null;index"`
	OrderID    string     `gorm:"size:36;not null;uniqueIndex"`
	RedeemedAt time.Time  `gorm:"not null"`
	RestoredAt *time.Time
}

type Event struct {
	ID                 uint            `gorm:"primaryKey"`
	Code               string          `gorm:"size:64;not null;uniqueIndex"`
	Name               string          `gorm:"size:100;not null"`
	DiscountPercentage decimal.Decimal `gorm:"type:decimal(5,2);not null"`
	MinOrderAmount     pricing.Money   `gorm:"not null"`
	MaxDiscountAmount  pricing.Money   `gorm:"not null"`
	StartDate          time.Time       `gorm:"not null"`
	EndDate            time.Time       `gorm:"not null"`
	Active             bool            `gorm:"not null"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID             string        `gorm:"primaryKey;size:36"`
	ShowtimeID     uint          `gorm:"not null;index"`
	HolderToken    string        `gorm:"size:128;not null;index"`
	CustomerName   string        `gorm:"size:100;not null"`
	CustomerEmail  string        `gorm:"size:255;not null"`
	CustomerPhone  string        `gorm:"size:32"`
	Subtotal       pricing.Money `gorm:"not null"`
	DiscountAmount pricing.Money `gorm:"not null"`
	TotalPrice     pricing.Money `gorm:"not null"`
	CouponID       *uint         `gorm:"index"`
	EventID        *uint         `gorm:"index"`
	Status         OrderStatus   `gorm:"type:varchar(16);not null;index"`
	Tickets        []Ticket      `gorm:"foreignKey:OrderID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type TicketStatus string

const (
	TicketPending   TicketStatus = "PENDING"
	TicketPaid      TicketStatus = "PAID"
	TicketUsed      TicketStatus = "USED"
	TicketCancelled TicketStatus = "CANCELLED"
)

// Ticket holds one seat of an order. At most one non-cancelled ticket may
// exist per showtime seat.
type Ticket struct {
	ID         string        `gorm:"primaryKey;size:36"`
	OrderID    string        `gorm:"size:36;not null;index"`
	ShowtimeID uint          `gorm:"not null;uniqueIndex:idx_ticket_live_seat,where:status <> 'CANCELLED'"`
	SeatID     uint          `gorm:"not null;uniqueIndex:idx_ticket_live_seat,where:status <> 'CANCELLED'"`
	Price      pricing.Money `gorm:"not null"`
	Token      string        `gorm:"size:64;not null;uniqueIndex"`
	Used       bool          `gorm:"not null"`
	UsedAt     *time.Time
	Status     TicketStatus `gorm:"type:varchar(16);not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "INITIATED"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentExpired   PaymentStatus = "EXPIRED"
)

func (s PaymentStatus) Terminal() bool {
	return s != PaymentInitiated
}

type PaymentIntent struct {
	ID            string        `gorm:"primaryKey;size:36"`
	OrderID       string        `gorm:"size:36;not null;index"`
	GatewayRef    string        `gorm:"size:128;not null;uniqueIndex"`
	Amount        pricing.Money `gorm:"not null"`
	Method        string        `gorm:"size:32;not null"`
	Status        PaymentStatus `gorm:"type:varchar(16);not null;index"`
	RedirectURL   string        `gorm:"type:text"`
	Deadline      time.Time     `gorm:"not null;index"`
	FailureReason string        `gorm:"size:255"`
	CompletedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// All lists every persisted model, in migration order.
func All() []any {
	return []any{
		&Movie{}, &Cinema{}, &Room{}, &Seat{}, &Showtime{},
		&SeatClaim{},
		&Coupon{}, &CouponRedemption{}, &Event{},
		&Order{}, &Ticket{},
		&PaymentIntent{},
	}
}

// Package domaintest builds the booking services over an in-memory database
// seeded with a small cinema, for tests.
package domaintest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/internal/cache"
	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/database/dbtest"
	"github.com/qs-lzh/seat-booking/internal/gateway"
	"github.com/qs-lzh/seat-booking/internal/model"
	"github.com/qs-lzh/seat-booking/internal/mq"
	"github.com/qs-lzh/seat-booking/internal/pricing"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
)

// T0 is the fixture's starting time.
var T0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const BasePrice pricing.Money = 100_000

const (
	HoldTTL  = 5 * time.Minute
	Deadline = 15 * time.Minute
	Secret   = "test-secret"
)

const (
	CouponSave10   = "SAVE10"
	CouponFlat     = "FLAT5K"
	CouponExpired  = "OLD"
	CouponInactive = "OFF"
	CouponUsedUp   = "GONE"
	EventSummer    = "SUMMER20"
	EventFuture    = "FUTURE"
)

type Fixture struct {
	DB     *gorm.DB
	Clock  *clock.Manual
	Logger *zap.Logger

	Showtime  *model.Showtime
	Seats     map[string]model.Seat
	OtherSeat model.Seat
	Coupons   map[string]*model.Coupon
	Events    map[string]*model.Event

	Gateway   *FakeGateway
	Signer    *gateway.Signer
	Publisher *RecordingPublisher
	Cache     *FakeSeatCache

	Catalog      domain.CatalogService
	Reservations domain.ReservationService
	Discounts    domain.DiscountService
	Orders       domain.OrderService
	Payments     domain.PaymentService
	Tickets      domain.TicketService
}

// New seeds one showtime in a room with seats A1-A4 (standard), V1 (VIP)
// and C1 (couple), plus a second room holding OtherSeat.
func New(t testing.TB) *Fixture {
	t.Helper()
	ctx := context.Background()

	db := dbtest.New(t)
	f := &Fixture{
		DB:        db,
		Clock:     clock.NewManual(T0),
		Logger:    zap.NewNop(),
		Seats:     make(map[string]model.Seat),
		Coupons:   make(map[string]*model.Coupon),
		Events:    make(map[string]*model.Event),
		Gateway:   &FakeGateway{},
		Signer:    gateway.NewSigner(Secret),
		Publisher: &RecordingPublisher{},
		Cache:     NewFakeSeatCache(),
	}

	movieRepo := repository.NewMovieRepoGorm(db)
	showtimeRepo := repository.NewShowtimeRepoGorm(db)
	venueRepo := repository.NewVenueRepoGorm(db)
	claimRepo := repository.NewClaimRepoGorm(db)
	couponRepo := repository.NewCouponRepoGorm(db)
	eventRepo := repository.NewEventRepoGorm(db)
	orderRepo := repository.NewOrderRepoGorm(db)
	ticketRepo := repository.NewTicketRepoGorm(db)
	paymentRepo := repository.NewPaymentRepoGorm(db)

	f.Catalog = domain.NewCatalogService(db, movieRepo, showtimeRepo, venueRepo)
	f.Reservations = domain.NewReservationService(db, showtimeRepo, venueRepo, claimRepo, ticketRepo,
		f.Cache, f.Clock, f.Logger, domain.WithHoldTTL(HoldTTL))
	f.Discounts = domain.NewDiscountService(couponRepo, eventRepo)
	orders := domain.NewOrderService(db, orderRepo, ticketRepo, claimRepo, couponRepo, f.Cache, f.Clock, f.Logger)
	f.Orders = orders
	f.Payments = domain.NewPaymentService(db, paymentRepo, orders, f.Gateway, f.Signer, f.Publisher, f.Publisher,
		f.Cache, f.Clock, f.Logger, domain.PaymentConfig{
			Deadline:     Deadline,
			ReturnURL:    "https://shop.example/return",
			CancelURL:    "https://shop.example/cancel",
			RetryBackoff: time.Millisecond,
		})
	f.Tickets = domain.NewTicketService(ticketRepo, f.Clock, f.Logger)

	cinema := &model.Cinema{Name: "Central", Address: "1 Main St"}
	room := &model.Room{Name: "Hall 1"}
	seats := []model.Seat{
		{Row: "A", Column: 1, Type: pricing.SeatStandard},
		{Row: "A", Column: 2, Type: pricing.SeatStandard},
		{Row: "A", Column: 3, Type: pricing.SeatStandard},
		{Row: "A", Column: 4, Type: pricing.SeatStandard},
		{Row: "V", Column: 1, Type: pricing.SeatVIP},
		{Row: "C", Column: 1, Type: pricing.SeatCouple},
	}
	must(t, f.Catalog.CreateRoom(ctx, cinema, room, seats))
	for _, s := range seats {
		f.Seats[fmt.Sprintf("%s%d", s.Row, s.Column)] = s
	}

	other := &model.Room{Name: "Hall 2"}
	otherSeats := []model.Seat{{Row: "X", Column: 1, Type: pricing.SeatStandard}}
	must(t, f.Catalog.CreateRoom(ctx, cinema, other, otherSeats))
	f.OtherSeat = otherSeats[0]

	movie := &model.Movie{Title: "The Long Queue", DurationMinutes: 120}
	must(t, f.Catalog.CreateMovie(ctx, movie))
	showtime, err := f.Catalog.CreateShowtime(ctx, movie.ID, room.ID, T0.Add(48*time.Hour), BasePrice)
	must(t, err)
	f.Showtime = showtime

	window := func(c *model.Coupon) {
		c.StartDate = T0.Add(-24 * time.Hour)
		c.EndDate = T0.Add(30 * 24 * time.Hour)
		c.Active = true
	}
	coupons := []*model.Coupon{
		{Code: CouponSave10, DiscountType: pricing.DiscountPercentage, Value: decimal.NewFromInt(10),
			MinOrderAmount: 100_000, MaxDiscountAmount: 15_000, TotalQuantity: 5},
		{Code: CouponFlat, DiscountType: pricing.DiscountFixed, Value: decimal.NewFromInt(5_000), TotalQuantity: 100},
		{Code: CouponExpired, DiscountType: pricing.DiscountFixed, Value: decimal.NewFromInt(1_000), TotalQuantity: 10},
		{Code: CouponInactive, DiscountType: pricing.DiscountFixed, Value: decimal.NewFromInt(1_000), TotalQuantity: 10},
		{Code: CouponUsedUp, DiscountType: pricing.DiscountFixed, Value: decimal.NewFromInt(1_000), TotalQuantity: 1, UsedQuantity: 1},
	}
	for _, c := range coupons {
		window(c)
		switch c.Code {
		case CouponExpired:
			c.EndDate = T0.Add(-time.Hour)
		case CouponInactive:
			c.Active = false
		}
		must(t, couponRepo.Create(ctx, c))
		f.Coupons[c.Code] = c
	}

	events := []*model.Event{
		{Code: EventSummer, Name: "Summer", DiscountPercentage: decimal.NewFromInt(20),
			StartDate: T0.Add(-time.Hour), EndDate: T0.Add(24 * time.Hour), Active: true},
		{Code: EventFuture, Name: "Later", DiscountPercentage: decimal.NewFromInt(50),
			StartDate: T0.Add(7 * 24 * time.Hour), EndDate: T0.Add(8 * 24 * time.Hour), Active: true},
	}
	for _, e := range events {
		must(t, eventRepo.Create(ctx, e))
		f.Events[e.Code] = e
	}

	return f
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
}

// SeatIDs maps seat labels such as "A1" to their ids.
func (f *Fixture) SeatIDs(labels ...string) []uint {
	ids := make([]uint, len(labels))
	for i, l := range labels {
		seat, ok := f.Seats[l]
		if !ok {
			panic("unknown seat " + l)
		}
		ids[i] = seat.ID
	}
	return ids
}

// Coupon reloads a coupon by code.
func (f *Fixture) Coupon(t testing.TB, code string) *model.Coupon {
	t.Helper()
	c, err := repository.NewCouponRepoGorm(f.DB).GetByCode(context.Background(), code)
	must(t, err)
	return c
}

// Order reloads an order with its tickets.
func (f *Fixture) Order(t testing.TB, id string) *model.Order {
	t.Helper()
	o, err := repository.NewOrderRepoGorm(f.DB).GetByID(context.Background(), id)
	must(t, err)
	return o
}

// Intent reloads a payment intent.
func (f *Fixture) Intent(t testing.TB, id string) *model.PaymentIntent {
	t.Helper()
	i, err := repository.NewPaymentRepoGorm(f.DB).GetByID(context.Background(), id)
	must(t, err)
	return i
}

// Claims returns every claim row of the showtime, expired or not.
func (f *Fixture) Claims(t testing.TB) []model.SeatClaim {
	t.Helper()
	var claims []model.SeatClaim
	must(t, f.DB.Where("showtime_id = ?", f.Showtime.ID).Order("seat_id").Find(&claims).Error)
	return claims
}

// PendingOrder reserves labels for holder and materializes them with the
// optional coupon.
func (f *Fixture) PendingOrder(t testing.TB, holder, couponCode string, labels ...string) *model.Order {
	t.Helper()
	ctx := context.Background()

	handle, err := f.Reservations.Reserve(ctx, f.Showtime.ID, f.SeatIDs(labels...), holder, 0)
	must(t, err)

	seats, err := f.Catalog.GetSeats(ctx, handle.SeatIDs)
	must(t, err)
	priced := make([]pricing.PricedSeat, len(seats))
	for i, s := range seats {
		priced[i] = pricing.PricedSeat{SeatID: s.ID, Type: s.Type}
	}
	outcome, err := f.Discounts.ValidateSelection(ctx, couponCode, "", pricing.Subtotal(BasePrice, priced), f.Clock.Now())
	must(t, err)

	order, err := f.Orders.Materialize(ctx, domain.MaterializeInput{
		Handle:   handle,
		Discount: outcome,
		Customer: domain.Customer{Name: "Ada", Email: "ada@example.com"},
		Total:    pricing.Price(BasePrice, priced, outcome),
	})
	must(t, err)
	return order
}

// SignedCallback builds a correctly signed callback.
func (f *Fixture) SignedCallback(ref string, outcome gateway.Outcome, amount pricing.Money) gateway.Callback {
	return f.Signer.SignCallback(gateway.Callback{GatewayRef: ref, Outcome: outcome, Amount: amount})
}

// FakeGateway hands out sequential references and can be made to fail.
type FakeGateway struct {
	mu     sync.Mutex
	Err    error
	Opened []gateway.OpenRequest
}

func (g *FakeGateway) OpenIntent(ctx context.Context, req gateway.OpenRequest) (*gateway.OpenResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, g.Err
	}
	g.Opened = append(g.Opened, req)
	ref := fmt.Sprintf("gw-%d", len(g.Opened))
	return &gateway.OpenResponse{GatewayRef: ref, RedirectURL: "https://pay.example/" + ref}, nil
}

// RecordingPublisher records scheduled expiries and paid orders.
type RecordingPublisher struct {
	mu       sync.Mutex
	expiries []mq.PaymentExpiryMessage
	paid     []mq.OrderPaidMessage
}

func (p *RecordingPublisher) SchedulePaymentExpiry(ctx context.Context, msg mq.PaymentExpiryMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expiries = append(p.expiries, msg)
	return nil
}

func (p *RecordingPublisher) PublishOrderPaid(ctx context.Context, msg mq.OrderPaidMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, msg)
	return nil
}

func (p *RecordingPublisher) Expiries() []mq.PaymentExpiryMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mq.PaymentExpiryMessage(nil), p.expiries...)
}

func (p *RecordingPublisher) Paid() []mq.OrderPaidMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mq.OrderPaidMessage(nil), p.paid...)
}

// FakeSeatCache is an in-memory seat map cache with the same version guard
// as the redis one.
type FakeSeatCache struct {
	mu            sync.Mutex
	maps          map[uint]*cache.SeatMap
	versions      map[uint]int64
	invalidations map[uint]int
}

func NewFakeSeatCache() *FakeSeatCache {
	return &FakeSeatCache{
		maps:          make(map[uint]*cache.SeatMap),
		versions:      make(map[uint]int64),
		invalidations: make(map[uint]int),
	}
}

func (c *FakeSeatCache) GetSeatMap(ctx context.Context, showtimeID uint) (*cache.SeatMap, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.maps[showtimeID]
	return m, ok, nil
}

func (c *FakeSeatCache) SeatMapVersion(ctx context.Context, showtimeID uint) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[showtimeID], nil
}

func (c *FakeSeatCache) PutSeatMap(ctx context.Context, showtimeID uint, version int64, seatMap *cache.SeatMap) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[showtimeID] != version {
		return false, nil
	}
	c.maps[showtimeID] = seatMap
	return true, nil
}

func (c *FakeSeatCache) InvalidateSeatMap(ctx context.Context, showtimeID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[showtimeID]++
	delete(c.maps, showtimeID)
	c.invalidations[showtimeID]++
	return nil
}

func (c *FakeSeatCache) Invalidated(showtimeID uint) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations[showtimeID]
}

package app

import (
	"context"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs-lzh/seat-booking/config"
	"github.com/qs-lzh/seat-booking/internal/cache"
	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/gateway"
	"github.com/qs-lzh/seat-booking/internal/mq"
	"github.com/qs-lzh/seat-booking/internal/repository"
	"github.com/qs-lzh/seat-booking/internal/service/domain"
	"github.com/qs-lzh/seat-booking/internal/service/workflow"
)

type App struct {
	Config *config.Config

	DB        *gorm.DB
	Cache     *cache.RedisCache
	Logger    *zap.Logger
	MQConn    *amqp.Connection
	Publisher *mq.Publisher
	Clock     clock.Clock

	Signer      *gateway.Signer
	Gateway     gateway.Client
	MockGateway *gateway.MockGateway

	CatalogService     domain.CatalogService
	ReservationService domain.ReservationService
	DiscountService    domain.DiscountService
	OrderService       domain.OrderService
	PaymentService     domain.PaymentService
	TicketService      domain.TicketService

	BookingWorkflow *workflow.BookingWorkflow
	PaymentWorkflow *workflow.PaymentWorkflow
	OrderWorkflow   *workflow.OrderWorkflow
}

// New wires the application. redisCache and mqConn may be nil, in which case
// the seat map is always read from the database and payment expiry relies on
// the sweeper alone.
func New(cfg *config.Config, db *gorm.DB, redisCache *cache.RedisCache, mqConn *amqp.Connection, logger *zap.Logger, clk clock.Clock) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
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

	var seatCache domain.SeatMapCache
	if redisCache != nil {
		seatCache = redisCache
	}

	var (
		publisher *mq.Publisher
		scheduler domain.ExpiryScheduler
		events    domain.OrderEventPublisher
	)
	if mqConn != nil {
		var err error
		if publisher, err = mq.NewPublisher(mqConn); err != nil {
			return nil, err
		}
		scheduler, events = publisher, publisher
	}

	signer := gateway.NewSigner(cfg.Gateway.Secret)
	var (
		gw   gateway.Client
		mock *gateway.MockGateway
	)
	if cfg.Gateway.BaseURL != "" {
		gw = gateway.NewHTTPClient(cfg.Gateway.BaseURL, signer)
	} else {
		// only reachable in dev, Validate requires a gateway URL elsewhere
		mock = gateway.NewMockGateway("http://localhost"+cfg.Addr, signer, logger)
		gw = mock
	}

	catalogService := domain.NewCatalogService(db, movieRepo, showtimeRepo, venueRepo)
	reservationService := domain.NewReservationService(db, showtimeRepo, venueRepo, claimRepo, ticketRepo,
		seatCache, clk, logger, domain.WithHoldTTL(cfg.HoldTTL))
	discountService := domain.NewDiscountService(couponRepo, eventRepo)
	orderService := domain.NewOrderService(db, orderRepo, ticketRepo, claimRepo, couponRepo, seatCache, clk, logger)
	paymentService := domain.NewPaymentService(db, paymentRepo, orderService, gw, signer, scheduler, events,
		seatCache, clk, logger, domain.PaymentConfig{
			Deadline:  cfg.PaymentDeadline,
			ReturnURL: cfg.Gateway.ReturnURL,
			CancelURL: cfg.Gateway.CancelURL,
		})
	ticketService := domain.NewTicketService(ticketRepo, clk, logger)

	bookingWorkflow := workflow.NewBookingWorkflow(reservationService, catalogService, discountService,
		orderService, paymentService, clk, logger)
	paymentWorkflow := workflow.NewPaymentWorkflow(paymentService, reservationService, logger, cfg.SweepInterval)
	orderWorkflow := workflow.NewOrderWorkflow(workflow.LogNotifier{Logger: logger}, logger)

	return &App{
		Config:             cfg,
		DB:                 db,
		Cache:              redisCache,
		Logger:             logger,
		MQConn:             mqConn,
		Publisher:          publisher,
		Clock:              clk,
		Signer:             signer,
		Gateway:            gw,
		MockGateway:        mock,
		CatalogService:     catalogService,
		ReservationService: reservationService,
		DiscountService:    discountService,
		OrderService:       orderService,
		PaymentService:     paymentService,
		TicketService:      ticketService,
		BookingWorkflow:    bookingWorkflow,
		PaymentWorkflow:    paymentWorkflow,
		OrderWorkflow:      orderWorkflow,
	}, nil
}

// Init declares the broker queues, starts the consumers and launches the
// sweeper, which stops when ctx is done.
func (app *App) Init(ctx context.Context) error {
	if app.MQConn != nil {
		if err := mq.InitQueues(app.MQConn, app.Config.PaymentDeadline); err != nil {
			return err
		}
		if err := app.PaymentWorkflow.Start(app.MQConn); err != nil {
			return err
		}
		if err := app.OrderWorkflow.Start(app.MQConn); err != nil {
			return err
		}
	}

	if app.MockGateway != nil && app.Config.IsDev() {
		app.MockGateway.AutoSettle(app.PaymentService.OnCallback)
	}

	go app.PaymentWorkflow.RunSweeper(ctx)

	return nil
}

func (app *App) Close() error {
	var errs []error
	if app.Publisher != nil {
		errs = append(errs, app.Publisher.Close())
	}
	if app.MQConn != nil {
		errs = append(errs, app.MQConn.Close())
	}
	if app.Cache != nil {
		errs = append(errs, app.Cache.Close())
	}
	sqlDB, err := app.DB.DB()
	if err != nil {
		errs = append(errs, err)
	} else {
		errs = append(errs, sqlDB.Close())
	}
	return errors.Join(errs...)
}

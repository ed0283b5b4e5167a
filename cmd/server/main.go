package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/qs-lzh/seat-booking/config"
	"github.com/qs-lzh/seat-booking/internal/app"
	"github.com/qs-lzh/seat-booking/internal/cache"
	"github.com/qs-lzh/seat-booking/internal/clock"
	"github.com/qs-lzh/seat-booking/internal/database"
	"github.com/qs-lzh/seat-booking/internal/handler"
	"github.com/qs-lzh/seat-booking/internal/mq"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	log := newLogger(cfg)
	defer log.Sync()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.String("env", cfg.Env), zap.Error(err))
	}

	dbLogLevel := logger.Warn
	if cfg.IsDev() {
		dbLogLevel = logger.Info
	}
	db, err := database.Open(cfg.DatabaseDSN, log, dbLogLevel)
	if err != nil {
		log.Fatal("failed to open database", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	var redisCache *cache.RedisCache
	if cfg.CacheURL != "" {
		redisCache, err = cache.NewRedisCache(cfg.CacheURL)
		if err != nil {
			log.Fatal("failed to create redis client", zap.Error(err))
		}
		if err := redisCache.Ping(context.Background()); err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
	} else {
		log.Warn("CACHE_URL not set, seat maps are served from the database")
	}

	mqConn, err := dialBroker(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to rabbitmq", zap.Error(err))
	}

	application, err := app.New(cfg, db, redisCache, mqConn, log, clock.NewSystem())
	if err != nil {
		log.Fatal("failed to build app", zap.Error(err))
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Init(ctx); err != nil {
		log.Fatal("failed to init app", zap.Error(err))
	}

	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler.NewRouter(application),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server startup failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) *zap.Logger {
	var (
		log *zap.Logger
		err error
	)
	if cfg.IsDev() {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return log
}

// dialBroker connects to RabbitMQ, retrying with a doubling pause while the
// broker starts up. Without RABBIT_MQ_URL the service runs without a broker.
func dialBroker(cfg *config.Config, log *zap.Logger) (*amqp.Connection, error) {
	if cfg.MQURL == "" {
		log.Warn("RABBIT_MQ_URL not set, payment expiry relies on the sweeper")
		return nil, nil
	}

	backoff := time.Second
	var err error
	for attempt := 1; attempt <= 5; attempt++ {
		var conn *amqp.Connection
		if conn, err = mq.NewMQConn(cfg.MQURL); err == nil {
			return conn, nil
		}
		log.Warn("failed to dial broker", zap.Int("attempt", attempt), zap.Duration("retry_in", backoff), zap.Error(err))
		time.Sleep(backoff)
		backoff *= 2
	}
	return nil, err
}

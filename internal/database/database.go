package database

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/qs-lzh/seat-booking/internal/model"
)

func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// gormWriter sends gorm's log lines to zap.
type gormWriter struct {
	log *zap.SugaredLogger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Infof(format, args...)
}

// Config builds the gorm config for dsn. SQLite errors are translated so
// unique violations surface as gorm.ErrDuplicatedKey; postgres errors are
// left as *pgconn.PgError so callers can read the violated constraint.
func Config(dsn string, log *zap.Logger, level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		TranslateError: !IsPostgres(dsn),
		Logger: logger.New(gormWriter{log: log.Named("gorm").Sugar()}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
	}
}

// Open connects to PostgreSQL when dsn is a postgres URL and to SQLite
// otherwise.
func Open(dsn string, log *zap.Logger, level logger.LogLevel) (*gorm.DB, error) {
	cfg := Config(dsn, log, level)

	if IsPostgres(dsn) {
		log.Info("connecting to postgres")
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return db, nil
	}

	log.Info("using sqlite", zap.String("dsn", dsn))
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer; one connection keeps transactions
	// from failing with "database is locked".
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

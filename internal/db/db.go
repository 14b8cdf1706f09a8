package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect opens the store. driver is "postgres" or "sqlite"; sqlite is used for tests
// and local development. SQL warnings, errors and slow queries go to log; a nil log
// uses the logrus standard logger.
func Connect(driver, dsn string, log logrus.FieldLogger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         newGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql DB: %w", err)
	}

	if driver == "sqlite" && strings.Contains(dsn, ":memory:") {
		// every new connection would see a fresh empty database
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return gdb, nil
}

// Exec runs raw statements in order and stops at the first failure.
func Exec(gdb *gorm.DB, stmts ...string) error {
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}

// gormWriter sends gorm's log lines through logrus. gorm only emits them at warn
// level or above with the config below.
type gormWriter struct {
	log logrus.FieldLogger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.log.Warnf(format, args...)
}

func newGormLogger(log logrus.FieldLogger) logger.Interface {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return logger.New(gormWriter{log: log.WithField("component", "gorm")}, logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

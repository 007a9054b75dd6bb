package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/glebarez/sqlite"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/qianh/prompt-tower/config"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverLibSQL   = "libsql"
)

// Connect opens the database selected by cfg.DBDriver. Queries are logged
// through zap; only slow queries and errors are reported.
func Connect(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         NewGormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s database", cfg.DBDriver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == DriverSQLite {
		// SQLite allows a single writer.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

func dialectorFor(cfg *config.Config) (gorm.Dialector, error) {
	switch strings.ToLower(cfg.DBDriver) {
	case DriverSQLite, "":
		if dir := filepath.Dir(cfg.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrapf(err, "create database directory %s", dir)
			}
		}
		return sqlite.Open(cfg.DBPath), nil
	case DriverPostgres:
		dsn := cfg.DBURL
		if dsn == "" {
			dsn = cfg.DSN()
		}
		return postgres.Open(dsn), nil
	case DriverLibSQL:
		if cfg.DBURL == "" {
			return nil, errors.New("DB_URL is required for the libsql driver")
		}
		return &sqlite.Dialector{DriverName: DriverLibSQL, DSN: cfg.DBURL}, nil
	default:
		return nil, errors.Newf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
}

// NewGormLogger routes gorm's logs to zap.
func NewGormLogger(log *zap.Logger) gormlogger.Interface {
	if log == nil {
		log = zap.NewNop()
	}
	return gormlogger.New(zap.NewStdLog(log), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

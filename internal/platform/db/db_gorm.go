// Package db opens the gorm connection for the configured driver and runs migrations.
package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	candleadapters "market_sync/internal/feature/candles/adapters"
	symbolentity "market_sync/internal/feature/symbollist/domain/entity"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// retryInterval は接続リトライの待機間隔です。
var retryInterval = 3 * time.Second

// Config はデータベース接続設定です。
type Config struct {
	Driver         string        `env:"DRIVER" envDefault:"sqlite"`              // "sqlite" or "postgres"
	SQLitePath     string        `env:"SQLITE_PATH" envDefault:"market_sync.db"` // Driver=sqlite のファイルパス（":memory:" 可）
	Host           string        `env:"HOST" envDefault:"localhost"`
	Port           string        `env:"PORT" envDefault:"5432"`
	User           string        `env:"USER" envDefault:"postgres"`
	Password       string        `env:"PASSWORD"`
	Name           string        `env:"NAME" envDefault:"market_sync"`
	SSLMode        string        `env:"SSLMODE" envDefault:"disable"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" envDefault:"30s"` // 接続リトライの上限時間
	RunMigrations  bool          `env:"RUN_MIGRATIONS" envDefault:"true"`
}

// BuildDSN はドライバに応じたDSN文字列を生成します。
func BuildDSN(cfg Config) string {
	if cfg.Driver == DriverPostgres {
		sslmode := cfg.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslmode)
	}
	if cfg.SQLitePath == "" {
		return "market_sync.db"
	}
	return cfg.SQLitePath
}

// Opener opens a gorm connection for a DSN.
type Opener func(dsn string) (*gorm.DB, error)

// OpenerFor returns the Opener for the configured driver.
func OpenerFor(cfg Config) (Opener, error) {
	gcfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}
	switch cfg.Driver {
	case DriverPostgres:
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(postgres.Open(dsn), gcfg) }, nil
	case DriverSQLite, "":
		return func(dsn string) (*gorm.DB, error) { return gorm.Open(sqlite.Open(dsn), gcfg) }, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// ConnectWithRetry はtimeoutに達するまでretryInterval間隔で接続を試行します。
func ConnectWithRetry(dsn string, timeout time.Duration, open Opener) (*gorm.DB, error) {
	deadline := time.Now().Add(timeout)
	for {
		db, err := open(dsn)
		if err == nil {
			return db, nil
		}
		if time.Now().Add(retryInterval).After(deadline) {
			return nil, fmt.Errorf("db connect failed after %s: %w", timeout, err)
		}
		slog.Warn("DB connect failed, retrying", "error", err, "interval", retryInterval)
		time.Sleep(retryInterval)
	}
}

// Open はcfgに従って接続し、必要であればマイグレーションを実行します。
func Open(cfg Config) (*gorm.DB, error) {
	open, err := OpenerFor(cfg)
	if err != nil {
		return nil, err
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	db, err := ConnectWithRetry(BuildDSN(cfg), timeout, open)
	if err != nil {
		return nil, err
	}

	if cfg.Driver != DriverPostgres {
		// SQLiteは書き込みが直列化されるため1接続に固定する
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if cfg.RunMigrations {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate はローソク足と銘柄リストのテーブルを作成・更新します。
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&candleadapters.CandleModel{},
		&symbolentity.Symbol{},
	); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

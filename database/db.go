package database

import (
	"context"
	"fmt"
	stdlog "log"
	"strings"
	"time"

	"github.com/anoixa/catdex/config"
	"github.com/anoixa/catdex/database/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NewDB 根据 DATABASE_URL 创建数据库连接池
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	driver, dsn, err := ParseDatabaseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	gormLogger := newGormLogger()

	var db *gorm.DB
	switch driver {
	case DriverSQLite:
		db, err = newSQLiteDB(dsn, gormLogger)
	case DriverPostgres:
		db, err = newPostgresDB(dsn, gormLogger)
	}
	if err != nil {
		return nil, err
	}

	// 配置连接池
	if err := configurePool(db, cfg); err != nil {
		return nil, err
	}

	return db, nil
}

// ParseDatabaseURL 解析连接串，返回驱动名和驱动可用的 DSN
// 支持 postgres://、postgresql://、key=value 形式的 PostgreSQL DSN，
// 以及 sqlite:、file: 前缀或 .db 结尾的 SQLite 路径
func ParseDatabaseURL(raw string) (string, string, error) {
	url := strings.TrimSpace(raw)
	switch {
	case url == "":
		return "", "", config.ErrMissingDatabaseURL
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite://"), nil
	case strings.HasPrefix(url, "sqlite:"):
		return DriverSQLite, strings.TrimPrefix(url, "sqlite:"), nil
	case strings.HasPrefix(url, "file:"), strings.HasSuffix(url, ".db"):
		return DriverSQLite, url, nil
	case strings.Contains(url, "host=") || strings.Contains(url, "dbname="):
		return DriverPostgres, url, nil
	default:
		return "", "", fmt.Errorf("unsupported DATABASE_URL scheme: %q", redact(url))
	}
}

// newSQLiteDB 创建 SQLite 连接
func newSQLiteDB(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	// WAL 模式
	if !strings.Contains(dsn, "?") && !strings.Contains(dsn, ":memory:") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	log.Info().Str("dsn", dsn).Msg("Using SQLite database")
	return db, nil
}

// newPostgresDB 创建 PostgreSQL 连接
func newPostgresDB(dsn string, gormLogger logger.Interface) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormLogger,
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	log.Info().Str("dsn", redact(dsn)).Msg("Using PostgreSQL database")
	return db, nil
}

// newGormLogger 创建写入 zerolog 的 GORM 日志器
func newGormLogger() logger.Interface {
	logLevel := logger.Warn
	if config.IsDevelopment() && zerolog.GlobalLevel() <= zerolog.DebugLevel {
		logLevel = logger.Info
	}

	gormLog := log.With().Str("component", "gorm").Logger()
	return logger.New(
		stdlog.New(gormLog, "", 0),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// configurePool 配置连接池并验证连通性
func configurePool(db *gorm.DB, cfg *config.Config) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB instance: %w", err)
	}

	if cfg.DBMaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
	if cfg.DBConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.DBConnMaxLifetime) * time.Second)
	}

	timeout := cfg.DBAcquireTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

// AutoMigrate 自动迁移数据库结构
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Cat{})
}

// Close 关闭连接池
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	log.Info().Msg("Closing database connection...")
	return sqlDB.Close()
}

// redact 隐藏连接串中的密码
func redact(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		rest := dsn[i+3:]
		if at := strings.Index(rest, "@"); at >= 0 {
			cred := rest[:at]
			if colon := strings.Index(cred, ":"); colon >= 0 {
				return dsn[:i+3] + cred[:colon] + ":***" + rest[at:]
			}
		}
		return dsn
	}
	if i := strings.Index(dsn, "password="); i >= 0 {
		end := strings.IndexByte(dsn[i:], ' ')
		if end < 0 {
			return dsn[:i] + "password=***"
		}
		return dsn[:i] + "password=***" + dsn[i+end:]
	}
	return dsn
}

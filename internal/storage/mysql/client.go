package mysql

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds MySQL connection and pool settings.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"database"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`

	// LogLevel is the gorm log level: silent, error, warn or info.
	LogLevel string `yaml:"log_level"`
}

// WithDefaults fills unset pool settings.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
	return c
}

// DSN renders the go-sql-driver connection string with utf8mb4, parsed
// times and UTC locations. Credentials are written verbatim, so passwords may
// contain '@', '/' or ':'.
func (c Config) DSN() string {
	dsn := gomysql.NewConfig()
	dsn.User = c.User
	dsn.Passwd = c.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dsn.DBName = c.DBName
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// Client wraps a gorm DB handle.
type Client struct {
	db *gorm.DB
}

// NewClient connects to MySQL, retrying a few times while the server comes up.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	cfg = cfg.WithDefaults()
	gormConfig := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 newLogger(cfg.LogLevel),
	}

	var (
		db  *gorm.DB
		err error
	)
	const maxRetries = 5
	retryInterval := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(gormmysql.Open(cfg.DSN()), gormConfig)
		if err == nil {
			sqlDB, dbErr := db.DB()
			if dbErr == nil {
				if err = sqlDB.PingContext(ctx); err == nil {
					break
				}
			} else {
				err = dbErr
			}
		}

		if i < maxRetries-1 {
			slog.WarnContext(ctx, "MySQL connection failed, retrying",
				"attempt", i+1,
				"max_attempts", maxRetries,
				"retry_in", retryInterval.String(),
				"error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryInterval):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to mysql after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Client{db: db}, nil
}

// DB returns the underlying gorm handle.
func (c *Client) DB() *gorm.DB {
	return c.db
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newLogger(level string) logger.Interface {
	var logLevel logger.LogLevel
	switch level {
	case "info":
		logLevel = logger.Info
	case "warn":
		logLevel = logger.Warn
	case "silent":
		logLevel = logger.Silent
	default:
		logLevel = logger.Error
	}
	return logger.Default.LogMode(logLevel)
}

package database

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"posto-admin/internal/domain"
)

var ErrUnsupportedDriver = errors.New("database: unsupported driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string
}

// NewGorm 进程启动时调用一次，返回的连接池注入到各仓储
func NewGorm(o Opts, l *zap.Logger) (*gorm.DB, error) {
	if l == nil {
		l = zap.NewNop()
	}
	dial, err := dialector(o, l)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger:                 gormLogger(l, o.LogLevel),
		TranslateError:         true,
		SkipDefaultTransaction: true,
		PrepareStmt:            o.Driver != "sqlite",
		CreateBatchSize:        200,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if o.Driver == "sqlite" {
		// sqlite 单写者
		o.MaxOpenConns = 1
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	return db, nil
}

func dialector(o Opts, l *zap.Logger) (gorm.Dialector, error) {
	switch o.Driver {
	case "postgres":
		return postgres.Open(o.DSN), nil
	case "sqlite":
		return sqlite.Open(o.DSN), nil
	case "mysql":
		cfg, err := mysqlConfig(o.DSN, o.Username, o.Password)
		if err != nil {
			return nil, fmt.Errorf("mysql dsn: %w", err)
		}
		l.Info("mysql target", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBName), zap.String("user", cfg.User))
		return mysql.New(mysql.Config{DSN: cfg.FormatDSN(), DSNConfig: cfg}), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, o.Driver)
}

// gormLogger SQL 日志走 zap，慢查询阈值 200ms
func gormLogger(l *zap.Logger, level string) logger.Interface {
	lvl := logger.Warn
	switch level {
	case "silent":
		lvl = logger.Silent
	case "error":
		lvl = logger.Error
	case "info":
		lvl = logger.Info
	}
	return logger.New(zap.NewStdLog(l.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
	})
}

// mysqlConfig 接受驱动原生 DSN（user:pass@tcp(host)/db）或 mysql:// URL；
// 显式给出的用户名密码优先
func mysqlConfig(dsn, user, pass string) (*gomysql.Config, error) {
	native := strings.TrimPrefix(strings.TrimSpace(dsn), "jdbc:")
	if strings.HasPrefix(native, "mysql://") {
		u, err := url.Parse(native)
		if err != nil {
			return nil, err
		}
		cred := ""
		if u.User != nil {
			cred = u.User.Username()
			if p, ok := u.User.Password(); ok {
				cred += ":" + p
			}
			cred += "@"
		}
		native = fmt.Sprintf("%stcp(%s)/%s", cred, u.Host, strings.TrimPrefix(u.Path, "/"))
		if u.RawQuery != "" {
			native += "?" + u.RawQuery
		}
	}
	cfg, err := gomysql.ParseDSN(native)
	if err != nil {
		return nil, err
	}
	if user != "" {
		cfg.User = user
	}
	if pass != "" {
		cfg.Passwd = pass
	}
	// 时间字段一律按 UTC 解析
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	if !strings.Contains(native, "charset=") {
		if cfg.Params == nil {
			cfg.Params = map[string]string{}
		}
		cfg.Params["charset"] = "utf8mb4"
	}
	return cfg, nil
}

// Migrate 建表 / 补索引
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

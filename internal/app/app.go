// Package app 组装进程级依赖：一个连接池、一个 token 服务，按引用注入到各层
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"posto-admin/internal/core/auth"
	"posto-admin/internal/core/cache"
	"posto-admin/internal/core/config"
	"posto-admin/internal/core/database"
	"posto-admin/internal/core/tracing"
	"posto-admin/internal/core/validate"
	"posto-admin/internal/mail"
	"posto-admin/internal/repo"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/handler"
	mdw "posto-admin/internal/transport/http/middleware"
	"posto-admin/internal/transport/http/router"
)

type Services struct {
	Audit    *service.AuditService
	Users    *service.UserService
	Auth     *service.AuthService
	Posts    *service.PostService
	Taxonomy *service.TaxonomyService
	Products *service.ProductService
	Settings *service.SettingService
}

type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Cache    *cache.Cache
	Tokens   *auth.TokenService
	Gate     *mdw.Gate
	Services Services
	Registry *router.Registry

	closers []func(context.Context) error
}

// Option 测试里替换外部协作者
type Option func(*options)

type options struct {
	mailer mail.Sender
	cache  *cache.Cache
}

func WithMailer(m mail.Sender) Option { return func(o *options) { o.mailer = m } }
func WithCache(c *cache.Cache) Option { return func(o *options) { o.cache = c } }

// Build 打开数据库后组装
func Build(cfg *config.Config, l *zap.Logger, opts ...Option) (*App, error) {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	l.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			return nil, fmt.Errorf("automigrate: %w", err)
		}
		l.Info("automigrate done")
	}
	a, err := New(cfg, l, db, opts...)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	return a, nil
}

// New 在已有连接池上组装全部 service 和 handler
func New(cfg *config.Config, l *zap.Logger, db *gorm.DB, opts ...Option) (*App, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}
	validate.UseForGin()

	tokens, err := auth.NewTokenService(auth.Options{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTTL(),
		RefreshTTL:    cfg.JWT.RefreshTTL(),
	})
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, Log: l, DB: db, Tokens: tokens}

	a.Cache = o.cache
	if a.Cache == nil && cfg.Redis.Addr != "" {
		a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, "posto:", l)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.Cache.Ping(pingCtx); err != nil {
			l.Warn("redis unavailable, cache disabled", zap.Error(err))
			_ = a.Cache.Close()
			a.Cache = nil
		} else {
			a.closers = append(a.closers, func(context.Context) error { return a.Cache.Close() })
		}
		cancel()
	}

	mailer := o.mailer
	if mailer == nil {
		mailer = a.dialMailer()
	}

	if cfg.Trace.Enabled {
		a.closers = append(a.closers, tracing.Init(cfg.App.Name, cfg.App.Env))
	}

	users := repo.NewUserRepo(db)
	sessions := repo.NewRefreshTokenRepo(db)
	categories := repo.NewCategoryRepo(db)
	tags := repo.NewTagRepo(db)

	s := Services{}
	s.Audit = service.NewAuditService(repo.NewAuditRepo(db), l)
	s.Users = service.NewUserService(users, sessions, s.Audit, l)
	s.Settings = service.NewSettingService(repo.NewSettingRepo(db), cfg.App.Name, s.Audit, l)
	s.Auth = service.NewAuthService(service.AuthDeps{
		Users:    users,
		Sessions: sessions,
		OTTs:     repo.NewOneTimeTokenRepo(db),
		Tokens:   tokens,
		Creator:  s.Users,
		Mailer:   mailer,
		Composer: mail.Composer{AppName: cfg.App.Name, ClientURL: cfg.App.ClientURL},
		Audit:    s.Audit,
		Settings: s.Settings,
		Log:      l,
	}, service.AuthConfig{
		AllowRegistration: cfg.Auth.AllowRegistration,
		BootstrapToken:    cfg.Auth.BootstrapToken,
		VerifyTokenTTL:    time.Duration(cfg.Auth.VerifyTokenTTLHours) * time.Hour,
		ResetTokenTTL:     time.Duration(cfg.Auth.ResetTokenTTLMin) * time.Minute,
	})
	s.Posts = service.NewPostService(repo.NewPostRepo(db), categories, tags, s.Audit, cfg.Content.HonorSchedule, l)
	s.Taxonomy = service.NewTaxonomyService(categories, tags, a.Cache, time.Duration(cfg.Redis.TTLSec)*time.Second, s.Audit, l)
	s.Products = service.NewProductService(repo.NewProductRepo(db), categories, tags, s.Audit, l)
	a.Services = s

	a.Gate = mdw.NewGate(tokens, users, l)
	cookies := handler.CookiePolicy{Domain: cfg.Auth.CookieDomain, Production: cfg.App.IsProduction()}
	a.Registry = (&router.Registry{}).Register(
		handler.NewAuthHandler(s.Auth, a.Gate, cookies, cfg.Auth.RatePerSec, cfg.Auth.RateBurst),
		handler.NewUserHandler(s.Users, a.Gate),
		handler.NewPostHandler(s.Posts, a.Gate),
		handler.NewCatalogHandler(s.Taxonomy, s.Products),
		handler.NewAuditHandler(s.Audit),
		handler.NewSettingHandler(s.Settings),
	)
	return a, nil
}

// 配了 RabbitMQ 就投递到队列，否则只写日志
func (a *App) dialMailer() mail.Sender {
	if a.Cfg.RabbitMQ.URL == "" {
		return mail.LogSender{Log: a.Log}
	}
	q, err := mail.DialQueue(a.Cfg.RabbitMQ.URL, a.Cfg.RabbitMQ.MailQueue, a.Cfg.Mail.From, a.Log)
	if err != nil {
		a.Log.Warn("mail queue unavailable, falling back to log sender", zap.Error(err))
		return mail.LogSender{Log: a.Log}
	}
	a.closers = append(a.closers, func(context.Context) error { return q.Close() })
	return q
}

func (a *App) RouterDeps() router.Deps {
	return router.Deps{
		Log:         a.Log,
		Gate:        a.Gate,
		Modules:     a.Registry,
		CORSOrigins: a.Cfg.App.CORSOrigins,
		Ready: func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

// Close 逆序释放
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

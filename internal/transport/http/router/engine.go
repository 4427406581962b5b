package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"posto-admin/internal/core/server"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

type Limits struct {
	RPS         rate.Limit
	Burst       int
	Concurrency int64
	MaxBody     int64
	Timeout     time.Duration
}

func (l Limits) withDefaults() Limits {
	if l.RPS <= 0 {
		l.RPS = 200
	}
	if l.Burst <= 0 {
		l.Burst = 400
	}
	if l.Concurrency <= 0 {
		l.Concurrency = 300
	}
	if l.MaxBody <= 0 {
		l.MaxBody = 4 << 20
	}
	if l.Timeout <= 0 {
		l.Timeout = 10 * time.Second
	}
	return l
}

type Deps struct {
	Log         *zap.Logger
	Gate        *mdw.Gate
	Modules     *Registry
	CORSOrigins []string
	Limits      Limits
	// Ready 健康检查时探测下游（DB 等），可为空
	Ready func(ctx context.Context) error
}

func newEngine(d Deps) *gin.Engine {
	lim := d.Limits.withDefaults()
	r := server.NewRouter(d.Log, d.CORSOrigins)
	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(lim.RPS, lim.Burst),
		mdw.ConcurrencyLimit(lim.Concurrency),
		mdw.MaxBodyBytes(lim.MaxBody),
		mdw.Timeout(lim.Timeout),
		mdw.SimpleRecovery(d.Log),
		mdw.Metrics(),
		mdw.Tracing(),
		mdw.AccessLog(d.Log),
	)

	r.GET("/health", func(c *gin.Context) {
		if d.Ready != nil {
			if err := d.Ready(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"ok": 0})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"ok": 1})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// NewAPIEngine 公共站点 + 认证 + 自助接口，前缀 /api/v1
func NewAPIEngine(d Deps) *gin.Engine {
	r := newEngine(d)
	d.Modules.MountAPI(ez.New(r.Group("/api/v1"), d.Log))
	return r
}

// NewAdminEngine 管理端，整组要求登录，细粒度权限在各路由上
func NewAdminEngine(d Deps) *gin.Engine {
	r := newEngine(d)
	d.Modules.MountAdmin(ez.New(r.Group("/admin/v1", d.Gate.Authenticate()), d.Log))
	return r
}

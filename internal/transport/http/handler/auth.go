package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"posto-admin/internal/domain"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

// CookiePolicy production 下 Secure + SameSite=None，否则 Lax
type CookiePolicy struct {
	Domain     string
	Production bool
}

func (p CookiePolicy) set(c *gin.Context, name, value string, ttl time.Duration) {
	if p.Production {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	maxAge := int(ttl / time.Second)
	if ttl < 0 {
		maxAge = -1
	}
	c.SetCookie(name, value, maxAge, "/", p.Domain, p.Production, true)
}

func (p CookiePolicy) issue(c *gin.Context, s *service.Session) {
	now := time.Now()
	p.set(c, mdw.AccessCookie, s.AccessToken, s.AccessExpiresAt.Sub(now))
	p.set(c, mdw.RefreshCookie, s.RefreshToken, s.RefreshExpiresAt.Sub(now))
}

func (p CookiePolicy) clear(c *gin.Context) {
	p.set(c, mdw.AccessCookie, "", -1)
	p.set(c, mdw.RefreshCookie, "", -1)
}

type AuthHandler struct {
	svc     *service.AuthService
	gate    *mdw.Gate
	cookies CookiePolicy
	rps     rate.Limit
	burst   int
}

func NewAuthHandler(svc *service.AuthService, gate *mdw.Gate, cookies CookiePolicy, rps float64, burst int) *AuthHandler {
	if rps <= 0 {
		rps = 5
	}
	if burst <= 0 {
		burst = 10
	}
	return &AuthHandler{svc: svc, gate: gate, cookies: cookies, rps: rate.Limit(rps), burst: burst}
}

// Priority 认证路由最先挂载
func (h *AuthHandler) Priority() int { return 10 }

type refreshBody struct {
	RefreshToken string `json:"refreshToken"`
}

// 先看 cookie，再看 body
func (h *AuthHandler) refreshToken(c *gin.Context, in *refreshBody) string {
	if v, err := c.Cookie(mdw.RefreshCookie); err == nil && v != "" {
		return v
	}
	return in.RefreshToken
}

type MeView struct {
	User        *domain.User        `json:"user"`
	Permissions []domain.Permission `json:"permissions"`
}

type message struct {
	Message string `json:"message"`
}

func (h *AuthHandler) MountAPI(api ez.EZ) {
	g := api.Group("/auth", mdw.RateLimitPerIP(h.rps, h.burst))
	authed := []gin.HandlerFunc{h.gate.Authenticate()}

	ez.RegisterAction(g, ez.Action[service.RegisterInput, *service.RegisterResult]{
		Method: http.MethodPost, Path: "/register", Binder: ez.BindJSON, Status: http.StatusCreated,
		Guards: []gin.HandlerFunc{h.gate.OptionalIdentity()},
		Handler: func(c *gin.Context, in *service.RegisterInput) (*service.RegisterResult, error) {
			var actor *domain.Actor
			if a, ok := mdw.ActorFrom(c); ok {
				actor = &a
			}
			return h.svc.Register(c.Request.Context(), actor, *in)
		},
	})

	ez.RegisterAction(g, ez.Action[service.LoginInput, *service.Session]{
		Method: http.MethodPost, Path: "/login", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.LoginInput) (*service.Session, error) {
			s, err := h.svc.Login(c.Request.Context(), *in, c.ClientIP())
			if err != nil {
				return nil, err
			}
			h.cookies.issue(c, s)
			return s, nil
		},
	})

	ez.RegisterAction(g, ez.Action[refreshBody, *service.Session]{
		Method: http.MethodPost, Path: "/refresh", Binder: ez.BindJSONOptional,
		Handler: func(c *gin.Context, in *refreshBody) (*service.Session, error) {
			tok := h.refreshToken(c, in)
			if tok == "" {
				return nil, domain.InvalidToken("Refresh token missing")
			}
			s, err := h.svc.Refresh(c.Request.Context(), tok, c.ClientIP())
			if err != nil {
				if domain.IsKind(err, domain.KindInvalidToken) {
					h.cookies.clear(c)
				}
				return nil, err
			}
			h.cookies.issue(c, s)
			return s, nil
		},
	})

	// logout 永远成功
	ez.RegisterAction(g, ez.Action[refreshBody, message]{
		Method: http.MethodPost, Path: "/logout", Binder: ez.BindJSONOptional,
		Handler: func(c *gin.Context, in *refreshBody) (message, error) {
			if tok := h.refreshToken(c, in); tok != "" {
				h.svc.Logout(c.Request.Context(), tok)
			}
			h.cookies.clear(c)
			return message{Message: "Logged out"}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[ez.None, MeView]{
		Method: http.MethodGet, Path: "/me", Binder: ez.BindNone, Guards: authed,
		Handler: func(c *gin.Context, _ *ez.None) (MeView, error) {
			a, _ := mdw.ActorFrom(c)
			u, err := h.svc.Me(c.Request.Context(), a.ID)
			if err != nil {
				return MeView{}, err
			}
			return MeView{User: u, Permissions: domain.PermissionsOf(u.Role)}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.TokenInput, *domain.User]{
		Method: http.MethodPost, Path: "/verify-email", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.TokenInput) (*domain.User, error) {
			return h.svc.VerifyEmail(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(g, ez.Action[service.ForgotPasswordInput, message]{
		Method: http.MethodPost, Path: "/forgot-password", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.ForgotPasswordInput) (message, error) {
			if err := h.svc.RequestPasswordReset(c.Request.Context(), *in); err != nil {
				return message{}, err
			}
			return message{Message: "If that email is registered, a reset link has been sent"}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.ResetPasswordInput, message]{
		Method: http.MethodPost, Path: "/reset-password", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.ResetPasswordInput) (message, error) {
			if err := h.svc.ResetPassword(c.Request.Context(), *in); err != nil {
				return message{}, err
			}
			h.cookies.clear(c)
			return message{Message: "Password updated"}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.ChangePasswordInput, message]{
		Method: http.MethodPost, Path: "/change-password", Binder: ez.BindJSON, Guards: authed,
		Handler: func(c *gin.Context, in *service.ChangePasswordInput) (message, error) {
			a, _ := mdw.ActorFrom(c)
			if err := h.svc.ChangePassword(c.Request.Context(), a, *in); err != nil {
				return message{}, err
			}
			return message{Message: "Password updated"}, nil
		},
	})

	ez.RegisterAction(g, ez.Action[service.BootstrapInput, *service.Session]{
		Method: http.MethodPost, Path: "/bootstrap-admin", Binder: ez.BindJSON, Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.BootstrapInput) (*service.Session, error) {
			s, err := h.svc.BootstrapAdmin(c.Request.Context(), *in, c.ClientIP())
			if err != nil {
				return nil, err
			}
			h.cookies.issue(c, s)
			return s, nil
		},
	})
}

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posto-admin/internal/core/auth"
	"posto-admin/internal/domain"
	resp "posto-admin/internal/transport/http/response"
)

const (
	KeyUserID      = "userId"
	KeyRole        = "role"
	KeyPermissions = "permissions"
	keyActor       = "actor"

	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// UserLoader 每个请求回库取最新的账号状态和角色
type UserLoader interface {
	FindByID(ctx context.Context, id string, includeDeleted bool) (*domain.User, error)
}

// Gate 负责身份解析；守卫函数只看 context 里已经解析好的 Actor
type Gate struct {
	tokens *auth.TokenService
	users  UserLoader
	log    *zap.Logger
}

func NewGate(tokens *auth.TokenService, users UserLoader, l *zap.Logger) *Gate {
	if l == nil {
		l = zap.NewNop()
	}
	return &Gate{tokens: tokens, users: users, log: l}
}

// credential cookie 优先，其次 Authorization: Bearer
func credential(c *gin.Context) string {
	if v, err := c.Cookie(AccessCookie); err == nil && v != "" {
		return v
	}
	ah := c.GetHeader("Authorization")
	if len(ah) > 7 && strings.EqualFold(ah[:7], "Bearer ") {
		return strings.TrimSpace(ah[7:])
	}
	return ""
}

func (g *Gate) resolve(c *gin.Context, tok string) (*domain.User, error) {
	claims, err := g.tokens.Verify(tok, auth.KindAccess)
	if err != nil {
		return nil, domain.Unauthenticated("Invalid or expired token")
	}
	u, err := g.users.FindByID(c.Request.Context(), claims.UserID(), true)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.Unauthenticated("Invalid or expired token")
		}
		return nil, err
	}
	if !u.IsUsable() {
		return nil, domain.Forbidden("Account is not active")
	}
	return u, nil
}

func attach(c *gin.Context, u *domain.User) {
	a := u.Actor()
	c.Set(keyActor, a)
	c.Set(KeyUserID, a.ID)
	c.Set(KeyRole, string(a.Role))
	c.Set(KeyPermissions, domain.PermissionsOf(a.Role))
}

// Authenticate 必须登录；权限按库里的当前角色解析，不信任 token 中的声明
func (g *Gate) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := credential(c)
		if tok == "" {
			resp.Fail(c, g.log, domain.Unauthenticated("Authentication required"))
			return
		}
		u, err := g.resolve(c, tok)
		if err != nil {
			resp.Fail(c, g.log, err)
			return
		}
		attach(c, u)
		c.Next()
	}
}

// OptionalIdentity 有合法凭证就挂上身份，否则按匿名继续
func (g *Gate) OptionalIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := credential(c); tok != "" {
			if u, err := g.resolve(c, tok); err == nil {
				attach(c, u)
			} else {
				g.log.Debug("optional identity ignored", zap.Error(err))
			}
		}
		c.Next()
	}
}

func ActorFrom(c *gin.Context) (domain.Actor, bool) {
	v, ok := c.Get(keyActor)
	if !ok {
		return domain.Actor{}, false
	}
	a, ok := v.(domain.Actor)
	return a, ok
}

// RequireRole 角色属于 roles 之一
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok {
			resp.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !a.Is(roles...) {
			resp.Abort(c, http.StatusForbidden, "Insufficient role")
			return
		}
		c.Next()
	}
}

// RequirePermission 需要同时持有全部 perms
func RequirePermission(perms ...domain.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok {
			resp.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if !a.Role.HasAll(perms...) {
			resp.Abort(c, http.StatusForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

// RequireSelfOrRole 路径参数 param 等于自己的 id，或角色属于 roles
func RequireSelfOrRole(param string, roles ...domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := ActorFrom(c)
		if !ok {
			resp.Abort(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		if c.Param(param) != a.ID && !a.Is(roles...) {
			resp.Abort(c, http.StatusForbidden, "Insufficient permissions")
			return
		}
		c.Next()
	}
}

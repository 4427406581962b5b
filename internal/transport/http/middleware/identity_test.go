package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posto-admin/internal/core/auth"
	"posto-admin/internal/domain"
	"posto-admin/internal/repo"
	"posto-admin/internal/testkit"
)

type gateEnv struct {
	r      *gin.Engine
	tokens *auth.TokenService
	users  *repo.UserRepo
}

func newGateEnv(t *testing.T) *gateEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testkit.NewDB(t)
	tokens, err := auth.NewTokenService(auth.Options{AccessSecret: "access-test", RefreshSecret: "refresh-test"})
	require.NoError(t, err)
	users := repo.NewUserRepo(db)
	g := NewGate(tokens, users, nil)

	r := gin.New()
	ok := func(c *gin.Context) {
		a, _ := ActorFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": a.ID, "role": a.Role})
	}
	r.GET("/me", g.Authenticate(), ok)
	r.GET("/admin", g.Authenticate(), RequireRole(domain.RoleAdmin, domain.RoleSuperAdmin), ok)
	r.GET("/manage", g.Authenticate(), RequirePermission(domain.PermUserView, domain.PermUserManage), ok)
	r.GET("/users/:userId", g.Authenticate(), RequireSelfOrRole("userId", domain.RoleAdmin), ok)
	r.GET("/public", g.OptionalIdentity(), ok)
	r.GET("/unguarded", RequireRole(domain.RoleUser), ok)
	return &gateEnv{r: r, tokens: tokens, users: users}
}

func (e *gateEnv) user(t *testing.T, role domain.Role) *domain.User {
	t.Helper()
	id := uuid.NewString()
	u := domain.NewApprovedUser(id, "n", id+"@example.com", "x", role, id, time.Now().UTC())
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *gateEnv) token(t *testing.T, u *domain.User, role domain.Role) string {
	t.Helper()
	tok, _, err := e.tokens.IssueAccess(auth.Identity{UserID: u.ID, Role: string(role)})
	require.NoError(t, err)
	return tok
}

func (e *gateEnv) get(path, bearer, cookie string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: AccessCookie, Value: cookie})
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func TestAuthenticate(t *testing.T) {
	e := newGateEnv(t)
	u := e.user(t, domain.RoleUser)
	good := e.token(t, u, domain.RoleUser)

	assert.Equal(t, http.StatusUnauthorized, e.get("/me", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.get("/me", "garbage", "").Code)
	assert.Equal(t, http.StatusOK, e.get("/me", good, "").Code)
	assert.Equal(t, http.StatusOK, e.get("/me", "", good).Code)
	// cookie 优先于 header
	assert.Equal(t, http.StatusUnauthorized, e.get("/me", good, "garbage").Code)

	refresh, err := e.tokens.IssueRefresh(auth.Identity{UserID: u.ID}, uuid.NewString(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, e.get("/me", refresh, "").Code)
}

func TestAuthenticateReloadsAccount(t *testing.T) {
	e := newGateEnv(t)
	ctx := context.Background()
	u := e.user(t, domain.RoleUser)
	tok := e.token(t, u, domain.RoleUser)

	u.Status = domain.StatusInactive
	require.NoError(t, e.users.Save(ctx, u))
	w := e.get("/me", tok, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Account is not active")

	require.NoError(t, e.users.HardDelete(ctx, u.ID))
	assert.Equal(t, http.StatusUnauthorized, e.get("/me", tok, "").Code)
}

func TestRoleFromDatabaseNotToken(t *testing.T) {
	e := newGateEnv(t)
	u := e.user(t, domain.RoleUser)
	// token 声称 Admin，库里是 User
	forged := e.token(t, u, domain.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, e.get("/admin", forged, "").Code)
}

func TestGuards(t *testing.T) {
	e := newGateEnv(t)
	admin := e.user(t, domain.RoleAdmin)
	mod := e.user(t, domain.RoleModerator)
	plain := e.user(t, domain.RoleUser)
	other := e.user(t, domain.RoleUser)

	cases := []struct {
		name string
		path string
		who  *domain.User
		want int
	}{
		{"admin role", "/admin", admin, 200},
		{"moderator role", "/admin", mod, 403},
		{"admin perms", "/manage", admin, 200},
		{"moderator lacks manage", "/manage", mod, 403},
		{"self", "/users/" + plain.ID, plain, 200},
		{"other user", "/users/" + other.ID, plain, 403},
		{"admin on other", "/users/" + other.ID, admin, 200},
		{"moderator on other", "/users/" + other.ID, mod, 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.get(tc.path, e.token(t, tc.who, tc.who.Role), "")
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestGuardWithoutIdentity(t *testing.T) {
	e := newGateEnv(t)
	assert.Equal(t, http.StatusUnauthorized, e.get("/unguarded", "", "").Code)
}

func TestOptionalIdentity(t *testing.T) {
	e := newGateEnv(t)
	u := e.user(t, domain.RoleModerator)

	w := e.get("/public", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":""`)

	w = e.get("/public", "garbage", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.get("/public", e.token(t, u, u.Role), "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), u.ID)
}

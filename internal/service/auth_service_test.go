package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posto-admin/internal/core/auth"
	"posto-admin/internal/domain"
)

func TestSelfRegistrationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)

	res, err := f.authSvc.Register(ctx, nil, RegisterInput{
		Name: "Writer", Email: "Writer@Example.com", Password: "writerpass1",
	})
	require.NoError(t, err)
	assert.True(t, res.RequiresEmailVerification)
	assert.True(t, res.RequiresApproval)
	assert.Equal(t, "writer@example.com", res.User.Email)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.Equal(t, domain.StatusPending, res.User.Status)
	assert.EqualValues(t, 1, f.auditCount(t, "auth.register_pending"))

	login := LoginInput{Email: "writer@example.com", Password: "writerpass1"}

	_, err = f.authSvc.Login(ctx, login, "127.0.0.1")
	assert.ErrorIs(t, err, domain.ErrEmailNotVerified)

	u, err := f.authSvc.VerifyEmail(ctx, TokenInput{Token: f.mail.lastToken(t, "writer@example.com")})
	require.NoError(t, err)
	assert.NotNil(t, u.EmailVerifiedAt)
	assert.Equal(t, domain.StatusPending, u.Status)

	_, err = f.authSvc.Login(ctx, login, "127.0.0.1")
	assert.ErrorIs(t, err, domain.ErrAwaitingApproval)

	_, err = f.userSvc.SetApproval(ctx, admin, u.ID, ApprovalInput{ApprovalStatus: domain.ApprovalApproved})
	require.NoError(t, err)

	sess, err := f.authSvc.Login(ctx, login, "127.0.0.1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.Empty(t, sess.Permissions)
	assert.NotNil(t, sess.User.LastLoginAt)
	assert.EqualValues(t, 1, f.auditCount(t, "auth.login"))
}

func TestVerifyTokenSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.authSvc.Register(ctx, nil, RegisterInput{Name: "Reader", Email: "r@example.com", Password: "readerpass1"})
	require.NoError(t, err)
	tok := f.mail.lastToken(t, "r@example.com")

	_, err = f.authSvc.VerifyEmail(ctx, TokenInput{Token: tok})
	require.NoError(t, err)
	_, err = f.authSvc.VerifyEmail(ctx, TokenInput{Token: tok})
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))
}

func TestRegisterRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "taken@example.com", domain.RoleUser)

	_, err := f.authSvc.Register(ctx, nil, RegisterInput{Name: "Eve", Email: "eve@example.com", Password: "evepass123", Role: domain.RoleAdmin})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = f.authSvc.Register(ctx, nil, RegisterInput{Name: "Dup", Email: "TAKEN@example.com", Password: "duppass123"})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	_, err = f.authSvc.Register(ctx, nil, RegisterInput{Name: "X", Email: "bad", Password: "short"})
	var de *domain.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.KindValidation, de.Kind)
	paths := []string{}
	for _, fe := range de.Fields {
		paths = append(paths, fe.Path)
	}
	assert.ElementsMatch(t, []string{"name", "email", "password"}, paths)
}

func TestRegisterDisabled(t *testing.T) {
	f := newFixture(t, func(c *AuthConfig) { c.AllowRegistration = false })
	_, err := f.authSvc.Register(context.Background(), nil, RegisterInput{Name: "Late", Email: "late@example.com", Password: "latepass1"})
	assert.True(t, domain.IsKind(err, domain.KindDisabled))
}

func TestRegisterByAdminSkipsGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	mod := f.seedUser(t, "mod@example.com", domain.RoleModerator)

	res, err := f.authSvc.Register(ctx, &admin, RegisterInput{Name: "Staff", Email: "staff@example.com", Password: "staffpass1", Role: domain.RoleModerator})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, res.User.Status)
	assert.Equal(t, domain.ApprovalApproved, res.User.ApprovalStatus)
	assert.Equal(t, admin.ID, *res.User.ApprovedBy)
	assert.EqualValues(t, 1, f.auditCount(t, "user.create"))

	_, err = f.authSvc.Register(ctx, &admin, RegisterInput{Name: "Root", Email: "root@example.com", Password: "rootpass1", Role: domain.RoleSuperAdmin})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	// Moderator 没有 user:manage
	_, err = f.authSvc.Register(ctx, &mod, RegisterInput{Name: "Other", Email: "o@example.com", Password: "otherpass1"})
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	_, err = f.authSvc.Login(ctx, LoginInput{Email: "staff@example.com", Password: "staffpass1"}, "")
	assert.NoError(t, err)
}

func TestLoginHidesGateBehindPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.authSvc.Register(ctx, nil, RegisterInput{Name: "Pending", Email: "p@example.com", Password: "pendingpass"})
	require.NoError(t, err)

	_, err = f.authSvc.Login(ctx, LoginInput{Email: "p@example.com", Password: "wrong-password"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.authSvc.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "whatever"}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.EqualValues(t, 0, f.auditCount(t, "auth.login"))
}

func TestLoginDeletedAndInactive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	a := f.seedUser(t, "a@example.com", domain.RoleUser)
	b := f.seedUser(t, "b@example.com", domain.RoleUser)

	_, err := f.userSvc.SetStatus(ctx, admin, a.ID, StatusInput{Status: domain.StatusInactive})
	require.NoError(t, err)
	_, err = f.authSvc.Login(ctx, LoginInput{Email: "a@example.com", Password: testPassword}, "")
	assert.ErrorIs(t, err, domain.ErrAccountInactive)

	require.NoError(t, f.userSvc.SoftDelete(ctx, admin, b.ID))
	_, err = f.authSvc.Login(ctx, LoginInput{Email: "b@example.com", Password: testPassword}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestRefreshRotationAndReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u@example.com", domain.RoleModerator)

	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "10.0.0.1")
	require.NoError(t, err)

	next, err := f.authSvc.Refresh(ctx, sess.RefreshToken, "10.0.0.1")
	require.NoError(t, err)
	assert.NotEqual(t, sess.RefreshToken, next.RefreshToken)
	assert.ElementsMatch(t, domain.PermissionsOf(domain.RoleModerator), next.Permissions)

	_, err = f.authSvc.Refresh(ctx, sess.RefreshToken, "10.0.0.1")
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))

	// 旧记录指向新 jti
	old, err := f.tokens.Verify(sess.RefreshToken, auth.KindRefresh)
	require.NoError(t, err)
	var rec domain.RefreshToken
	require.NoError(t, f.db.Where("token = ?", old.SessionID()).First(&rec).Error)
	require.NotNil(t, rec.RevokedAt)
	nc, err := f.tokens.Verify(next.RefreshToken, auth.KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, nc.SessionID(), *rec.ReplacedByToken)

	// access token 不能当 refresh 用
	_, err = f.authSvc.Refresh(ctx, next.AccessToken, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))
	_, err = f.authSvc.Refresh(ctx, "", "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))
}

// brokenSessions 写新会话失败，其余操作照常
type brokenSessions struct {
	domain.RefreshTokenRepository
}

func (brokenSessions) Create(context.Context, *domain.RefreshToken) error {
	return errors.New("disk full")
}

func TestRefreshKeepsOldSessionWhenSuccessorFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	f.authSvc.sessions = brokenSessions{RefreshTokenRepository: f.sessions}
	_, err = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
	require.Error(t, err)
	assert.False(t, domain.IsKind(err, domain.KindInvalidToken))

	old, err := f.tokens.Verify(sess.RefreshToken, auth.KindRefresh)
	require.NoError(t, err)
	rec, err := f.sessions.FindActive(ctx, old.SessionID(), time.Now().UTC())
	require.NoError(t, err)
	assert.Nil(t, rec.RevokedAt)
	assert.Zero(t, f.auditCount(t, "auth.refresh"))

	// 存储恢复后原 token 仍能换新
	f.authSvc.sessions = f.sessions
	next, err := f.authSvc.Refresh(ctx, sess.RefreshToken, "")
	require.NoError(t, err)
	assert.NotEmpty(t, next.RefreshToken)
}

func TestLosingRefreshLeavesNoLiveSuccessor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
		}()
	}
	wg.Wait()

	// 只剩赢家签出的那一条有效会话
	var live int64
	require.NoError(t, f.db.Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", u.ID).Count(&live).Error)
	assert.EqualValues(t, 1, live)
}

func TestConcurrentRefreshSingleWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, domain.IsKind(err, domain.KindInvalidToken), err)
	}
	assert.Equal(t, 1, ok)
}

func TestRefreshRejectsUnusableAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	// 绕过 service 直接改库，会话未被吊销
	require.NoError(t, f.db.Model(&domain.User{}).Where("id = ?", u.ID).Update("status", domain.StatusInactive).Error)
	_, err = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
	assert.ErrorIs(t, err, domain.ErrAccountUnavailable)
}

func TestDeactivationRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	u := f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	_, err = f.userSvc.SetStatus(ctx, admin, u.ID, StatusInput{Status: domain.StatusInactive})
	require.NoError(t, err)
	_, err = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))
}

func TestLogoutRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	f.authSvc.Logout(ctx, sess.RefreshToken)
	f.authSvc.Logout(ctx, sess.RefreshToken)
	f.authSvc.Logout(ctx, "garbage")
	assert.EqualValues(t, 1, f.auditCount(t, "auth.logout"))

	_, err = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedUser(t, "u@example.com", domain.RoleUser)
	sess, err := f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	require.NoError(t, err)

	require.NoError(t, f.authSvc.RequestPasswordReset(ctx, ForgotPasswordInput{Email: "ghost@example.com"}))
	assert.Equal(t, 0, f.mail.count())

	require.NoError(t, f.authSvc.RequestPasswordReset(ctx, ForgotPasswordInput{Email: "U@example.com"}))
	tok := f.mail.lastToken(t, "u@example.com")

	require.NoError(t, f.authSvc.ResetPassword(ctx, ResetPasswordInput{Token: tok, Password: "brand-new-pass"}))
	assert.True(t, domain.IsKind(
		f.authSvc.ResetPassword(ctx, ResetPasswordInput{Token: tok, Password: "another-pass"}),
		domain.KindInvalidToken,
	))

	_, err = f.authSvc.Refresh(ctx, sess.RefreshToken, "")
	assert.True(t, domain.IsKind(err, domain.KindInvalidToken))

	_, err = f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: testPassword}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: "brand-new-pass"}, "")
	assert.NoError(t, err)
	assert.EqualValues(t, 1, f.auditCount(t, "auth.password_reset"))
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.seedUser(t, "u@example.com", domain.RoleUser)

	err := f.authSvc.ChangePassword(ctx, u, ChangePasswordInput{CurrentPassword: "nope", NewPassword: "new-password-1"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	require.NoError(t, f.authSvc.ChangePassword(ctx, u, ChangePasswordInput{CurrentPassword: testPassword, NewPassword: "new-password-1"}))
	_, err = f.authSvc.Login(ctx, LoginInput{Email: "u@example.com", Password: "new-password-1"}, "")
	assert.NoError(t, err)
}

func TestBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := BootstrapInput{Token: "bootstrap-secret", Name: "First Admin", Email: "first@example.com", Password: "firstpass1"}

	bad := in
	bad.Token = "guess"
	_, err := f.authSvc.BootstrapAdmin(ctx, bad, "")
	assert.True(t, domain.IsKind(err, domain.KindForbidden))

	sess, err := f.authSvc.BootstrapAdmin(ctx, in, "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, sess.User.Role)
	assert.Equal(t, domain.StatusActive, sess.User.Status)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.EqualValues(t, 1, f.auditCount(t, "auth.bootstrap_admin"))

	in.Email = "second@example.com"
	_, err = f.authSvc.BootstrapAdmin(ctx, in, "")
	assert.True(t, domain.IsKind(err, domain.KindDisabled))
}

func TestBootstrapDisabledWithoutToken(t *testing.T) {
	f := newFixture(t, func(c *AuthConfig) { c.BootstrapToken = "" })
	_, err := f.authSvc.BootstrapAdmin(context.Background(), BootstrapInput{Token: "", Name: "Ad", Email: "a@example.com", Password: "adminpass1"}, "")
	assert.True(t, domain.IsKind(err, domain.KindDisabled))
}

func TestHumanize(t *testing.T) {
	assert.Equal(t, "48 hours", humanize(48*time.Hour))
	assert.Equal(t, "1 hour", humanize(time.Hour))
	assert.Equal(t, "90 minutes", humanize(90*time.Minute))
}

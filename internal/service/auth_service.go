package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"posto-admin/internal/core/auth"
	"posto-admin/internal/core/tracing"
	"posto-admin/internal/domain"
	"posto-admin/internal/mail"
	"posto-admin/pkg/utils"
)

type AuthConfig struct {
	AllowRegistration bool
	BootstrapToken    string
	VerifyTokenTTL    time.Duration
	ResetTokenTTL     time.Duration
}

// SettingsSource 运行期开关；为空时只看配置
type SettingsSource interface {
	Get(ctx context.Context) (*domain.Settings, error)
}

type AuthService struct {
	users    domain.UserRepository
	sessions domain.RefreshTokenRepository
	otts     domain.OneTimeTokenRepository
	tokens   *auth.TokenService
	creator  *UserService
	mailer   mail.Sender
	composer mail.Composer
	audit    Auditor
	settings SettingsSource
	cfg      AuthConfig
	log      *zap.Logger
	now      func() time.Time
}

type AuthDeps struct {
	Users    domain.UserRepository
	Sessions domain.RefreshTokenRepository
	OTTs     domain.OneTimeTokenRepository
	Tokens   *auth.TokenService
	Creator  *UserService
	Mailer   mail.Sender
	Composer mail.Composer
	Audit    Auditor
	Settings SettingsSource
	Log      *zap.Logger
}

func NewAuthService(d AuthDeps, cfg AuthConfig) *AuthService {
	if cfg.VerifyTokenTTL <= 0 {
		cfg.VerifyTokenTTL = 48 * time.Hour
	}
	if cfg.ResetTokenTTL <= 0 {
		cfg.ResetTokenTTL = time.Hour
	}
	return &AuthService{
		users:    d.Users,
		sessions: d.Sessions,
		otts:     d.OTTs,
		tokens:   d.Tokens,
		creator:  d.Creator,
		mailer:   d.Mailer,
		composer: d.Composer,
		audit:    d.Audit,
		settings: d.Settings,
		cfg:      cfg,
		log:      d.Log,
		now:      utcNow,
	}
}

// Session 登录 / 刷新 / bootstrap 的结果
type Session struct {
	User             *domain.User        `json:"user"`
	Permissions      []domain.Permission `json:"permissions"`
	AccessToken      string              `json:"accessToken"`
	AccessExpiresAt  time.Time           `json:"accessExpiresAt"`
	RefreshToken     string              `json:"refreshToken"`
	RefreshExpiresAt time.Time           `json:"refreshExpiresAt"`
}

type RegisterInput struct {
	Name     string      `json:"name" binding:"required,min=2,max=120"`
	Email    string      `json:"email" binding:"required,email,max=255"`
	Password string      `json:"password" binding:"required,min=8,max=255"`
	Role     domain.Role `json:"role" binding:"omitempty,oneof=SuperAdmin Admin Moderator User"`
}

type RegisterResult struct {
	User                      *domain.User `json:"user"`
	RequiresEmailVerification bool         `json:"requiresEmailVerification"`
	RequiresApproval          bool         `json:"requiresApproval"`
}

// Register actor 为 nil 时走自助注册；否则是管理员代建，直接 active + approved
func (s *AuthService) Register(ctx context.Context, actor *domain.Actor, in RegisterInput) (*RegisterResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if actor != nil {
		u, err := s.creator.Create(ctx, *actor, CreateUserInput(in))
		if err != nil {
			return nil, err
		}
		return &RegisterResult{User: u}, nil
	}

	if err := s.registrationOpen(ctx); err != nil {
		return nil, err
	}
	if err := domain.AuthorizeRoleAssignment(nil, roleOrDefault(in.Role)); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.Conflict("Email already in use")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := domain.NewPendingUser(utils.NewID(), strings.TrimSpace(in.Name), email, hash)
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, u.ID, "auth.register_pending", domain.EntityUser, u.ID, nil)
	s.sendVerification(ctx, u)

	return &RegisterResult{User: u, RequiresEmailVerification: true, RequiresApproval: true}, nil
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=1,max=255"`
}

// Login 未知邮箱、已删除和密码错误统一报 InvalidCredentials；
// 密码正确之后才会给出验证 / 审批 / 停用的具体原因。
func (s *AuthService) Login(ctx context.Context, in LoginInput, ip string) (*Session, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			authEvents.WithLabelValues("login_failed").Inc()
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if u.IsDeleted() || !utils.CheckPassword(in.Password, u.PasswordHash) {
		authEvents.WithLabelValues("login_failed").Inc()
		return nil, domain.ErrInvalidCredentials
	}
	if err := u.LoginGate(); err != nil {
		authEvents.WithLabelValues("login_gated").Inc()
		return nil, err
	}
	sess, err := s.startSession(ctx, u, ip)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, u.ID, "auth.login", domain.EntityUser, u.ID, map[string]any{"ip": ip})
	authEvents.WithLabelValues("login").Inc()
	return sess, nil
}

// startSession 先落库会话记录，再签发 token
func (s *AuthService) startSession(ctx context.Context, u *domain.User, ip string) (*Session, error) {
	now := s.now()
	perms := domain.PermissionsOf(u.Role)
	id := auth.Identity{UserID: u.ID, Role: string(u.Role), Permissions: permStrings(perms)}

	access, accessExp, err := s.tokens.IssueAccess(id)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	jti := utils.NewID()
	refreshExp := s.tokens.RefreshExpiry()
	rec := &domain.RefreshToken{
		ID:          utils.NewID(),
		UserID:      u.ID,
		Token:       jti,
		ExpiresAt:   refreshExp.UTC(),
		CreatedByIP: ip,
	}
	if err := s.sessions.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	refresh, err := s.tokens.IssueRefresh(id, jti, refreshExp)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		s.log.Warn("touch last login failed", zap.String("user_id", u.ID), zap.Error(err))
	} else {
		u.LastLoginAt = &now
	}
	return &Session{
		User:             u,
		Permissions:      perms,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// registrationOpen 配置是总开关，设置里的 features.allowRegistration 可再关掉
func (s *AuthService) registrationOpen(ctx context.Context) error {
	if !s.cfg.AllowRegistration {
		return domain.Disabled("Registrations are disabled")
	}
	if s.settings == nil {
		return nil
	}
	st, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	if !st.Features.AllowRegistration {
		return domain.Disabled("Registrations are disabled")
	}
	return nil
}

// Refresh 轮换：旧 jti 撤销并指向新 jti，重放旧 token 一律 InvalidToken
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip string) (*Session, error) {
	ctx, span := tracing.Start(ctx, "auth.refresh")
	defer span.End()

	if refreshToken == "" {
		return nil, domain.InvalidToken("Refresh token missing")
	}
	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		authEvents.WithLabelValues("refresh_invalid").Inc()
		return nil, domain.InvalidToken("Invalid refresh token")
	}
	span.SetAttributes(attribute.String("user.id", claims.UserID()))

	now := s.now()
	rec, err := s.sessions.FindActive(ctx, claims.SessionID(), now)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			authEvents.WithLabelValues("refresh_replay").Inc()
			return nil, domain.InvalidToken("Invalid refresh token")
		}
		return nil, err
	}
	if rec.UserID != claims.UserID() {
		return nil, domain.InvalidToken("Invalid refresh token")
	}
	u, err := s.users.FindByID(ctx, rec.UserID, true)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.ErrAccountUnavailable
		}
		return nil, err
	}
	if !u.IsUsable() {
		return nil, domain.ErrAccountUnavailable
	}

	perms := domain.PermissionsOf(u.Role)
	id := auth.Identity{UserID: u.ID, Role: string(u.Role), Permissions: permStrings(perms)}
	access, accessExp, err := s.tokens.IssueAccess(id)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	// 先落新会话再撤旧会话；写入失败时旧 token 仍可重试
	next := utils.NewID()
	refreshExp := s.tokens.RefreshExpiry()
	if err := s.sessions.Create(ctx, &domain.RefreshToken{
		ID:          utils.NewID(),
		UserID:      u.ID,
		Token:       next,
		ExpiresAt:   refreshExp.UTC(),
		CreatedByIP: ip,
	}); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	won, err := s.sessions.Rotate(ctx, rec.Token, next, now)
	if err == nil && !won {
		// 并发刷新里输掉的一方
		authEvents.WithLabelValues("refresh_replay").Inc()
		err = domain.InvalidToken("Invalid refresh token")
	}
	if err != nil {
		if _, rerr := s.sessions.Revoke(ctx, next, now); rerr != nil {
			s.log.Warn("revoke orphan session failed", zap.String("user_id", u.ID), zap.Error(rerr))
		}
		return nil, err
	}
	refresh, err := s.tokens.IssueRefresh(id, next, refreshExp)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}
	s.audit.Record(ctx, u.ID, "auth.refresh", domain.EntityUser, u.ID, map[string]any{"ip": ip})
	authEvents.WithLabelValues("refresh").Inc()

	return &Session{
		User:             u,
		Permissions:      perms,
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Logout 尽力撤销，任何错误都不向调用方暴露
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	claims, err := s.tokens.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		return
	}
	revoked, err := s.sessions.Revoke(ctx, claims.SessionID(), s.now())
	if err != nil {
		s.log.Warn("logout revoke failed", zap.Error(err))
		return
	}
	if revoked {
		s.audit.Record(ctx, claims.UserID(), "auth.logout", domain.EntityUser, claims.UserID(), nil)
	}
}

func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	return s.users.FindByID(ctx, userID, false)
}

type TokenInput struct {
	Token string `json:"token" binding:"required,min=10"`
}

// VerifyEmail 消费验证令牌；approved 的账号直接 active
func (s *AuthService) VerifyEmail(ctx context.Context, in TokenInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	t, err := s.otts.Consume(ctx, domain.PurposeEmailVerification, utils.HashToken(in.Token), s.now())
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, t.UserID, false)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil, domain.InvalidToken("Token invalid or expired")
		}
		return nil, err
	}
	u.VerifyEmail(s.now())
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	if err := s.otts.DeleteUnused(ctx, u.ID, domain.PurposeEmailVerification); err != nil {
		s.log.Warn("cleanup verification tokens failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.audit.Record(ctx, u.ID, "auth.email_verified", domain.EntityUser, u.ID, nil)
	return u, nil
}

type ForgotPasswordInput struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

// RequestPasswordReset 邮箱不存在时同样返回成功
func (s *AuthService) RequestPasswordReset(ctx context.Context, in ForgotPasswordInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	u, err := s.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return nil
		}
		return err
	}
	if u.IsDeleted() {
		return nil
	}
	raw, err := s.issueOneTime(ctx, u.ID, domain.PurposePasswordReset, s.cfg.ResetTokenTTL)
	if err != nil {
		return err
	}
	s.audit.Record(ctx, u.ID, "auth.reset_requested", domain.EntityUser, u.ID, nil)
	s.deliver(ctx, func() (mail.Message, error) {
		return s.composer.PasswordReset(u.Email, u.Name, raw, humanize(s.cfg.ResetTokenTTL))
	})
	return nil
}

type ResetPasswordInput struct {
	Token    string `json:"token" binding:"required,min=10"`
	Password string `json:"password" binding:"required,min=8,max=255"`
}

// ResetPassword 成功后吊销该用户全部会话
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	now := s.now()
	t, err := s.otts.Consume(ctx, domain.PurposePasswordReset, utils.HashToken(in.Token), now)
	if err != nil {
		return err
	}
	u, err := s.users.FindByID(ctx, t.UserID, false)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return domain.InvalidToken("Token invalid or expired")
		}
		return err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}
	if err := s.otts.DeleteUnused(ctx, u.ID, domain.PurposePasswordReset); err != nil {
		s.log.Warn("cleanup reset tokens failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, u.ID, now); err != nil {
		s.log.Warn("revoke sessions after reset failed", zap.String("user_id", u.ID), zap.Error(err))
	}
	s.audit.Record(ctx, u.ID, "auth.password_reset", domain.EntityUser, u.ID, nil)
	return nil
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword" binding:"required,min=1,max=255"`
	NewPassword     string `json:"newPassword" binding:"required,min=8,max=255"`
}

func (s *AuthService) ChangePassword(ctx context.Context, actor domain.Actor, in ChangePasswordInput) error {
	if err := validateInput(in); err != nil {
		return err
	}
	u, err := s.users.FindByID(ctx, actor.ID, false)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(in.CurrentPassword, u.PasswordHash) {
		return domain.FieldInvalid("currentPassword", "Current password is incorrect")
	}
	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.PasswordHash = hash
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}
	s.audit.Record(ctx, u.ID, "user.change_password", domain.EntityUser, u.ID, nil)
	return nil
}

type BootstrapInput struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name" binding:"required,min=2,max=120"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=255"`
}

// BootstrapAdmin 未配置密钥时整体关闭；已存在 Admin/SuperAdmin 后同样关闭
func (s *AuthService) BootstrapAdmin(ctx context.Context, in BootstrapInput, ip string) (*Session, error) {
	if s.cfg.BootstrapToken == "" {
		return nil, domain.Disabled("Admin bootstrap is disabled")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if subtle.ConstantTimeCompare([]byte(in.Token), []byte(s.cfg.BootstrapToken)) != 1 {
		return nil, domain.Forbidden("Invalid bootstrap token")
	}
	exists, err := s.users.ExistsWithRole(ctx, domain.RoleAdmin, domain.RoleSuperAdmin)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.Disabled("Admin bootstrap already completed")
	}
	email := normalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.Conflict("Email already in use")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	id := utils.NewID()
	// 自己审批自己
	u := domain.NewApprovedUser(id, strings.TrimSpace(in.Name), email, hash, domain.RoleAdmin, id, s.now())
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, u.ID, "auth.bootstrap_admin", domain.EntityUser, u.ID, map[string]any{"ip": ip})

	sess, err := s.startSession(ctx, u, ip)
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, u.ID, "auth.login", domain.EntityUser, u.ID, map[string]any{"ip": ip})
	return sess, nil
}

func (s *AuthService) issueOneTime(ctx context.Context, userID string, purpose domain.TokenPurpose, ttl time.Duration) (string, error) {
	raw, err := utils.RandomToken(32)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	err = s.otts.Issue(ctx, &domain.OneTimeToken{
		ID:        utils.NewID(),
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: utils.HashToken(raw),
		ExpiresAt: s.now().Add(ttl),
	})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// sendVerification 失败只记日志，注册本身已经成功
func (s *AuthService) sendVerification(ctx context.Context, u *domain.User) {
	raw, err := s.issueOneTime(ctx, u.ID, domain.PurposeEmailVerification, s.cfg.VerifyTokenTTL)
	if err != nil {
		s.log.Error("issue verification token failed", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	s.deliver(ctx, func() (mail.Message, error) {
		return s.composer.Verification(u.Email, u.Name, raw, humanize(s.cfg.VerifyTokenTTL))
	})
}

func (s *AuthService) deliver(ctx context.Context, build func() (mail.Message, error)) {
	msg, err := build()
	if err == nil {
		err = s.mailer.Send(context.WithoutCancel(ctx), msg)
	}
	if err != nil {
		s.log.Warn("mail delivery failed", zap.String("to", msg.To), zap.Error(err))
	}
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func roleOrDefault(r domain.Role) domain.Role {
	if r == "" {
		return domain.RoleUser
	}
	return r
}

func permStrings(ps []domain.Permission) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

func humanize(d time.Duration) string {
	n, unit := int(d/time.Minute), "minute"
	if d >= time.Hour && d%time.Hour == 0 {
		n, unit = int(d/time.Hour), "hour"
	}
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

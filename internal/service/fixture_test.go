package service

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"posto-admin/internal/core/auth"
	"posto-admin/internal/domain"
	"posto-admin/internal/mail"
	"posto-admin/internal/repo"
	"posto-admin/internal/testkit"
	"posto-admin/pkg/utils"
)

const testPassword = "correct-horse-1"

// outbox 记录发出的邮件
type outbox struct {
	mu   sync.Mutex
	msgs []mail.Message
}

func (o *outbox) Send(_ context.Context, m mail.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
	return nil
}

var tokenRe = regexp.MustCompile(`token=([^\s"&]+)`)

// lastToken 取发给 to 的最后一封邮件里的令牌
func (o *outbox) lastToken(t *testing.T, to string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.msgs) - 1; i >= 0; i-- {
		if o.msgs[i].To != to {
			continue
		}
		m := tokenRe.FindStringSubmatch(o.msgs[i].Text)
		require.Len(t, m, 2)
		raw, err := url.QueryUnescape(m[1])
		require.NoError(t, err)
		return raw
	}
	t.Fatalf("no mail sent to %s", to)
	return ""
}

func (o *outbox) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.msgs)
}

type fixture struct {
	db       *gorm.DB
	users    *repo.UserRepo
	sessions *repo.RefreshTokenRepo
	tokens   *auth.TokenService
	mail     *outbox
	audit    *AuditService
	userSvc  *UserService
	authSvc  *AuthService
	postSvc  *PostService
	termSvc  *TaxonomyService
	prodSvc  *ProductService
	setSvc   *SettingService
}

type fixtureOpt func(*AuthConfig)

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	db := testkit.NewDB(t)
	l := zap.NewNop()
	tokens, err := auth.NewTokenService(auth.Options{
		AccessSecret:  "test-access",
		RefreshSecret: "test-refresh",
		Issuer:        "posto-test",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	cfg := AuthConfig{AllowRegistration: true, BootstrapToken: "bootstrap-secret"}
	for _, o := range opts {
		o(&cfg)
	}

	f := &fixture{
		db:       db,
		users:    repo.NewUserRepo(db),
		sessions: repo.NewRefreshTokenRepo(db),
		tokens:   tokens,
		mail:     &outbox{},
	}
	categories := repo.NewCategoryRepo(db)
	tags := repo.NewTagRepo(db)
	f.audit = NewAuditService(repo.NewAuditRepo(db), l)
	f.userSvc = NewUserService(f.users, f.sessions, f.audit, l)
	f.setSvc = NewSettingService(repo.NewSettingRepo(db), "POSTO", f.audit, l)
	f.authSvc = NewAuthService(AuthDeps{
		Users:    f.users,
		Sessions: f.sessions,
		OTTs:     repo.NewOneTimeTokenRepo(db),
		Tokens:   tokens,
		Creator:  f.userSvc,
		Mailer:   f.mail,
		Composer: mail.Composer{AppName: "POSTO", ClientURL: "http://app.test"},
		Audit:    f.audit,
		Settings: f.setSvc,
		Log:      l,
	}, cfg)
	f.postSvc = NewPostService(repo.NewPostRepo(db), categories, tags, f.audit, true, l)
	f.termSvc = NewTaxonomyService(categories, tags, nil, time.Minute, f.audit, l)
	f.prodSvc = NewProductService(repo.NewProductRepo(db), categories, tags, f.audit, l)
	return f
}

// seedUser 直接落库一个 active + approved 的账号
func (f *fixture) seedUser(t *testing.T, email string, role domain.Role) domain.Actor {
	t.Helper()
	hash, err := utils.HashPassword(testPassword)
	require.NoError(t, err)
	u := domain.NewApprovedUser(utils.NewID(), "Seeded "+string(role), email, hash, role, "seed", time.Now().UTC())
	require.NoError(t, f.users.Create(context.Background(), u))
	return u.Actor()
}

func (f *fixture) auditCount(t *testing.T, action string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.AuditLog{}).Where("action = ?", action).Count(&n).Error)
	return n
}

func (f *fixture) totalAudits(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.AuditLog{}).Count(&n).Error)
	return n
}

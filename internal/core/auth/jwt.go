package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind access / refresh 使用不同密钥，互不通用
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	Kind        Kind     `json:"token_type"`
	jwt.RegisteredClaims
}

// UserID Subject 即用户 id
func (c *Claims) UserID() string { return c.Subject }

// SessionID refresh token 的 jti
func (c *Claims) SessionID() string { return c.ID }

type Identity struct {
	UserID      string
	Role        string
	Permissions []string
}

type Options struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Leeway        time.Duration
}

type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	leeway        time.Duration
	now           func() time.Time
}

func NewTokenService(o Options) (*TokenService, error) {
	if o.AccessSecret == "" || o.RefreshSecret == "" {
		return nil, errors.New("jwt: access and refresh secrets are required")
	}
	if o.AccessSecret == o.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}
	if o.AccessTTL <= 0 {
		o.AccessTTL = 15 * time.Minute
	}
	if o.RefreshTTL <= 0 {
		o.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenService{
		accessSecret:  []byte(o.AccessSecret),
		refreshSecret: []byte(o.RefreshSecret),
		issuer:        o.Issuer,
		accessTTL:     o.AccessTTL,
		refreshTTL:    o.RefreshTTL,
		leeway:        o.Leeway,
		now:           time.Now,
	}, nil
}

// WithClock 测试用
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

func (s *TokenService) AccessTTL() time.Duration  { return s.accessTTL }
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// RefreshExpiry 持久化会话记录时使用，与签发的 exp 一致
func (s *TokenService) RefreshExpiry() time.Time {
	return s.now().Add(s.refreshTTL).Truncate(time.Second)
}

func (s *TokenService) IssueAccess(id Identity) (string, time.Time, error) {
	return s.issue(KindAccess, id, "", s.now().Add(s.accessTTL))
}

// IssueRefresh 只签名，不落库；调用方须先写入会话记录
func (s *TokenService) IssueRefresh(id Identity, sessionID string, expiresAt time.Time) (string, error) {
	if sessionID == "" {
		return "", errors.New("jwt: refresh token requires a session id")
	}
	tok, _, err := s.issue(KindRefresh, Identity{UserID: id.UserID, Role: id.Role}, sessionID, expiresAt)
	return tok, err
}

func (s *TokenService) issue(kind Kind, id Identity, jti string, exp time.Time) (string, time.Time, error) {
	now := s.now()
	exp = exp.Truncate(time.Second)
	claims := Claims{
		Role:        id.Role,
		Permissions: id.Permissions,
		Kind:        kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			ID:        jti,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret(kind))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (s *TokenService) secret(kind Kind) []byte {
	if kind == KindRefresh {
		return s.refreshSecret
	}
	return s.accessSecret
}

// Verify 校验签名、过期时间和 token_type；任何失败都返回 ErrInvalidToken
func (s *TokenService) Verify(tokenStr string, kind Kind) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.leeway),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret(kind), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c, ok := t.Claims.(*Claims)
	if !ok || !t.Valid {
		return nil, ErrInvalidToken
	}
	if c.Kind != kind || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	if kind == KindRefresh && c.ID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

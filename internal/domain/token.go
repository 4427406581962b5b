package domain

import (
	"context"
	"time"
)

// RefreshToken 会话记录，Token 字段存的是 jti，不是 JWT 原文。记录永不物理删除。
type RefreshToken struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	UserID          string     `gorm:"size:36;not null;index" json:"userId"`
	Token           string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt       time.Time  `gorm:"not null" json:"expiresAt"`
	CreatedByIP     string     `gorm:"size:64" json:"createdByIp"`
	RevokedAt       *time.Time `json:"revokedAt"`
	ReplacedByToken *string    `gorm:"size:64" json:"replacedByToken"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (RefreshToken) TableName() string { return "refresh_tokens" }

func (t *RefreshToken) IsActive(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// OneTimeToken 邮箱验证 / 重置密码共用一张表，靠 Purpose 区分；只存 sha256 摘要
type OneTimeToken struct {
	ID        string       `gorm:"primaryKey;size:36"`
	UserID    string       `gorm:"size:36;not null;index"`
	Purpose   TokenPurpose `gorm:"size:32;not null;index"`
	TokenHash string       `gorm:"size:64;not null;uniqueIndex"`
	ExpiresAt time.Time    `gorm:"not null"`
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (OneTimeToken) TableName() string { return "one_time_tokens" }

type RefreshTokenRepository interface {
	Create(ctx context.Context, t *RefreshToken) error
	// FindActive 未撤销且未过期，否则 NotFound
	FindActive(ctx context.Context, jti string, now time.Time) (*RefreshToken, error)
	// Rotate 单条条件更新：仅当 jti 仍有效时撤销并指向 replacedBy；返回是否抢到
	Rotate(ctx context.Context, jti, replacedBy string, now time.Time) (bool, error)
	Revoke(ctx context.Context, jti string, now time.Time) (bool, error)
	RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error)
}

type OneTimeTokenRepository interface {
	// Issue 作废同用户同用途的未使用令牌后写入新令牌
	Issue(ctx context.Context, t *OneTimeToken) error
	// Consume 原子地把未使用且未过期的令牌标记为已用；失败返回 InvalidToken
	Consume(ctx context.Context, purpose TokenPurpose, tokenHash string, now time.Time) (*OneTimeToken, error)
	DeleteUnused(ctx context.Context, userID string, purpose TokenPurpose) error
}

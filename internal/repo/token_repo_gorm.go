package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

type RefreshTokenRepo struct{ db *gorm.DB }

func NewRefreshTokenRepo(db *gorm.DB) *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }

func (r *RefreshTokenRepo) Create(ctx context.Context, t *domain.RefreshToken) error {
	return mapErr(r.db.WithContext(ctx).Create(t).Error, "session")
}

func (r *RefreshTokenRepo) FindActive(ctx context.Context, jti string, now time.Time) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).
		Where("token = ? AND revoked_at IS NULL AND expires_at > ?", jti, now).
		First(&t).Error
	if err != nil {
		return nil, mapErr(err, "session")
	}
	return &t, nil
}

// Rotate 撤销与链接在一条 UPDATE 里完成，并发刷新只有一个能命中
func (r *RefreshTokenRepo) Rotate(ctx context.Context, jti, replacedBy string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL AND expires_at > ?", jti, now).
		Updates(map[string]any{"revoked_at": now, "replaced_by_token": replacedBy})
	return res.RowsAffected == 1, res.Error
}

func (r *RefreshTokenRepo) Revoke(ctx context.Context, jti string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("token = ? AND revoked_at IS NULL", jti).
		Update("revoked_at", now)
	return res.RowsAffected == 1, res.Error
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

type OneTimeTokenRepo struct{ db *gorm.DB }

func NewOneTimeTokenRepo(db *gorm.DB) *OneTimeTokenRepo { return &OneTimeTokenRepo{db: db} }

func (r *OneTimeTokenRepo) Issue(ctx context.Context, t *domain.OneTimeToken) error {
	if err := r.DeleteUnused(ctx, t.UserID, t.Purpose); err != nil {
		return err
	}
	return mapErr(r.db.WithContext(ctx).Create(t).Error, "token")
}

func (r *OneTimeTokenRepo) Consume(ctx context.Context, purpose domain.TokenPurpose, tokenHash string, now time.Time) (*domain.OneTimeToken, error) {
	res := r.db.WithContext(ctx).Model(&domain.OneTimeToken{}).
		Where("token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", tokenHash, purpose, now).
		Update("used_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected != 1 {
		return nil, domain.InvalidToken("Token invalid or expired")
	}
	var t domain.OneTimeToken
	if err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&t).Error; err != nil {
		return nil, mapErr(err, "token")
	}
	return &t, nil
}

func (r *OneTimeTokenRepo) DeleteUnused(ctx context.Context, userID string, purpose domain.TokenPurpose) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND purpose = ? AND used_at IS NULL", userID, purpose).
		Delete(&domain.OneTimeToken{}).Error
}

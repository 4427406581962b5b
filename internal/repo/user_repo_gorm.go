package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

var userSortable = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"name":        "name",
	"email":       "email",
	"lastLoginAt": "last_login_at",
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return mapErr(r.db.WithContext(ctx).Create(u).Error, "email")
}

func (r *UserRepo) FindByID(ctx context.Context, id string, includeDeleted bool) (*domain.User, error) {
	var u domain.User
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if err := q.First(&u).Error; err != nil {
		return nil, mapErr(err, "user")
	}
	return &u, nil
}

// FindByEmail 包含已软删除的账号，由调用方判断
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, mapErr(err, "user")
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, f domain.UserFilter, p domain.Page) ([]domain.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.User{})
	if !f.IncludeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		q = q.Where("(LOWER(name) LIKE ?"+likeEscape+" OR LOWER(email) LIKE ?"+likeEscape+")", like, like)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Role != "" {
		q = q.Where("role = ?", f.Role)
	}
	if f.ApprovalStatus != "" {
		q = q.Where("approval_status = ?", f.ApprovalStatus)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []domain.User
	q = applySort(q, p.Sort, userSortable, "created_at desc")
	if err := paginate(q, p).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *UserRepo) Save(ctx context.Context, u *domain.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return mapErr(r.db.WithContext(ctx).Save(u).Error, "email")
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).Error
}

func (r *UserRepo) SetStatusBulk(ctx context.Context, ids []string, s domain.UserStatus) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id IN ? AND deleted_at IS NULL", ids).
		Updates(map[string]any{"status": s, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

func (r *UserRepo) HardDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound("user not found")
	}
	return nil
}

func (r *UserRepo) ExistsWithRole(ctx context.Context, roles ...domain.Role) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("role IN ? AND deleted_at IS NULL", roles).
		Count(&n).Error
	return n > 0, err
}

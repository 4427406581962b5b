package repo

import (
	"context"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

// TermRepo Category / Tag 共用的泛型仓储
type TermRepo[T domain.Term] struct {
	db   *gorm.DB
	what string
}

func NewCategoryRepo(db *gorm.DB) *TermRepo[domain.Category] {
	return &TermRepo[domain.Category]{db: db, what: "category"}
}

func NewTagRepo(db *gorm.DB) *TermRepo[domain.Tag] {
	return &TermRepo[domain.Tag]{db: db, what: "tag"}
}

func (r *TermRepo[T]) Create(ctx context.Context, t *T) error {
	return mapErr(r.db.WithContext(ctx).Create(t).Error, r.what+" slug")
}

func (r *TermRepo[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var t T
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, mapErr(err, r.what)
	}
	return &t, nil
}

func (r *TermRepo[T]) Save(ctx context.Context, t *T) error {
	return mapErr(r.db.WithContext(ctx).Save(t).Error, r.what+" slug")
}

func (r *TermRepo[T]) Delete(ctx context.Context, id string) error {
	var zero T
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&zero)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.NotFound(r.what + " not found")
	}
	return nil
}

func (r *TermRepo[T]) List(ctx context.Context, typ domain.TaxonomyType) ([]T, error) {
	var out []T
	q := r.db.WithContext(ctx)
	if typ != "" {
		q = q.Where("type = ?", typ)
	}
	if err := q.Order("name asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *TermRepo[T]) CountByIDs(ctx context.Context, typ domain.TaxonomyType, ids []string) (int64, error) {
	var zero T
	var n int64
	err := r.db.WithContext(ctx).Model(&zero).
		Where("id IN ? AND type = ?", ids, typ).
		Count(&n).Error
	return n, err
}

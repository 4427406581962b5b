package repo

import (
	"context"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

type ProductRepo struct{ db *gorm.DB }

func NewProductRepo(db *gorm.DB) *ProductRepo { return &ProductRepo{db: db} }

var productSortable = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
	"price":     "price_cents",
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	return mapErr(r.db.WithContext(ctx).Create(p).Error, "slug")
}

func (r *ProductRepo) FindByID(ctx context.Context, id string, includeDeleted bool) (*domain.Product, error) {
	var p domain.Product
	q := r.db.WithContext(ctx).Where("id = ?", id)
	if !includeDeleted {
		q = q.Where("deleted_at IS NULL")
	}
	if err := q.First(&p).Error; err != nil {
		return nil, mapErr(err, "product")
	}
	return &p, nil
}

func (r *ProductRepo) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	var p domain.Product
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, mapErr(err, "product")
	}
	return &p, nil
}

func (r *ProductRepo) SlugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int64
	q := r.db.WithContext(ctx).Model(&domain.Product{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (r *ProductRepo) Save(ctx context.Context, p *domain.Product) error {
	return mapErr(r.db.WithContext(ctx).Save(p).Error, "slug")
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilter, pg domain.Page) ([]domain.Product, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.Product{})
	if !f.IncludeDeleted || f.PublicOnly {
		q = q.Where("deleted_at IS NULL")
	}
	if f.PublicOnly {
		q = q.Where("status = ? AND visibility = ?", domain.ProductPublished, domain.VisibilityVisible)
	} else {
		if f.Status != "" {
			q = q.Where("status = ?", f.Status)
		}
		if f.Visibility != "" {
			q = q.Where("visibility = ?", f.Visibility)
		}
	}
	if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.Search != "" {
		like := likePattern(f.Search)
		q = q.Where("(LOWER(title) LIKE ?"+likeEscape+" OR LOWER(description) LIKE ?"+likeEscape+")", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []domain.Product
	if err := paginate(applySort(q, pg.Sort, productSortable, "created_at desc"), pg).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

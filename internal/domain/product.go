package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

type ProductStatus string

const (
	ProductDraft     ProductStatus = "draft"
	ProductPublished ProductStatus = "published"
)

func (s ProductStatus) Valid() bool { return s == ProductDraft || s == ProductPublished }

type Visibility string

const (
	VisibilityVisible Visibility = "visible"
	VisibilityHidden  Visibility = "hidden"
)

func (v Visibility) Valid() bool { return v == VisibilityVisible || v == VisibilityHidden }

type Product struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	Title       string                      `gorm:"size:200;not null" json:"title"`
	Slug        string                      `gorm:"size:220;not null;uniqueIndex" json:"slug"`
	Description string                      `gorm:"type:text" json:"description"`
	PriceCents  int64                       `gorm:"not null" json:"priceCents"`
	Currency    string                      `gorm:"size:3;not null" json:"currency"`
	Stock       int                         `json:"stock"`
	Status      ProductStatus               `gorm:"size:16;not null;index" json:"status"`
	Visibility  Visibility                  `gorm:"size:16;not null;index" json:"visibility"`
	CategoryID  *string                     `gorm:"size:36;index" json:"categoryId"`
	TagIDs      datatypes.JSONSlice[string] `json:"tagIds"`
	CreatedBy   string                      `gorm:"size:36" json:"createdBy"`
	CreatedAt   time.Time                   `json:"createdAt"`
	UpdatedAt   time.Time                   `json:"updatedAt"`
	DeletedAt   *time.Time                  `gorm:"index" json:"deletedAt,omitempty"`
}

func (Product) TableName() string { return "products" }

func (p *Product) IsDeleted() bool { return p.DeletedAt != nil }

func (p *Product) IsPublic() bool {
	return !p.IsDeleted() && p.Status == ProductPublished && p.Visibility == VisibilityVisible
}

type ProductFilter struct {
	Status         ProductStatus
	Visibility     Visibility
	CategoryID     string
	Search         string
	IncludeDeleted bool
	PublicOnly     bool
}

type ProductRepository interface {
	Create(ctx context.Context, p *Product) error
	FindByID(ctx context.Context, id string, includeDeleted bool) (*Product, error)
	FindBySlug(ctx context.Context, slug string) (*Product, error)
	SlugTaken(ctx context.Context, slug, exceptID string) (bool, error)
	Save(ctx context.Context, p *Product) error
	List(ctx context.Context, f ProductFilter, pg Page) ([]Product, int64, error)
}

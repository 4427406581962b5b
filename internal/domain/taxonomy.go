package domain

import (
	"context"
	"time"
)

type TaxonomyType string

const (
	TaxonomyPost    TaxonomyType = "post"
	TaxonomyProduct TaxonomyType = "product"
)

func (t TaxonomyType) Valid() bool { return t == TaxonomyPost || t == TaxonomyProduct }

// (slug, type) 唯一
type Category struct {
	ID          string       `gorm:"primaryKey;size:36" json:"id"`
	Name        string       `gorm:"size:120;not null" json:"name"`
	Slug        string       `gorm:"size:140;not null;uniqueIndex:idx_category_slug_type" json:"slug"`
	Type        TaxonomyType `gorm:"size:16;not null;uniqueIndex:idx_category_slug_type" json:"type"`
	Description string       `gorm:"size:500" json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func (Category) TableName() string { return "categories" }

type Tag struct {
	ID        string       `gorm:"primaryKey;size:36" json:"id"`
	Name      string       `gorm:"size:80;not null" json:"name"`
	Slug      string       `gorm:"size:100;not null;uniqueIndex:idx_tag_slug_type" json:"slug"`
	Type      TaxonomyType `gorm:"size:16;not null;uniqueIndex:idx_tag_slug_type" json:"type"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

func (Tag) TableName() string { return "tags" }

// Term Category / Tag 的共同约束，供泛型仓储使用
type Term interface {
	Category | Tag
}

type TermRepository[T Term] interface {
	Create(ctx context.Context, t *T) error
	FindByID(ctx context.Context, id string) (*T, error)
	Save(ctx context.Context, t *T) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, typ TaxonomyType) ([]T, error)
	// CountByIDs 统计给定 id 中属于 typ 的条目数，用于引用校验
	CountByIDs(ctx context.Context, typ TaxonomyType, ids []string) (int64, error)
}

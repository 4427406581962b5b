package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"posto-admin/internal/domain"
	"posto-admin/pkg/sanitize"
	"posto-admin/pkg/utils"
)

type ProductService struct {
	products domain.ProductRepository
	refs     termRefs
	audit    Auditor
	log      *zap.Logger
	now      func() time.Time
}

func NewProductService(
	products domain.ProductRepository,
	categories domain.TermRepository[domain.Category],
	tags domain.TermRepository[domain.Tag],
	audit Auditor,
	l *zap.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		refs:     termRefs{categories: categories, tags: tags},
		audit:    audit,
		log:      l,
		now:      utcNow,
	}
}

type ProductInput struct {
	Title       string               `json:"title" binding:"required,min=2,max=200"`
	Slug        string               `json:"slug" binding:"omitempty,min=2,max=200"`
	Description string               `json:"description"`
	PriceCents  int64                `json:"priceCents" binding:"min=0"`
	Currency    string               `json:"currency" binding:"omitempty,len=3"`
	Stock       int                  `json:"stock" binding:"min=0"`
	Status      domain.ProductStatus `json:"status" binding:"omitempty,oneof=draft published"`
	Visibility  domain.Visibility    `json:"visibility" binding:"omitempty,oneof=visible hidden"`
	CategoryID  *string              `json:"categoryId" binding:"omitempty,max=36"`
	TagIDs      []string             `json:"tagIds" binding:"omitempty,max=50,dive,required,max=36"`
}

type ProductPatch struct {
	Title       *string               `json:"title" binding:"omitempty,min=2,max=200"`
	Slug        *string               `json:"slug" binding:"omitempty,min=2,max=200"`
	Description *string               `json:"description"`
	PriceCents  *int64                `json:"priceCents" binding:"omitempty,min=0"`
	Currency    *string               `json:"currency" binding:"omitempty,len=3"`
	Stock       *int                  `json:"stock" binding:"omitempty,min=0"`
	Status      *domain.ProductStatus `json:"status" binding:"omitempty,oneof=draft published"`
	Visibility  *domain.Visibility    `json:"visibility" binding:"omitempty,oneof=visible hidden"`
	CategoryID  *string               `json:"categoryId" binding:"omitempty,max=36"`
	TagIDs      []string              `json:"tagIds" binding:"omitempty,max=50,dive,required,max=36"`
}

type ProductQuery struct {
	Status         domain.ProductStatus `form:"status" binding:"omitempty,oneof=draft published"`
	Visibility     domain.Visibility    `form:"visibility" binding:"omitempty,oneof=visible hidden"`
	CategoryID     string               `form:"categoryId"`
	Search         string               `form:"search"`
	IncludeDeleted bool                 `form:"includeDeleted"`
	domain.Page
}

func (s *ProductService) List(ctx context.Context, q ProductQuery) (*domain.PageResult[domain.Product], error) {
	if err := validateInput(q); err != nil {
		return nil, err
	}
	return s.list(ctx, domain.ProductFilter{
		Status:         q.Status,
		Visibility:     q.Visibility,
		CategoryID:     q.CategoryID,
		Search:         q.Search,
		IncludeDeleted: q.IncludeDeleted,
	}, q.Page)
}

func (s *ProductService) PublicList(ctx context.Context, q PublicQuery) (*domain.PageResult[domain.Product], error) {
	return s.list(ctx, domain.ProductFilter{CategoryID: q.CategoryID, Search: q.Search, PublicOnly: true}, q.Page)
}

func (s *ProductService) list(ctx context.Context, f domain.ProductFilter, pg domain.Page) (*domain.PageResult[domain.Product], error) {
	p := pg.Normalize()
	items, total, err := s.products.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPageResult(items, total, p), nil
}

func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.FindByID(ctx, id, false)
}

func (s *ProductService) PublicGet(ctx context.Context, slug string) (*domain.Product, error) {
	p, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !p.IsPublic() {
		return nil, domain.NotFound("product not found")
	}
	return p, nil
}

func (s *ProductService) Create(ctx context.Context, actor domain.Actor, in ProductInput) (*domain.Product, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := s.refs.check(ctx, domain.TaxonomyProduct, in.CategoryID, in.TagIDs); err != nil {
		return nil, err
	}
	id := utils.NewID()
	slug, err := resolveSlug(ctx, s.products.SlugTaken, in.Slug, in.Title, id)
	if err != nil {
		return nil, err
	}
	p := &domain.Product{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Slug:        slug,
		Description: sanitize.HTML(in.Description),
		PriceCents:  in.PriceCents,
		Currency:    currencyOrDefault(in.Currency),
		Stock:       in.Stock,
		Status:      in.Status,
		Visibility:  in.Visibility,
		CategoryID:  optionalID(in.CategoryID),
		TagIDs:      dedupe(in.TagIDs),
		CreatedBy:   actor.ID,
	}
	if p.Status == "" {
		p.Status = domain.ProductDraft
	}
	if p.Visibility == "" {
		p.Visibility = domain.VisibilityVisible
	}
	if p.TagIDs == nil {
		p.TagIDs = []string{}
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "product.create", domain.EntityProduct, p.ID, map[string]any{"status": p.Status})
	return p, nil
}

func (s *ProductService) Update(ctx context.Context, actor domain.Actor, id string, in ProductPatch) (*domain.Product, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	p, err := s.products.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if in.CategoryID != nil || in.TagIDs != nil {
		if err := s.refs.check(ctx, domain.TaxonomyProduct, in.CategoryID, in.TagIDs); err != nil {
			return nil, err
		}
	}
	if in.Slug != nil {
		if p.Slug, err = resolveSlug(ctx, s.products.SlugTaken, *in.Slug, "", p.ID); err != nil {
			return nil, err
		}
	}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		p.Description = sanitize.HTML(*in.Description)
	}
	if in.PriceCents != nil {
		p.PriceCents = *in.PriceCents
	}
	if in.Currency != nil {
		p.Currency = currencyOrDefault(*in.Currency)
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.Visibility != nil {
		p.Visibility = *in.Visibility
	}
	if in.CategoryID != nil {
		p.CategoryID = optionalID(in.CategoryID)
	}
	if in.TagIDs != nil {
		p.TagIDs = dedupe(in.TagIDs)
	}
	if err := s.products.Save(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "product.update", domain.EntityProduct, p.ID, map[string]any{"status": p.Status})
	return p, nil
}

func (s *ProductService) SoftDelete(ctx context.Context, actor domain.Actor, id string) error {
	p, err := s.products.FindByID(ctx, id, false)
	if err != nil {
		return err
	}
	now := s.now()
	p.DeletedAt = &now
	if err := s.products.Save(ctx, p); err != nil {
		return err
	}
	s.audit.Record(ctx, actor.ID, "product.soft_delete", domain.EntityProduct, p.ID, nil)
	return nil
}

func (s *ProductService) Restore(ctx context.Context, actor domain.Actor, id string) (*domain.Product, error) {
	p, err := s.products.FindByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if !p.IsDeleted() {
		return p, nil
	}
	p.DeletedAt = nil
	if err := s.products.Save(ctx, p); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "product.restore", domain.EntityProduct, p.ID, nil)
	return p, nil
}

func currencyOrDefault(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "USD"
	}
	return c
}

package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"posto-admin/internal/core/cache"
	"posto-admin/internal/domain"
	"posto-admin/pkg/utils"
)

// TaxonomyService 分类和标签；公共列表走 Redis，写操作后失效
type TaxonomyService struct {
	categories domain.TermRepository[domain.Category]
	tags       domain.TermRepository[domain.Tag]
	cache      *cache.Cache
	ttl        time.Duration
	audit      Auditor
	log        *zap.Logger
}

func NewTaxonomyService(
	categories domain.TermRepository[domain.Category],
	tags domain.TermRepository[domain.Tag],
	c *cache.Cache,
	ttl time.Duration,
	audit Auditor,
	l *zap.Logger,
) *TaxonomyService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &TaxonomyService{categories: categories, tags: tags, cache: c, ttl: ttl, audit: audit, log: l}
}

type TermQuery struct {
	Type domain.TaxonomyType `form:"type" binding:"omitempty,oneof=post product"`
}

func termKey(kind string, typ domain.TaxonomyType) string {
	if typ == "" {
		return kind + ":all"
	}
	return kind + ":" + string(typ)
}

func (s *TaxonomyService) invalidate(ctx context.Context, kind string) {
	s.cache.Del(ctx, termKey(kind, ""), termKey(kind, domain.TaxonomyPost), termKey(kind, domain.TaxonomyProduct))
}

func (s *TaxonomyService) ListCategories(ctx context.Context, q TermQuery) ([]domain.Category, error) {
	if err := validateInput(q); err != nil {
		return nil, err
	}
	out, err := cache.LoadJSON(ctx, s.cache, termKey("categories", q.Type), s.ttl,
		func(ctx context.Context) ([]domain.Category, error) { return s.categories.List(ctx, q.Type) })
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Category{}
	}
	return out, nil
}

func (s *TaxonomyService) ListTags(ctx context.Context, q TermQuery) ([]domain.Tag, error) {
	if err := validateInput(q); err != nil {
		return nil, err
	}
	out, err := cache.LoadJSON(ctx, s.cache, termKey("tags", q.Type), s.ttl,
		func(ctx context.Context) ([]domain.Tag, error) { return s.tags.List(ctx, q.Type) })
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Tag{}
	}
	return out, nil
}

type CategoryInput struct {
	Name        string              `json:"name" binding:"required,min=2,max=120"`
	Slug        string              `json:"slug" binding:"omitempty,max=140"`
	Type        domain.TaxonomyType `json:"type" binding:"required,oneof=post product"`
	Description string              `json:"description" binding:"max=500"`
}

type CategoryPatch struct {
	Name        *string `json:"name" binding:"omitempty,min=2,max=120"`
	Slug        *string `json:"slug" binding:"omitempty,max=140"`
	Description *string `json:"description" binding:"omitempty,max=500"`
}

func termSlug(explicit, name string) (string, error) {
	src := explicit
	if src == "" {
		src = name
	}
	slug := utils.Slugify(src)
	if slug == "" {
		return "", domain.FieldInvalid("slug", "Slug must contain letters or digits")
	}
	return slug, nil
}

func (s *TaxonomyService) CreateCategory(ctx context.Context, actor domain.Actor, in CategoryInput) (*domain.Category, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	slug, err := termSlug(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	c := &domain.Category{
		ID:          utils.NewID(),
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Type:        in.Type,
		Description: in.Description,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "categories")
	s.audit.Record(ctx, actor.ID, "category.create", domain.EntityCategory, c.ID, map[string]any{"type": c.Type})
	return c, nil
}

func (s *TaxonomyService) UpdateCategory(ctx context.Context, actor domain.Actor, id string, in CategoryPatch) (*domain.Category, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	c, err := s.categories.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		if c.Slug, err = termSlug(*in.Slug, c.Name); err != nil {
			return nil, err
		}
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if err := s.categories.Save(ctx, c); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "categories")
	s.audit.Record(ctx, actor.ID, "category.update", domain.EntityCategory, c.ID, nil)
	return c, nil
}

func (s *TaxonomyService) DeleteCategory(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.categories.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "categories")
	s.audit.Record(ctx, actor.ID, "category.delete", domain.EntityCategory, id, nil)
	return nil
}

type TagInput struct {
	Name string              `json:"name" binding:"required,min=1,max=80"`
	Slug string              `json:"slug" binding:"omitempty,max=100"`
	Type domain.TaxonomyType `json:"type" binding:"required,oneof=post product"`
}

type TagPatch struct {
	Name *string `json:"name" binding:"omitempty,min=1,max=80"`
	Slug *string `json:"slug" binding:"omitempty,max=100"`
}

func (s *TaxonomyService) CreateTag(ctx context.Context, actor domain.Actor, in TagInput) (*domain.Tag, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	slug, err := termSlug(in.Slug, in.Name)
	if err != nil {
		return nil, err
	}
	t := &domain.Tag{ID: utils.NewID(), Name: strings.TrimSpace(in.Name), Slug: slug, Type: in.Type}
	if err := s.tags.Create(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "tags")
	s.audit.Record(ctx, actor.ID, "tag.create", domain.EntityTag, t.ID, map[string]any{"type": t.Type})
	return t, nil
}

func (s *TaxonomyService) UpdateTag(ctx context.Context, actor domain.Actor, id string, in TagPatch) (*domain.Tag, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	t, err := s.tags.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		t.Name = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil {
		if t.Slug, err = termSlug(*in.Slug, t.Name); err != nil {
			return nil, err
		}
	}
	if err := s.tags.Save(ctx, t); err != nil {
		return nil, err
	}
	s.invalidate(ctx, "tags")
	s.audit.Record(ctx, actor.ID, "tag.update", domain.EntityTag, t.ID, nil)
	return t, nil
}

func (s *TaxonomyService) DeleteTag(ctx context.Context, actor domain.Actor, id string) error {
	if err := s.tags.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, "tags")
	s.audit.Record(ctx, actor.ID, "tag.delete", domain.EntityTag, id, nil)
	return nil
}

package service

import (
	"context"
	"fmt"

	"posto-admin/internal/domain"
	"posto-admin/pkg/utils"
)

type slugChecker func(ctx context.Context, slug, exceptID string) (bool, error)

// resolveSlug 显式给出的 slug 冲突直接报 Conflict；由标题派生的 slug 自动追加序号
func resolveSlug(ctx context.Context, taken slugChecker, explicit, title, selfID string) (string, error) {
	if explicit != "" {
		slug := utils.Slugify(explicit)
		if slug == "" {
			return "", domain.FieldInvalid("slug", "Slug must contain letters or digits")
		}
		dup, err := taken(ctx, slug, selfID)
		if err != nil {
			return "", err
		}
		if dup {
			return "", domain.Conflict("Slug already in use")
		}
		return slug, nil
	}
	base := utils.Slugify(title)
	if base == "" {
		base = "item"
	}
	slug := base
	for i := 2; i <= 6; i++ {
		dup, err := taken(ctx, slug, selfID)
		if err != nil {
			return "", err
		}
		if !dup {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return base + "-" + utils.NewID()[:8], nil
}

// termRefs 校验分类、标签引用存在且类型匹配
type termRefs struct {
	categories domain.TermRepository[domain.Category]
	tags       domain.TermRepository[domain.Tag]
}

func (r termRefs) check(ctx context.Context, typ domain.TaxonomyType, categoryID *string, tagIDs []string) error {
	if categoryID != nil && *categoryID != "" {
		n, err := r.categories.CountByIDs(ctx, typ, []string{*categoryID})
		if err != nil {
			return err
		}
		if n != 1 {
			return domain.FieldInvalid("categoryId", "Category not found")
		}
	}
	ids := dedupe(tagIDs)
	if len(ids) > 0 {
		n, err := r.tags.CountByIDs(ctx, typ, ids)
		if err != nil {
			return err
		}
		if n != int64(len(ids)) {
			return domain.FieldInvalid("tagIds", "One or more tags not found")
		}
	}
	return nil
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return ids
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// optionalID "" 视为清空
func optionalID(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"posto-admin/internal/domain"
	"posto-admin/internal/repo"
	"posto-admin/pkg/utils"
)

type SeedInput struct {
	AdminName     string
	AdminEmail    string
	AdminPassword string
}

type SeedResult struct {
	AdminCreated bool
	Categories   int
	Tags         int
}

var (
	seedCategories = []string{"News", "Guides", "Announcements"}
	seedTags       = []string{"featured", "release", "community"}
)

// Seed 可重复执行：已存在的账号与分类不会重复创建，也不会被修改
func Seed(ctx context.Context, db *gorm.DB, in SeedInput, l *zap.Logger) (SeedResult, error) {
	var res SeedResult
	users := repo.NewUserRepo(db)

	if in.AdminEmail != "" {
		_, err := users.FindByEmail(ctx, in.AdminEmail)
		switch {
		case err == nil:
			l.Info("seed admin exists, skipped", zap.String("email", in.AdminEmail))
		case domain.IsKind(err, domain.KindNotFound):
			if len(in.AdminPassword) < 8 {
				return res, errors.New("seed: admin password must be at least 8 characters")
			}
			hash, err := utils.HashPassword(in.AdminPassword)
			if err != nil {
				return res, err
			}
			name := in.AdminName
			if name == "" {
				name = "Super Admin"
			}
			id := utils.NewID()
			u := domain.NewApprovedUser(id, name, in.AdminEmail, hash, domain.RoleSuperAdmin, id, time.Now().UTC())
			if err := users.Create(ctx, u); err != nil {
				return res, fmt.Errorf("seed admin: %w", err)
			}
			res.AdminCreated = true
			l.Info("seed admin created", zap.String("email", u.Email), zap.String("id", u.ID))
		default:
			return res, err
		}
	}

	categories := repo.NewCategoryRepo(db)
	tags := repo.NewTagRepo(db)
	for _, typ := range []domain.TaxonomyType{domain.TaxonomyPost, domain.TaxonomyProduct} {
		existing, err := categories.List(ctx, typ)
		if err != nil {
			return res, err
		}
		have := map[string]bool{}
		for _, c := range existing {
			have[c.Slug] = true
		}
		for _, name := range seedCategories {
			slug := utils.Slugify(name)
			if have[slug] {
				continue
			}
			if err := categories.Create(ctx, &domain.Category{ID: utils.NewID(), Name: name, Slug: slug, Type: typ}); err != nil {
				return res, fmt.Errorf("seed category %s: %w", slug, err)
			}
			res.Categories++
		}

		existingTags, err := tags.List(ctx, typ)
		if err != nil {
			return res, err
		}
		haveTag := map[string]bool{}
		for _, t := range existingTags {
			haveTag[t.Slug] = true
		}
		for _, name := range seedTags {
			slug := utils.Slugify(name)
			if haveTag[slug] {
				continue
			}
			if err := tags.Create(ctx, &domain.Tag{ID: utils.NewID(), Name: strings.ToUpper(name[:1]) + name[1:], Slug: slug, Type: typ}); err != nil {
				return res, fmt.Errorf("seed tag %s: %w", slug, err)
			}
			res.Tags++
		}
	}
	l.Info("seed done",
		zap.Bool("admin_created", res.AdminCreated),
		zap.Int("categories", res.Categories),
		zap.Int("tags", res.Tags),
	)
	return res, nil
}

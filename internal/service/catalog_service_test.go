package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"posto-admin/internal/domain"
)

func TestCategoryCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)

	c, err := f.termSvc.CreateCategory(ctx, admin, CategoryInput{Name: "Release Notes", Type: domain.TaxonomyPost})
	require.NoError(t, err)
	assert.Equal(t, "release-notes", c.Slug)

	// 同 slug 不同类型可以共存
	_, err = f.termSvc.CreateCategory(ctx, admin, CategoryInput{Name: "Release Notes", Type: domain.TaxonomyProduct})
	require.NoError(t, err)
	_, err = f.termSvc.CreateCategory(ctx, admin, CategoryInput{Name: "Release notes", Type: domain.TaxonomyPost})
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	list, err := f.termSvc.ListCategories(ctx, TermQuery{Type: domain.TaxonomyPost})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = f.termSvc.ListCategories(ctx, TermQuery{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	c, err = f.termSvc.UpdateCategory(ctx, admin, c.ID, CategoryPatch{Name: ptr("Changelog"), Slug: ptr("changelog")})
	require.NoError(t, err)
	assert.Equal(t, "changelog", c.Slug)

	require.NoError(t, f.termSvc.DeleteCategory(ctx, admin, c.ID))
	assert.True(t, domain.IsKind(f.termSvc.DeleteCategory(ctx, admin, c.ID), domain.KindNotFound))

	assert.EqualValues(t, 2, f.auditCount(t, "category.create"))
	assert.EqualValues(t, 1, f.auditCount(t, "category.update"))
	assert.EqualValues(t, 1, f.auditCount(t, "category.delete"))
}

func TestTagCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mod := f.seedUser(t, "mod@example.com", domain.RoleModerator)

	tag, err := f.termSvc.CreateTag(ctx, mod, TagInput{Name: "Golang Tips", Type: domain.TaxonomyPost})
	require.NoError(t, err)
	tag, err = f.termSvc.UpdateTag(ctx, mod, tag.ID, TagPatch{Name: ptr("Go Tips")})
	require.NoError(t, err)
	assert.Equal(t, "Go Tips", tag.Name)
	assert.Equal(t, "golang-tips", tag.Slug)

	tags, err := f.termSvc.ListTags(ctx, TermQuery{Type: domain.TaxonomyPost})
	require.NoError(t, err)
	require.Len(t, tags, 1)

	require.NoError(t, f.termSvc.DeleteTag(ctx, mod, tag.ID))
	tags, err = f.termSvc.ListTags(ctx, TermQuery{})
	require.NoError(t, err)
	assert.Empty(t, tags)

	_, err = f.termSvc.ListTags(ctx, TermQuery{Type: "page"})
	assert.True(t, domain.IsKind(err, domain.KindValidation))
}

func TestProductLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	cat, err := f.termSvc.CreateCategory(ctx, admin, CategoryInput{Name: "Gadgets", Type: domain.TaxonomyProduct})
	require.NoError(t, err)

	p, err := f.prodSvc.Create(ctx, admin, ProductInput{Title: "Widget", PriceCents: 1999, CategoryID: &cat.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ProductDraft, p.Status)
	assert.Equal(t, domain.VisibilityVisible, p.Visibility)
	assert.Equal(t, "USD", p.Currency)
	assert.Equal(t, admin.ID, p.CreatedBy)

	_, err = f.prodSvc.PublicGet(ctx, p.Slug)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))

	p, err = f.prodSvc.Update(ctx, admin, p.ID, ProductPatch{Status: ptr(domain.ProductPublished), Currency: ptr("eur")})
	require.NoError(t, err)
	assert.Equal(t, "EUR", p.Currency)

	got, err := f.prodSvc.PublicGet(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	pub, err := f.prodSvc.PublicList(ctx, PublicQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, pub.Total)

	_, err = f.prodSvc.Update(ctx, admin, p.ID, ProductPatch{Visibility: ptr(domain.VisibilityHidden)})
	require.NoError(t, err)
	pub, err = f.prodSvc.PublicList(ctx, PublicQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 0, pub.Total)

	require.NoError(t, f.prodSvc.SoftDelete(ctx, admin, p.ID))
	_, err = f.prodSvc.Get(ctx, p.ID)
	assert.True(t, domain.IsKind(err, domain.KindNotFound))
	_, err = f.prodSvc.Restore(ctx, admin, p.ID)
	require.NoError(t, err)

	// 文章分类不能用于商品
	postCat, err := f.termSvc.CreateCategory(ctx, admin, CategoryInput{Name: "News", Type: domain.TaxonomyPost})
	require.NoError(t, err)
	_, err = f.prodSvc.Create(ctx, admin, ProductInput{Title: "Gizmo", CategoryID: &postCat.ID})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	_, err = f.prodSvc.Create(ctx, admin, ProductInput{Title: "Bad price", PriceCents: -1})
	assert.True(t, domain.IsKind(err, domain.KindValidation))

	for _, action := range []string{"product.create", "product.soft_delete", "product.restore"} {
		assert.EqualValues(t, 1, f.auditCount(t, action), action)
	}
	assert.EqualValues(t, 2, f.auditCount(t, "product.update"))
}

type failingAuditRepo struct{ domain.AuditRepository }

func (failingAuditRepo) Create(context.Context, *domain.AuditLog) error { return errors.New("disk full") }

func TestAuditFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	broken := NewAuditService(failingAuditRepo{}, zap.NewNop())
	svc := NewTaxonomyService(f.termSvc.categories, f.termSvc.tags, nil, 0, broken, zap.NewNop())

	c, err := svc.CreateCategory(ctx, admin, CategoryInput{Name: "Resilient", Type: domain.TaxonomyPost})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.EqualValues(t, 0, f.totalAudits(t))
}

func TestAuditList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.seedUser(t, "admin@example.com", domain.RoleAdmin)
	mod := f.seedUser(t, "mod@example.com", domain.RoleModerator)

	_, err := f.termSvc.CreateTag(ctx, admin, TagInput{Name: "a", Type: domain.TaxonomyPost})
	require.NoError(t, err)
	_, err = f.termSvc.CreateTag(ctx, mod, TagInput{Name: "b", Type: domain.TaxonomyPost})
	require.NoError(t, err)
	_, err = f.termSvc.CreateCategory(ctx, admin, CategoryInput{Name: "cc", Type: domain.TaxonomyPost})
	require.NoError(t, err)

	res, err := f.audit.List(ctx, AuditQuery{EntityType: domain.EntityTag})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = f.audit.List(ctx, AuditQuery{ActorID: admin.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)

	res, err = f.audit.List(ctx, AuditQuery{Action: "category.create", Page: domain.Page{Limit: 1}})
	require.NoError(t, err)
	require.Len(t, res.List, 1)
	assert.Equal(t, "post", res.List[0].Meta["type"])
}

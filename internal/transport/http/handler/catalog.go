package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posto-admin/internal/domain"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

// CatalogHandler 分类、标签、商品
type CatalogHandler struct {
	terms    *service.TaxonomyService
	products *service.ProductService
}

func NewCatalogHandler(terms *service.TaxonomyService, products *service.ProductService) *CatalogHandler {
	return &CatalogHandler{terms: terms, products: products}
}

type productPage = *domain.PageResult[domain.Product]

func (h *CatalogHandler) MountAPI(api ez.EZ) {
	pub := api.Group("/public")
	ez.RegisterAction(pub, ez.Action[service.TermQuery, []domain.Category]{
		Method: http.MethodGet, Path: "/categories", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.TermQuery) ([]domain.Category, error) {
			return h.terms.ListCategories(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(pub, ez.Action[service.TermQuery, []domain.Tag]{
		Method: http.MethodGet, Path: "/tags", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.TermQuery) ([]domain.Tag, error) {
			return h.terms.ListTags(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(pub, ez.Action[service.PublicQuery, productPage]{
		Method: http.MethodGet, Path: "/products", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.PublicQuery) (productPage, error) {
			return h.products.PublicList(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(pub, ez.Action[ez.None, *domain.Product]{
		Method: http.MethodGet, Path: "/products/:slug", Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Product, error) {
			return h.products.PublicGet(c.Request.Context(), c.Param("slug"))
		},
	})
}

func (h *CatalogHandler) MountAdmin(admin ez.EZ) {
	h.mountTerms(admin)
	h.mountProducts(admin)
}

func (h *CatalogHandler) mountTerms(admin ez.EZ) {
	cat := admin.Group("/categories", mdw.RequirePermission(domain.PermCategoryManage))
	ez.RegisterAction(cat, ez.Action[service.TermQuery, []domain.Category]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.TermQuery) ([]domain.Category, error) {
			return h.terms.ListCategories(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(cat, ez.Action[service.CategoryInput, *domain.Category]{
		Method: http.MethodPost, Path: "", Binder: ez.BindJSON, Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.CategoryInput) (*domain.Category, error) {
			return h.terms.CreateCategory(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(cat, ez.Action[service.CategoryPatch, *domain.Category]{
		Method: http.MethodPatch, Path: "/:id", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.CategoryPatch) (*domain.Category, error) {
			return h.terms.UpdateCategory(c.Request.Context(), actor(c), c.Param("id"), *in)
		},
	})
	ez.RegisterAction(cat, ez.Action[ez.None, gin.H]{
		Method: http.MethodDelete, Path: "/:id", Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.None) (gin.H, error) {
			id := c.Param("id")
			return gin.H{"id": id}, h.terms.DeleteCategory(c.Request.Context(), actor(c), id)
		},
	})

	tag := admin.Group("/tags", mdw.RequirePermission(domain.PermTagManage))
	ez.RegisterAction(tag, ez.Action[service.TermQuery, []domain.Tag]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.TermQuery) ([]domain.Tag, error) {
			return h.terms.ListTags(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(tag, ez.Action[service.TagInput, *domain.Tag]{
		Method: http.MethodPost, Path: "", Binder: ez.BindJSON, Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.TagInput) (*domain.Tag, error) {
			return h.terms.CreateTag(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(tag, ez.Action[service.TagPatch, *domain.Tag]{
		Method: http.MethodPatch, Path: "/:id", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.TagPatch) (*domain.Tag, error) {
			return h.terms.UpdateTag(c.Request.Context(), actor(c), c.Param("id"), *in)
		},
	})
	ez.RegisterAction(tag, ez.Action[ez.None, gin.H]{
		Method: http.MethodDelete, Path: "/:id", Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.None) (gin.H, error) {
			id := c.Param("id")
			return gin.H{"id": id}, h.terms.DeleteTag(c.Request.Context(), actor(c), id)
		},
	})
}

func (h *CatalogHandler) mountProducts(admin ez.EZ) {
	g := admin.Group("/products")
	view := []gin.HandlerFunc{mdw.RequirePermission(domain.PermProductView)}
	manage := []gin.HandlerFunc{mdw.RequirePermission(domain.PermProductManage)}

	ez.RegisterAction(g, ez.Action[service.ProductQuery, productPage]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery, Guards: view,
		Handler: func(c *gin.Context, q *service.ProductQuery) (productPage, error) {
			return h.products.List(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Product]{
		Method: http.MethodGet, Path: "/:productId", Binder: ez.BindNone, Guards: view,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Product, error) {
			return h.products.Get(c.Request.Context(), c.Param("productId"))
		},
	})
	ez.RegisterAction(g, ez.Action[service.ProductInput, *domain.Product]{
		Method: http.MethodPost, Path: "", Binder: ez.BindJSON, Status: http.StatusCreated, Guards: manage,
		Handler: func(c *gin.Context, in *service.ProductInput) (*domain.Product, error) {
			return h.products.Create(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.ProductPatch, *domain.Product]{
		Method: http.MethodPatch, Path: "/:productId", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.ProductPatch) (*domain.Product, error) {
			return h.products.Update(c.Request.Context(), actor(c), c.Param("productId"), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, gin.H]{
		Method: http.MethodDelete, Path: "/:productId", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (gin.H, error) {
			id := c.Param("productId")
			return gin.H{"id": id}, h.products.SoftDelete(c.Request.Context(), actor(c), id)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Product]{
		Method: http.MethodPost, Path: "/:productId/restore", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Product, error) {
			return h.products.Restore(c.Request.Context(), actor(c), c.Param("productId"))
		},
	})
}

package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posto-admin/internal/domain"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

type PostHandler struct {
	svc  *service.PostService
	gate *mdw.Gate
}

func NewPostHandler(svc *service.PostService, gate *mdw.Gate) *PostHandler {
	return &PostHandler{svc: svc, gate: gate}
}

type postPage = *domain.PageResult[domain.Post]

func (h *PostHandler) MountAPI(api ez.EZ) {
	pub := api.Group("/public/posts")
	ez.RegisterAction(pub, ez.Action[service.PublicQuery, postPage]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.PublicQuery) (postPage, error) {
			return h.svc.PublicList(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(pub, ez.Action[ez.None, *domain.Post]{
		Method: http.MethodGet, Path: "/:slug", Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Post, error) {
			return h.svc.PublicGet(c.Request.Context(), c.Param("slug"))
		},
	})

	// 自助投稿：作者只能看到、修改自己的
	g := api.Group("/posts", h.gate.Authenticate())
	ez.RegisterAction(g, ez.Action[service.PostQuery, postPage]{
		Method: http.MethodGet, Path: "/mine", Binder: ez.BindQuery,
		Handler: func(c *gin.Context, q *service.PostQuery) (postPage, error) {
			return h.svc.ListMine(c.Request.Context(), actor(c), *q)
		},
	})
	ez.RegisterAction(g, ez.Action[service.SubmissionInput, *domain.Post]{
		Method: http.MethodPost, Path: "/user-submissions", Binder: ez.BindJSON, Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.SubmissionInput) (*domain.Post, error) {
			return h.svc.CreateSubmission(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Post]{
		Method: http.MethodGet, Path: "/user-submissions/:postId", Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Post, error) {
			return h.svc.GetSubmission(c.Request.Context(), actor(c), c.Param("postId"))
		},
	})
	ez.RegisterAction(g, ez.Action[service.SubmissionInput, *domain.Post]{
		Method: http.MethodPatch, Path: "/user-submissions/:postId", Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.SubmissionInput) (*domain.Post, error) {
			return h.svc.UpdateSubmission(c.Request.Context(), actor(c), c.Param("postId"), *in)
		},
	})
}

func (h *PostHandler) MountAdmin(admin ez.EZ) {
	g := admin.Group("/posts")
	view := []gin.HandlerFunc{mdw.RequirePermission(domain.PermPostView)}
	manage := []gin.HandlerFunc{mdw.RequirePermission(domain.PermPostManage)}
	approve := []gin.HandlerFunc{mdw.RequirePermission(domain.PermPostApprove)}

	ez.RegisterAction(g, ez.Action[service.PostQuery, postPage]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery, Guards: view,
		Handler: func(c *gin.Context, q *service.PostQuery) (postPage, error) {
			return h.svc.List(c.Request.Context(), actor(c), *q)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Post]{
		Method: http.MethodGet, Path: "/:postId", Binder: ez.BindNone, Guards: view,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Post, error) {
			return h.svc.Get(c.Request.Context(), c.Param("postId"))
		},
	})
	ez.RegisterAction(g, ez.Action[service.PostInput, *domain.Post]{
		Method: http.MethodPost, Path: "", Binder: ez.BindJSON, Status: http.StatusCreated, Guards: manage,
		Handler: func(c *gin.Context, in *service.PostInput) (*domain.Post, error) {
			return h.svc.Create(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.PostPatch, *domain.Post]{
		Method: http.MethodPatch, Path: "/:postId", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.PostPatch) (*domain.Post, error) {
			return h.svc.Update(c.Request.Context(), actor(c), c.Param("postId"), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Post]{
		Method: http.MethodPost, Path: "/:postId/submit", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Post, error) {
			return h.svc.SubmitForReview(c.Request.Context(), actor(c), c.Param("postId"))
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, gin.H]{
		Method: http.MethodDelete, Path: "/:postId", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (gin.H, error) {
			id := c.Param("postId")
			return gin.H{"id": id}, h.svc.SoftDelete(c.Request.Context(), actor(c), id)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Post]{
		Method: http.MethodPost, Path: "/:postId/restore", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Post, error) {
			return h.svc.Restore(c.Request.Context(), actor(c), c.Param("postId"))
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.Post]{
		Method: http.MethodPost, Path: "/:postId/approve", Binder: ez.BindNone, Guards: approve,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Post, error) {
			return h.svc.Approve(c.Request.Context(), actor(c), c.Param("postId"))
		},
	})
	ez.RegisterAction(g, ez.Action[service.RejectInput, *domain.Post]{
		Method: http.MethodPost, Path: "/:postId/reject", Binder: ez.BindJSONOptional, Guards: approve,
		Handler: func(c *gin.Context, in *service.RejectInput) (*domain.Post, error) {
			return h.svc.Reject(c.Request.Context(), actor(c), c.Param("postId"), *in)
		},
	})
}

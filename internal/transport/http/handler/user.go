package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posto-admin/internal/domain"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

type UserHandler struct {
	svc  *service.UserService
	gate *mdw.Gate
}

func NewUserHandler(svc *service.UserService, gate *mdw.Gate) *UserHandler {
	return &UserHandler{svc: svc, gate: gate}
}

func actor(c *gin.Context) domain.Actor {
	a, _ := mdw.ActorFrom(c)
	return a
}

type includeDeleted struct {
	IncludeDeleted bool `form:"includeDeleted"`
}

// MountAPI 个人资料：本人或 Admin/SuperAdmin
func (h *UserHandler) MountAPI(api ez.EZ) {
	g := api.Group("/users", h.gate.Authenticate())
	self := []gin.HandlerFunc{mdw.RequireSelfOrRole("userId", domain.RoleAdmin, domain.RoleSuperAdmin)}

	ez.RegisterAction(g, ez.Action[ez.None, *domain.User]{
		Method: http.MethodGet, Path: "/:userId", Binder: ez.BindNone, Guards: self,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.User, error) {
			return h.svc.Get(c.Request.Context(), c.Param("userId"), false)
		},
	})
	ez.RegisterAction(g, ez.Action[service.ProfileInput, *domain.User]{
		Method: http.MethodPatch, Path: "/:userId", Binder: ez.BindJSON, Guards: self,
		Handler: func(c *gin.Context, in *service.ProfileInput) (*domain.User, error) {
			return h.svc.UpdateProfile(c.Request.Context(), actor(c), c.Param("userId"), *in)
		},
	})
}

func (h *UserHandler) MountAdmin(admin ez.EZ) {
	g := admin.Group("/users")
	view := []gin.HandlerFunc{mdw.RequirePermission(domain.PermUserView)}
	manage := []gin.HandlerFunc{mdw.RequirePermission(domain.PermUserManage)}

	ez.RegisterAction(g, ez.Action[service.UserQuery, *domain.PageResult[domain.User]]{
		Method: http.MethodGet, Path: "", Binder: ez.BindQuery, Guards: view,
		Handler: func(c *gin.Context, q *service.UserQuery) (*domain.PageResult[domain.User], error) {
			return h.svc.List(c.Request.Context(), *q)
		},
	})
	ez.RegisterAction(g, ez.Action[includeDeleted, *domain.User]{
		Method: http.MethodGet, Path: "/:userId", Binder: ez.BindQuery, Guards: view,
		Handler: func(c *gin.Context, q *includeDeleted) (*domain.User, error) {
			return h.svc.Get(c.Request.Context(), c.Param("userId"), q.IncludeDeleted)
		},
	})
	ez.RegisterAction(g, ez.Action[service.CreateUserInput, *domain.User]{
		Method: http.MethodPost, Path: "", Binder: ez.BindJSON, Status: http.StatusCreated, Guards: manage,
		Handler: func(c *gin.Context, in *service.CreateUserInput) (*domain.User, error) {
			return h.svc.Create(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.BulkStatusInput, *service.BulkStatusResult]{
		Method: http.MethodPost, Path: "/bulk/status", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.BulkStatusInput) (*service.BulkStatusResult, error) {
			return h.svc.BulkStatus(c.Request.Context(), actor(c), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.UpdateUserInput, *domain.User]{
		Method: http.MethodPatch, Path: "/:userId", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.UpdateUserInput) (*domain.User, error) {
			return h.svc.Update(c.Request.Context(), actor(c), c.Param("userId"), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.StatusInput, *domain.User]{
		Method: http.MethodPatch, Path: "/:userId/status", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.StatusInput) (*domain.User, error) {
			return h.svc.SetStatus(c.Request.Context(), actor(c), c.Param("userId"), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[service.ApprovalInput, *domain.User]{
		Method: http.MethodPatch, Path: "/:userId/approval", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.ApprovalInput) (*domain.User, error) {
			return h.svc.SetApproval(c.Request.Context(), actor(c), c.Param("userId"), *in)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, gin.H]{
		Method: http.MethodDelete, Path: "/:userId", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (gin.H, error) {
			id := c.Param("userId")
			return gin.H{"id": id}, h.svc.SoftDelete(c.Request.Context(), actor(c), id)
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, *domain.User]{
		Method: http.MethodPost, Path: "/:userId/restore", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.User, error) {
			return h.svc.Restore(c.Request.Context(), actor(c), c.Param("userId"))
		},
	})
	ez.RegisterAction(g, ez.Action[ez.None, gin.H]{
		Method: http.MethodDelete, Path: "/:userId/hard", Binder: ez.BindNone,
		Guards: []gin.HandlerFunc{mdw.RequireRole(domain.RoleSuperAdmin)},
		Handler: func(c *gin.Context, _ *ez.None) (gin.H, error) {
			id := c.Param("userId")
			return gin.H{"id": id}, h.svc.HardDelete(c.Request.Context(), actor(c), id)
		},
	})
}

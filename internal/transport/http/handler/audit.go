package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posto-admin/internal/domain"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

type AuditHandler struct{ svc *service.AuditService }

func NewAuditHandler(svc *service.AuditService) *AuditHandler { return &AuditHandler{svc: svc} }

func (h *AuditHandler) MountAdmin(admin ez.EZ) {
	ez.RegisterAction(admin, ez.Action[service.AuditQuery, *domain.PageResult[domain.AuditLog]]{
		Method: http.MethodGet, Path: "/audit-logs", Binder: ez.BindQuery,
		Guards: []gin.HandlerFunc{mdw.RequirePermission(domain.PermAuditView)},
		Handler: func(c *gin.Context, q *service.AuditQuery) (*domain.PageResult[domain.AuditLog], error) {
			return h.svc.List(c.Request.Context(), *q)
		},
	})
}

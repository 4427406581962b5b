package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"posto-admin/internal/domain"
	"posto-admin/internal/service"
	"posto-admin/internal/transport/http/ez"
	mdw "posto-admin/internal/transport/http/middleware"
)

type SettingHandler struct{ svc *service.SettingService }

func NewSettingHandler(svc *service.SettingService) *SettingHandler {
	return &SettingHandler{svc: svc}
}

// MountAdmin 默认只有 SuperAdmin 持有 settings:manage
func (h *SettingHandler) MountAdmin(admin ez.EZ) {
	manage := []gin.HandlerFunc{mdw.RequirePermission(domain.PermSettingsManage)}

	ez.RegisterAction(admin, ez.Action[ez.None, *domain.Settings]{
		Method: http.MethodGet, Path: "/settings", Binder: ez.BindNone, Guards: manage,
		Handler: func(c *gin.Context, _ *ez.None) (*domain.Settings, error) {
			return h.svc.Get(c.Request.Context())
		},
	})
	ez.RegisterAction(admin, ez.Action[service.SettingsInput, *domain.Settings]{
		Method: http.MethodPut, Path: "/settings", Binder: ez.BindJSON, Guards: manage,
		Handler: func(c *gin.Context, in *service.SettingsInput) (*domain.Settings, error) {
			return h.svc.Update(c.Request.Context(), actor(c), *in)
		},
	})
}

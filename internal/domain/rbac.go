package domain

import "slices"

type Role string

const (
	RoleSuperAdmin Role = "SuperAdmin"
	RoleAdmin      Role = "Admin"
	RoleModerator  Role = "Moderator"
	RoleUser       Role = "User"
)

var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleModerator, RoleUser}

func (r Role) Valid() bool { return slices.Contains(Roles, r) }

type Permission string

const (
	PermUserView       Permission = "user:view"
	PermUserManage     Permission = "user:manage"
	PermUserAssignRole Permission = "user:assignRole"
	PermPostView       Permission = "post:view"
	PermPostManage     Permission = "post:manage"
	PermPostApprove    Permission = "post:approve"
	PermProductView    Permission = "product:view"
	PermProductManage  Permission = "product:manage"
	PermCategoryManage Permission = "category:manage"
	PermTagManage      Permission = "tag:manage"
	PermMediaManage    Permission = "media:manage" // 暂无路由使用
	PermSettingsManage Permission = "settings:manage"
	PermAuditView      Permission = "audit:view"
)

// AllPermissions 权限全集，顺序即展示顺序
var AllPermissions = []Permission{
	PermUserView, PermUserManage, PermUserAssignRole,
	PermPostView, PermPostManage, PermPostApprove,
	PermProductView, PermProductManage,
	PermCategoryManage, PermTagManage, PermMediaManage,
	PermSettingsManage, PermAuditView,
}

// 每个角色的权限逐一列出，不按层级推导
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: AllPermissions,
	RoleAdmin: {
		PermUserView, PermUserManage, PermUserAssignRole,
		PermPostView, PermPostManage, PermPostApprove,
		PermProductView, PermProductManage,
		PermCategoryManage, PermTagManage, PermMediaManage,
		PermAuditView,
	},
	RoleModerator: {
		PermUserView,
		PermPostView, PermPostManage, PermPostApprove,
		PermProductView,
		PermTagManage, PermMediaManage,
	},
	RoleUser: {},
}

// PermissionsOf 返回副本，调用方可随意修改
func PermissionsOf(r Role) []Permission {
	return slices.Clone(rolePermissions[r])
}

func (r Role) Has(p Permission) bool { return slices.Contains(rolePermissions[r], p) }

// HasAll 全部命中才返回 true
func (r Role) HasAll(ps ...Permission) bool {
	for _, p := range ps {
		if !r.Has(p) {
			return false
		}
	}
	return true
}

// Actor 当前请求的操作者
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Can(p Permission) bool { return a.Role.Has(p) }

func (a Actor) Is(roles ...Role) bool { return slices.Contains(roles, a.Role) }

// AuthorizeRoleAssignment 校验 actor 能否把 target 角色赋给某个账号。
// actor 为 nil 表示匿名（自助注册）。
func AuthorizeRoleAssignment(actor *Actor, target Role) error {
	if !target.Valid() {
		return FieldInvalid("role", "Invalid role")
	}
	if target == RoleUser {
		return nil
	}
	if actor == nil || !actor.Can(PermUserAssignRole) {
		return Forbidden("Not allowed to assign role " + string(target))
	}
	if target == RoleSuperAdmin && actor.Role != RoleSuperAdmin {
		return Forbidden("Only a SuperAdmin can grant SuperAdmin")
	}
	return nil
}

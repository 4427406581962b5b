package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRolePermissionsTable(t *testing.T) {
	assert.ElementsMatch(t, AllPermissions, PermissionsOf(RoleSuperAdmin))
	assert.Empty(t, PermissionsOf(RoleUser))

	admin := PermissionsOf(RoleAdmin)
	assert.NotContains(t, admin, PermSettingsManage)
	assert.Contains(t, admin, PermAuditView)

	mod := RoleModerator
	assert.True(t, mod.Has(PermPostApprove))
	assert.True(t, mod.Has(PermTagManage))
	assert.False(t, mod.Has(PermCategoryManage))
	assert.False(t, mod.Has(PermUserManage))
	assert.False(t, mod.Has(PermAuditView))
}

func TestPermissionsOfReturnsCopy(t *testing.T) {
	ps := PermissionsOf(RoleAdmin)
	ps[0] = "hacked"
	assert.Equal(t, PermUserView, PermissionsOf(RoleAdmin)[0])
}

func TestHasAll(t *testing.T) {
	assert.True(t, RoleAdmin.HasAll(PermPostView, PermPostManage))
	assert.False(t, RoleModerator.HasAll(PermPostView, PermUserManage))
	assert.True(t, RoleUser.HasAll())
	assert.False(t, Role("Ghost").Has(PermPostView))
}

func TestAuthorizeRoleAssignment(t *testing.T) {
	super := &Actor{ID: "s", Role: RoleSuperAdmin}
	admin := &Actor{ID: "a", Role: RoleAdmin}
	mod := &Actor{ID: "m", Role: RoleModerator}

	cases := []struct {
		name   string
		actor  *Actor
		target Role
		kind   ErrorKind
	}{
		{"anonymous user", nil, RoleUser, ""},
		{"anonymous admin", nil, RoleAdmin, KindForbidden},
		{"moderator grants moderator", mod, RoleModerator, KindForbidden},
		{"admin grants moderator", admin, RoleModerator, ""},
		{"admin grants admin", admin, RoleAdmin, ""},
		{"admin grants superadmin", admin, RoleSuperAdmin, KindForbidden},
		{"super grants superadmin", super, RoleSuperAdmin, ""},
		{"unknown role", super, Role("Root"), KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := AuthorizeRoleAssignment(tc.actor, tc.target)
			if tc.kind == "" {
				require.NoError(t, err)
				return
			}
			assert.Equal(t, tc.kind, KindOf(err))
		})
	}
}

func TestErrorKindStatus(t *testing.T) {
	assert.Equal(t, 401, KindUnauthenticated.HTTPStatus())
	assert.Equal(t, 401, KindInvalidCredentials.HTTPStatus())
	assert.Equal(t, 403, KindDisabled.HTTPStatus())
	assert.Equal(t, 409, KindConflict.HTTPStatus())
	assert.Equal(t, 422, KindValidation.HTTPStatus())
	assert.Equal(t, 400, KindInvalidToken.HTTPStatus())
	assert.Equal(t, 500, ErrorKind("OTHER").HTTPStatus())
}

func TestErrorIsMatchesKindAndMessage(t *testing.T) {
	err := error(&Error{Kind: KindForbidden, Msg: "Email not verified"})
	assert.ErrorIs(t, err, ErrEmailNotVerified)
	assert.NotErrorIs(t, err, ErrAwaitingApproval)
	assert.ErrorIs(t, err, &Error{Kind: KindForbidden})
}

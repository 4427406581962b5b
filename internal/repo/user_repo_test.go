package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posto-admin/internal/domain"
	"posto-admin/internal/repo"
	"posto-admin/internal/testkit"
	"posto-admin/pkg/utils"
)

func mkUser(t *testing.T, r *repo.UserRepo, name, email string, role domain.Role) *domain.User {
	t.Helper()
	u := domain.NewApprovedUser(utils.NewID(), name, email, "hash", role, "seed", time.Now().UTC())
	require.NoError(t, r.Create(context.Background(), u))
	return u
}

func TestUserEmailUniqueCaseInsensitive(t *testing.T) {
	r := repo.NewUserRepo(testkit.NewDB(t))
	mkUser(t, r, "Alice", "Alice@Example.com", domain.RoleUser)

	dup := domain.NewPendingUser(utils.NewID(), "Alice 2", " alice@example.com ", "hash")
	err := r.Create(context.Background(), dup)
	assert.True(t, domain.IsKind(err, domain.KindConflict))

	got, err := r.FindByEmail(context.Background(), "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", got.Email)
}

func TestUserListFilters(t *testing.T) {
	ctx := context.Background()
	r := repo.NewUserRepo(testkit.NewDB(t))
	mkUser(t, r, "Alice", "alice@example.com", domain.RoleAdmin)
	mkUser(t, r, "Bob", "bob@example.com", domain.RoleUser)
	gone := mkUser(t, r, "Carol_x", "carol@example.com", domain.RoleUser)
	gone.SoftDelete(time.Now().UTC())
	require.NoError(t, r.Save(ctx, gone))

	page := domain.Page{}.Normalize()
	list, total, err := r.List(ctx, domain.UserFilter{}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	_, total, err = r.List(ctx, domain.UserFilter{IncludeDeleted: true}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	_, total, err = r.List(ctx, domain.UserFilter{Role: domain.RoleAdmin}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	// 通配符按字面匹配
	_, total, err = r.List(ctx, domain.UserFilter{Search: "_x", IncludeDeleted: true}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	_, total, err = r.List(ctx, domain.UserFilter{Search: "%"}, page)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)

	list, _, err = r.List(ctx, domain.UserFilter{}, domain.Page{Sort: "name:asc"}.Normalize())
	require.NoError(t, err)
	assert.Equal(t, "Alice", list[0].Name)
}

func TestUserBulkAndHardDelete(t *testing.T) {
	ctx := context.Background()
	r := repo.NewUserRepo(testkit.NewDB(t))
	a := mkUser(t, r, "A", "a@example.com", domain.RoleUser)
	b := mkUser(t, r, "B", "b@example.com", domain.RoleSuperAdmin)

	n, err := r.SetStatusBulk(ctx, []string{a.ID, b.ID, "missing"}, domain.StatusInactive)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	ok, err := r.ExistsWithRole(ctx, domain.RoleSuperAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, r.HardDelete(ctx, b.ID))
	assert.True(t, domain.IsKind(r.HardDelete(ctx, b.ID), domain.KindNotFound))

	ok, err = r.ExistsWithRole(ctx, domain.RoleSuperAdmin)
	require.NoError(t, err)
	assert.False(t, ok)
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func TestLoginGateOrder(t *testing.T) {
	u := NewPendingUser("u1", "Writer", "w@example.com", "h")
	assert.ErrorIs(t, u.LoginGate(), ErrEmailNotVerified)

	u.VerifyEmail(t0)
	assert.Equal(t, StatusPending, u.Status)
	assert.ErrorIs(t, u.LoginGate(), ErrAwaitingApproval)

	u.Approve("admin", t0)
	assert.Equal(t, StatusActive, u.Status)
	assert.NoError(t, u.LoginGate())

	require.NoError(t, u.SetStatus(StatusInactive))
	assert.ErrorIs(t, u.LoginGate(), ErrAccountInactive)

	u.SoftDelete(t0)
	assert.ErrorIs(t, u.LoginGate(), ErrInvalidCredentials)
}

func TestApproveBeforeVerify(t *testing.T) {
	u := NewPendingUser("u1", "Writer", "w@example.com", "h")
	u.Approve("admin", t0)
	assert.Equal(t, StatusPending, u.Status)
	assert.Equal(t, ApprovalApproved, u.ApprovalStatus)
	require.NotNil(t, u.ApprovedBy)
	assert.Equal(t, "admin", *u.ApprovedBy)

	u.VerifyEmail(t0.Add(time.Hour))
	assert.Equal(t, StatusActive, u.Status)
}

func TestRejectAlwaysInactive(t *testing.T) {
	u := NewApprovedUser("u1", "A", "a@example.com", "h", RoleAdmin, "root", t0)
	u.Reject("root", t0)
	assert.Equal(t, StatusInactive, u.Status)
	assert.Equal(t, ApprovalRejected, u.ApprovalStatus)

	// 被拒绝后重新置为待审批，inactive 不变
	u.ResetApproval()
	assert.Equal(t, StatusInactive, u.Status)
	assert.Nil(t, u.ApprovedBy)
	assert.Nil(t, u.ApprovedAt)
}

func TestVerifyKeepsInactive(t *testing.T) {
	u := NewPendingUser("u1", "W", "w@example.com", "h")
	require.NoError(t, u.SetStatus(StatusInactive))
	u.VerifyEmail(t0)
	assert.Equal(t, StatusInactive, u.Status)
}

func TestSetApprovalAndStatusValidation(t *testing.T) {
	u := NewPendingUser("u1", "W", "w@example.com", "h")
	assert.True(t, IsKind(u.SetApproval("maybe", "x", t0), KindValidation))
	assert.True(t, IsKind(u.SetStatus("banned"), KindValidation))
}

func TestSoftDeleteRestore(t *testing.T) {
	u := NewApprovedUser("u1", "A", "a@example.com", "h", RoleUser, "root", t0)
	u.SoftDelete(t0)
	assert.False(t, u.IsUsable())
	u.Restore()
	assert.True(t, u.IsUsable())
}

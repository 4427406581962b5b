package domain

import (
	"context"
	"time"
)

type UserStatus string

const (
	StatusActive   UserStatus = "active"
	StatusInactive UserStatus = "inactive"
	StatusPending  UserStatus = "pending"
)

func (s UserStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive || s == StatusPending
}

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

type User struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Name            string         `gorm:"size:120;not null" json:"name"`
	Email           string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash    string         `gorm:"size:255;not null" json:"-"`
	Role            Role           `gorm:"size:16;not null;index" json:"role"`
	Status          UserStatus     `gorm:"size:16;not null;index" json:"status"`
	ApprovalStatus  ApprovalStatus `gorm:"size:16;not null;index" json:"approvalStatus"`
	EmailVerifiedAt *time.Time     `json:"emailVerifiedAt"`
	ApprovedBy      *string        `gorm:"size:36" json:"approvedBy"`
	ApprovedAt      *time.Time     `json:"approvedAt"`
	LastLoginAt     *time.Time     `json:"lastLoginAt"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       *time.Time     `gorm:"index" json:"deletedAt,omitempty"`
}

func (User) TableName() string { return "users" }

/*
用户生命周期：

	自助注册            -> pending / approval pending / 未验证
	VerifyEmail        -> 已验证；approval=approved 时转 active
	Approve            -> approved；已验证时转 active，否则保持 pending
	Reject             -> rejected + inactive
	ResetApproval      -> approval pending；非 inactive 时转 pending
	SoftDelete/Restore -> inactive / active
*/

// NewPendingUser 自助注册：未验证、待审批
func NewPendingUser(id, name, email, passwordHash string) *User {
	return &User{
		ID:             id,
		Name:           name,
		Email:          email,
		PasswordHash:   passwordHash,
		Role:           RoleUser,
		Status:         StatusPending,
		ApprovalStatus: ApprovalPending,
	}
}

// NewApprovedUser 由有权限的操作者直接创建，跳过验证与审批
func NewApprovedUser(id, name, email, passwordHash string, role Role, approver string, now time.Time) *User {
	return &User{
		ID:              id,
		Name:            name,
		Email:           email,
		PasswordHash:    passwordHash,
		Role:            role,
		Status:          StatusActive,
		ApprovalStatus:  ApprovalApproved,
		EmailVerifiedAt: &now,
		ApprovedBy:      &approver,
		ApprovedAt:      &now,
	}
}

func (u *User) IsDeleted() bool       { return u.DeletedAt != nil }
func (u *User) IsEmailVerified() bool { return u.EmailVerifiedAt != nil }

// IsUsable 可以持有会话：未删除且 active
func (u *User) IsUsable() bool { return !u.IsDeleted() && u.Status == StatusActive }

func (u *User) Actor() Actor { return Actor{ID: u.ID, Role: u.Role} }

// LoginGate 密码校验通过后再调用；按固定顺序给出第一条不满足的原因
func (u *User) LoginGate() error {
	switch {
	case u.IsDeleted():
		return ErrInvalidCredentials
	case !u.IsEmailVerified():
		return ErrEmailNotVerified
	case u.ApprovalStatus != ApprovalApproved:
		return ErrAwaitingApproval
	case u.Status != StatusActive:
		return ErrAccountInactive
	}
	return nil
}

// VerifyEmail 标记邮箱已验证。
// 后置：approved 的账号转 active；其余非 inactive 的账号保持 pending。
func (u *User) VerifyEmail(now time.Time) {
	u.EmailVerifiedAt = &now
	switch {
	case u.ApprovalStatus == ApprovalApproved:
		u.Status = StatusActive
	case u.Status != StatusInactive:
		u.Status = StatusPending
	}
}

// Approve 后置：approvedBy/approvedAt 记录本次审批人；已验证则 active。
func (u *User) Approve(by string, now time.Time) {
	u.ApprovalStatus = ApprovalApproved
	u.ApprovedBy = &by
	u.ApprovedAt = &now
	switch {
	case u.IsEmailVerified():
		u.Status = StatusActive
	case u.Status != StatusInactive:
		u.Status = StatusPending
	}
}

// Reject 后置：无论之前状态如何都转 inactive。
func (u *User) Reject(by string, now time.Time) {
	u.ApprovalStatus = ApprovalRejected
	u.ApprovedBy = &by
	u.ApprovedAt = &now
	u.Status = StatusInactive
}

// ResetApproval 退回待审批，清空审批人；inactive 保持不变。
func (u *User) ResetApproval() {
	u.ApprovalStatus = ApprovalPending
	u.ApprovedBy = nil
	u.ApprovedAt = nil
	if u.Status != StatusInactive {
		u.Status = StatusPending
	}
}

func (u *User) SetApproval(s ApprovalStatus, by string, now time.Time) error {
	switch s {
	case ApprovalApproved:
		u.Approve(by, now)
	case ApprovalRejected:
		u.Reject(by, now)
	case ApprovalPending:
		u.ResetApproval()
	default:
		return FieldInvalid("approvalStatus", "Invalid approval status")
	}
	return nil
}

func (u *User) SetStatus(s UserStatus) error {
	if !s.Valid() {
		return FieldInvalid("status", "Invalid status")
	}
	u.Status = s
	return nil
}

func (u *User) SoftDelete(now time.Time) {
	u.DeletedAt = &now
	u.Status = StatusInactive
}

func (u *User) Restore() {
	u.DeletedAt = nil
	u.Status = StatusActive
}

type UserFilter struct {
	Search         string
	Status         UserStatus
	Role           Role
	ApprovalStatus ApprovalStatus
	IncludeDeleted bool
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string, includeDeleted bool) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, f UserFilter, p Page) ([]User, int64, error)
	Save(ctx context.Context, u *User) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	SetStatusBulk(ctx context.Context, ids []string, s UserStatus) (int64, error)
	HardDelete(ctx context.Context, id string) error
	ExistsWithRole(ctx context.Context, roles ...Role) (bool, error)
}

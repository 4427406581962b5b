package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"posto-admin/internal/domain"
	"posto-admin/pkg/utils"
)

type UserService struct {
	users    domain.UserRepository
	sessions domain.RefreshTokenRepository
	audit    Auditor
	log      *zap.Logger
	now      func() time.Time
}

func NewUserService(users domain.UserRepository, sessions domain.RefreshTokenRepository, audit Auditor, l *zap.Logger) *UserService {
	return &UserService{users: users, sessions: sessions, audit: audit, log: l, now: utcNow}
}

type UserQuery struct {
	Search         string                `form:"search"`
	Status         domain.UserStatus     `form:"status" binding:"omitempty,oneof=active inactive pending"`
	Role           domain.Role           `form:"role" binding:"omitempty,oneof=SuperAdmin Admin Moderator User"`
	ApprovalStatus domain.ApprovalStatus `form:"approvalStatus" binding:"omitempty,oneof=pending approved rejected"`
	IncludeDeleted bool                  `form:"includeDeleted"`
	domain.Page
}

func (s *UserService) List(ctx context.Context, q UserQuery) (*domain.PageResult[domain.User], error) {
	if err := validateInput(q); err != nil {
		return nil, err
	}
	p := q.Page.Normalize()
	items, total, err := s.users.List(ctx, domain.UserFilter{
		Search:         q.Search,
		Status:         q.Status,
		Role:           q.Role,
		ApprovalStatus: q.ApprovalStatus,
		IncludeDeleted: q.IncludeDeleted,
	}, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPageResult(items, total, p), nil
}

func (s *UserService) Get(ctx context.Context, id string, includeDeleted bool) (*domain.User, error) {
	return s.users.FindByID(ctx, id, includeDeleted)
}

type CreateUserInput struct {
	Name     string      `json:"name" binding:"required,min=2,max=120"`
	Email    string      `json:"email" binding:"required,email,max=255"`
	Password string      `json:"password" binding:"required,min=8,max=255"`
	Role     domain.Role `json:"role" binding:"omitempty,oneof=SuperAdmin Admin Moderator User"`
}

// Create 代建账号：唯一跳过验证与审批的路径，需要 user:manage
func (s *UserService) Create(ctx context.Context, actor domain.Actor, in CreateUserInput) (*domain.User, error) {
	if !actor.Can(domain.PermUserManage) {
		return nil, domain.Forbidden("Insufficient permissions")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	role := roleOrDefault(in.Role)
	if err := domain.AuthorizeRoleAssignment(&actor, role); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.Conflict("Email already in use")
	} else if !domain.IsKind(err, domain.KindNotFound) {
		return nil, err
	}
	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := domain.NewApprovedUser(utils.NewID(), strings.TrimSpace(in.Name), email, hash, role, actor.ID, s.now())
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "user.create", domain.EntityUser, u.ID, map[string]any{"role": u.Role})
	return u, nil
}

type UpdateUserInput struct {
	Name  *string      `json:"name" binding:"omitempty,min=2,max=120"`
	Email *string      `json:"email" binding:"omitempty,email,max=255"`
	Role  *domain.Role `json:"role" binding:"omitempty,oneof=SuperAdmin Admin Moderator User"`
}

func (s *UserService) Update(ctx context.Context, actor domain.Actor, id string, in UpdateUserInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	// 修改 SuperAdmin 账号本身也需要 SuperAdmin
	if err := guardSuperAdmin(actor, u); err != nil {
		return nil, err
	}
	changes := map[string]any{}
	if in.Role != nil && *in.Role != u.Role {
		if err := domain.AuthorizeRoleAssignment(&actor, *in.Role); err != nil {
			return nil, err
		}
		if actor.ID == u.ID {
			return nil, domain.Forbidden("Cannot change your own role")
		}
		u.Role = *in.Role
		changes["role"] = u.Role
	}
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
		changes["name"] = u.Name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != u.Email {
			if other, err := s.users.FindByEmail(ctx, email); err == nil && other.ID != u.ID {
				return nil, domain.Conflict("Email already in use")
			} else if err != nil && !domain.IsKind(err, domain.KindNotFound) {
				return nil, err
			}
			u.Email = email
			changes["email"] = email
		}
	}
	if len(changes) == 0 {
		return u, nil
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "user.update", domain.EntityUser, u.ID, changes)
	return u, nil
}

type ProfileInput struct {
	Name string `json:"name" binding:"required,min=2,max=120"`
}

// UpdateProfile 本人或管理员修改显示名
func (s *UserService) UpdateProfile(ctx context.Context, actor domain.Actor, id string, in ProfileInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := guardSuperAdmin(actor, u); err != nil {
		return nil, err
	}
	u.Name = strings.TrimSpace(in.Name)
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "user.profile_update", domain.EntityUser, u.ID, map[string]any{"name": u.Name})
	return u, nil
}

type StatusInput struct {
	Status domain.UserStatus `json:"status" binding:"required,oneof=active inactive pending"`
}

func (s *UserService) SetStatus(ctx context.Context, actor domain.Actor, id string, in StatusInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if actor.ID == id && in.Status != domain.StatusActive {
		return nil, domain.Forbidden("Cannot deactivate your own account")
	}
	u, err := s.guardedTarget(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := u.SetStatus(in.Status); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.dropSessionsUnlessActive(ctx, u)
	s.audit.Record(ctx, actor.ID, "user.status."+string(in.Status), domain.EntityUser, u.ID, map[string]any{"status": in.Status})
	return u, nil
}

type ApprovalInput struct {
	ApprovalStatus domain.ApprovalStatus `json:"approvalStatus" binding:"required,oneof=pending approved rejected"`
	Note           string                `json:"note" binding:"max=500"`
}

func (s *UserService) SetApproval(ctx context.Context, actor domain.Actor, id string, in ApprovalInput) (*domain.User, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	// 自己不能把自己打回待审或拒绝
	if actor.ID == id && in.ApprovalStatus != domain.ApprovalApproved {
		return nil, domain.Forbidden("Cannot change your own approval")
	}
	u, err := s.guardedTarget(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := u.SetApproval(in.ApprovalStatus, actor.ID, s.now()); err != nil {
		return nil, err
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.dropSessionsUnlessActive(ctx, u)
	meta := map[string]any{}
	if in.Note != "" {
		meta["note"] = in.Note
	}
	s.audit.Record(ctx, actor.ID, "user.approval."+string(in.ApprovalStatus), domain.EntityUser, u.ID, meta)
	return u, nil
}

func (s *UserService) SoftDelete(ctx context.Context, actor domain.Actor, id string) error {
	if actor.ID == id {
		return domain.Forbidden("Cannot delete your own account")
	}
	u, err := s.guardedTarget(ctx, actor, id)
	if err != nil {
		return err
	}
	u.SoftDelete(s.now())
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}
	s.dropSessionsUnlessActive(ctx, u)
	s.audit.Record(ctx, actor.ID, "user.soft_delete", domain.EntityUser, u.ID, nil)
	return nil
}

func (s *UserService) Restore(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id, true)
	if err != nil {
		return nil, err
	}
	if err := guardSuperAdmin(actor, u); err != nil {
		return nil, err
	}
	if !u.IsDeleted() {
		return u, nil
	}
	u.Restore()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "user.restore", domain.EntityUser, u.ID, nil)
	return u, nil
}

// HardDelete 物理删除，只允许 SuperAdmin
func (s *UserService) HardDelete(ctx context.Context, actor domain.Actor, id string) error {
	if actor.Role != domain.RoleSuperAdmin {
		return domain.Forbidden("Only a SuperAdmin can permanently delete users")
	}
	if actor.ID == id {
		return domain.Forbidden("Cannot delete your own account")
	}
	if _, err := s.users.FindByID(ctx, id, true); err != nil {
		return err
	}
	if err := s.users.HardDelete(ctx, id); err != nil {
		return err
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, id, s.now()); err != nil {
		s.log.Warn("revoke sessions after hard delete failed", zap.String("user_id", id), zap.Error(err))
	}
	s.audit.Record(ctx, actor.ID, "user.hard_delete", domain.EntityUser, id, nil)
	return nil
}

type BulkStatusInput struct {
	IDs    []string          `json:"ids" binding:"required,min=1,max=100,dive,required"`
	Status domain.UserStatus `json:"status" binding:"required,oneof=active inactive pending"`
}

type BulkStatusResult struct {
	Updated int64 `json:"updated"`
}

// BulkStatus 一次请求只写一条审计
func (s *UserService) BulkStatus(ctx context.Context, actor domain.Actor, in BulkStatusInput) (*BulkStatusResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(in.IDs))
	for _, id := range in.IDs {
		if id == actor.ID {
			if in.Status != domain.StatusActive {
				return nil, domain.Forbidden("Cannot deactivate your own account")
			}
		}
		ids = append(ids, id)
	}
	if actor.Role != domain.RoleSuperAdmin {
		// 非 SuperAdmin 不能批量改 SuperAdmin
		for _, id := range ids {
			u, err := s.users.FindByID(ctx, id, false)
			if err == nil && u.Role == domain.RoleSuperAdmin {
				return nil, domain.Forbidden("Only a SuperAdmin can modify a SuperAdmin")
			}
		}
	}
	n, err := s.users.SetStatusBulk(ctx, ids, in.Status)
	if err != nil {
		return nil, err
	}
	if in.Status != domain.StatusActive {
		now := s.now()
		for _, id := range ids {
			if _, err := s.sessions.RevokeAllForUser(ctx, id, now); err != nil {
				s.log.Warn("revoke sessions failed", zap.String("user_id", id), zap.Error(err))
			}
		}
	}
	// 批量操作没有单一目标，entityId 记操作者
	s.audit.Record(ctx, actor.ID, "user.bulk_status", domain.EntityUser, actor.ID, map[string]any{"ids": ids, "status": in.Status})
	return &BulkStatusResult{Updated: n}, nil
}

// guardedTarget 载入目标用户；非 SuperAdmin 不能动 SuperAdmin
func (s *UserService) guardedTarget(ctx context.Context, actor domain.Actor, id string) (*domain.User, error) {
	u, err := s.users.FindByID(ctx, id, false)
	if err != nil {
		return nil, err
	}
	if err := guardSuperAdmin(actor, u); err != nil {
		return nil, err
	}
	return u, nil
}

func guardSuperAdmin(actor domain.Actor, u *domain.User) error {
	if u.Role == domain.RoleSuperAdmin && actor.Role != domain.RoleSuperAdmin {
		return domain.Forbidden("Only a SuperAdmin can modify a SuperAdmin")
	}
	return nil
}

// 账号不可用时吊销其所有会话，刷新不再成功
func (s *UserService) dropSessionsUnlessActive(ctx context.Context, u *domain.User) {
	if u.IsUsable() {
		return
	}
	if _, err := s.sessions.RevokeAllForUser(ctx, u.ID, s.now()); err != nil {
		s.log.Warn("revoke sessions failed", zap.String("user_id", u.ID), zap.Error(err))
	}
}

package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"posto-admin/internal/domain"
	"posto-admin/pkg/utils"
)

// Auditor 各 service 在主写入成功之后调用一次
type Auditor interface {
	Record(ctx context.Context, actorID, action, entityType, entityID string, meta map[string]any)
}

type AuditService struct {
	repo domain.AuditRepository
	log  *zap.Logger
	now  func() time.Time
}

func NewAuditService(repo domain.AuditRepository, l *zap.Logger) *AuditService {
	return &AuditService{repo: repo, log: l, now: utcNow}
}

// Record 写失败不回滚业务，也不重试：记 error 日志和指标
func (s *AuditService) Record(ctx context.Context, actorID, action, entityType, entityID string, meta map[string]any) {
	entry := &domain.AuditLog{
		ID:         utils.NewID(),
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Meta:       meta,
		CreatedAt:  s.now(),
	}
	if entry.Meta == nil {
		entry.Meta = map[string]any{}
	}
	// 请求被取消也要落审计
	if err := s.repo.Create(context.WithoutCancel(ctx), entry); err != nil {
		auditWriteFailures.Inc()
		s.log.Error("audit write failed",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
	}
}

type AuditQuery struct {
	EntityType string     `form:"entityType" json:"entityType"`
	EntityID   string     `form:"entityId" json:"entityId"`
	ActorID    string     `form:"actorId" json:"actorId"`
	Action     string     `form:"action" json:"action"`
	From       *time.Time `form:"from" json:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" json:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	domain.Page
}

func (s *AuditService) List(ctx context.Context, q AuditQuery) (*domain.PageResult[domain.AuditLog], error) {
	p := q.Page.Normalize()
	f := domain.AuditFilter{
		EntityType: q.EntityType,
		EntityID:   q.EntityID,
		ActorID:    q.ActorID,
		Action:     q.Action,
		From:       utcPtr(q.From),
		To:         utcPtr(q.To),
	}
	items, total, err := s.repo.List(ctx, f, p)
	if err != nil {
		return nil, err
	}
	return domain.NewPageResult(items, total, p), nil
}

package repo

import (
	"context"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

// AuditRepo 只有写入和查询，没有更新/删除
type AuditRepo struct{ db *gorm.DB }

func NewAuditRepo(db *gorm.DB) *AuditRepo { return &AuditRepo{db: db} }

func (r *AuditRepo) Create(ctx context.Context, l *domain.AuditLog) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *AuditRepo) List(ctx context.Context, f domain.AuditFilter, p domain.Page) ([]domain.AuditLog, int64, error) {
	q := r.db.WithContext(ctx).Model(&domain.AuditLog{})
	if f.EntityType != "" {
		q = q.Where("entity_type = ?", f.EntityType)
	}
	if f.EntityID != "" {
		q = q.Where("entity_id = ?", f.EntityID)
	}
	if f.ActorID != "" {
		q = q.Where("actor_id = ?", f.ActorID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var logs []domain.AuditLog
	// 新的在前；同一时刻按 id 稳定排序
	if err := paginate(q.Order("created_at desc").Order("id desc"), p).Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}

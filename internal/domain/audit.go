package domain

import (
	"context"
	"time"

	"gorm.io/datatypes"
)

// AuditLog 只追加，不提供更新或删除
type AuditLog struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	ActorID    string            `gorm:"size:36;index" json:"actorId"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:32;not null;index" json:"entityType"`
	EntityID   string            `gorm:"size:36;index" json:"entityId"`
	Meta       datatypes.JSONMap `json:"meta"`
	CreatedAt  time.Time         `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string { return "audit_logs" }

const (
	EntityUser     = "User"
	EntityPost     = "Post"
	EntityProduct  = "Product"
	EntityCategory = "Category"
	EntityTag      = "Tag"
)

type AuditFilter struct {
	EntityType string
	EntityID   string
	ActorID    string
	Action     string
	From       *time.Time
	To         *time.Time
}

type AuditRepository interface {
	Create(ctx context.Context, l *AuditLog) error
	List(ctx context.Context, f AuditFilter, p Page) ([]AuditLog, int64, error)
}

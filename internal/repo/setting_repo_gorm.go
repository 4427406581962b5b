package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"posto-admin/internal/domain"
)

// key 是 MySQL 保留字，列名一律走 clause 让方言加引号
type SettingRepo struct{ db *gorm.DB }

func NewSettingRepo(db *gorm.DB) *SettingRepo { return &SettingRepo{db: db} }

func (r *SettingRepo) All(ctx context.Context) ([]domain.Setting, error) {
	var rows []domain.Setting
	err := r.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error
	return rows, err
}

func (r *SettingRepo) Upsert(ctx context.Context, rows []domain.Setting) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_by", "updated_at"}),
		}).Create(&rows).Error
	})
}

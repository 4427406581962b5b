package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"posto-admin/internal/domain"
)

type SettingService struct {
	repo     domain.SettingRepository
	defaults domain.Settings
	audit    Auditor
	log      *zap.Logger
}

func NewSettingService(repo domain.SettingRepository, appName string, audit Auditor, l *zap.Logger) *SettingService {
	return &SettingService{repo: repo, defaults: domain.DefaultSettings(appName), audit: audit, log: l}
}

// Get 默认值打底，库里存过的字段覆盖
func (s *SettingService) Get(ctx context.Context) (*domain.Settings, error) {
	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}
	out := s.defaults
	if err := out.Apply(rows); err != nil {
		return nil, err
	}
	return &out, nil
}

type AppSettingsInput struct {
	Name *string `json:"name,omitempty" binding:"omitempty,min=2,max=120"`
	// 空串表示清除 logo
	Logo *string `json:"logo,omitempty" binding:"omitempty,url,max=2048"`
}

type EmailSettingsInput struct {
	WelcomeTemplate *string `json:"welcomeTemplate,omitempty" binding:"omitempty,min=3,max=5000"`
	ResetTemplate   *string `json:"resetTemplate,omitempty" binding:"omitempty,min=3,max=5000"`
}

type FeatureSettingsInput struct {
	AllowRegistration *bool `json:"allowRegistration,omitempty"`
}

// SettingsInput 局部更新，缺省的分区和字段保持原值
type SettingsInput struct {
	App      *AppSettingsInput     `json:"app,omitempty"`
	Email    *EmailSettingsInput   `json:"email,omitempty"`
	Features *FeatureSettingsInput `json:"features,omitempty"`
}

func (s *SettingService) Update(ctx context.Context, actor domain.Actor, in SettingsInput) (*domain.Settings, error) {
	if !actor.Can(domain.PermSettingsManage) {
		return nil, domain.Forbidden("Insufficient permissions")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	cur, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	sections := map[string]any{}
	if p := in.App; p != nil {
		if p.Name != nil {
			cur.App.Name = strings.TrimSpace(*p.Name)
		}
		if p.Logo != nil {
			cur.App.Logo = nil
			if *p.Logo != "" {
				cur.App.Logo = p.Logo
			}
		}
		sections[domain.SettingApp] = cur.App
	}
	if p := in.Email; p != nil {
		if p.WelcomeTemplate != nil {
			cur.Email.WelcomeTemplate = *p.WelcomeTemplate
		}
		if p.ResetTemplate != nil {
			cur.Email.ResetTemplate = *p.ResetTemplate
		}
		sections[domain.SettingEmail] = cur.Email
	}
	if p := in.Features; p != nil {
		if p.AllowRegistration != nil {
			cur.Features.AllowRegistration = *p.AllowRegistration
		}
		sections[domain.SettingFeatures] = cur.Features
	}
	if len(sections) == 0 {
		return cur, nil
	}

	rows := make([]domain.Setting, 0, len(sections))
	for key, v := range sections {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode setting %q: %w", key, err)
		}
		rows = append(rows, domain.Setting{Key: key, Value: datatypes.JSON(raw), UpdatedBy: actor.ID})
	}
	if err := s.repo.Upsert(ctx, rows); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor.ID, "settings.update", domain.EntitySetting, actor.ID, payloadMeta(in))
	s.log.Info("settings updated", zap.String("actor_id", actor.ID), zap.Int("sections", len(rows)))
	return cur, nil
}

// payloadMeta 审计里只记本次提交的字段
func payloadMeta(in any) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Setting 按分区存一行 JSON，key 为 app / email / features
type Setting struct {
	Key       string         `gorm:"primaryKey;size:32" json:"key"`
	Value     datatypes.JSON `gorm:"not null" json:"value"`
	UpdatedBy string         `gorm:"size:36" json:"updatedBy"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (Setting) TableName() string { return "settings" }

const EntitySetting = "Setting"

const (
	SettingApp      = "app"
	SettingEmail    = "email"
	SettingFeatures = "features"
)

type AppSettings struct {
	Name string  `json:"name"`
	Logo *string `json:"logo"`
}

type EmailSettings struct {
	WelcomeTemplate string `json:"welcomeTemplate"`
	ResetTemplate   string `json:"resetTemplate"`
}

type FeatureSettings struct {
	AllowRegistration bool `json:"allowRegistration"`
}

// Settings 站点级可调参数
type Settings struct {
	App      AppSettings     `json:"app"`
	Email    EmailSettings   `json:"email"`
	Features FeatureSettings `json:"features"`
}

func DefaultSettings(appName string) Settings {
	return Settings{
		App: AppSettings{Name: appName},
		Email: EmailSettings{
			WelcomeTemplate: "Welcome to {{appName}}",
			ResetTemplate:   "Reset your password using the provided link",
		},
		Features: FeatureSettings{AllowRegistration: true},
	}
}

// Apply 把库里的分区逐字段盖到当前值上；未知 key 忽略
func (s *Settings) Apply(rows []Setting) error {
	for _, r := range rows {
		var dst any
		switch r.Key {
		case SettingApp:
			dst = &s.App
		case SettingEmail:
			dst = &s.Email
		case SettingFeatures:
			dst = &s.Features
		default:
			continue
		}
		if err := json.Unmarshal(r.Value, dst); err != nil {
			return fmt.Errorf("setting %q: %w", r.Key, err)
		}
	}
	return nil
}

type SettingRepository interface {
	All(ctx context.Context) ([]Setting, error)
	// Upsert 同一事务里按 key 覆盖写
	Upsert(ctx context.Context, rows []Setting) error
}

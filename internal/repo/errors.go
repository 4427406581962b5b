package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"posto-admin/internal/domain"
)

func isDupKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// 各驱动的报错文案不同，兜底按字符串判断
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation")
}

// mapErr 把驱动错误翻译成领域错误
func mapErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(what + " not found")
	case isDupKey(err):
		return domain.Conflict(what + " already exists")
	}
	return err
}

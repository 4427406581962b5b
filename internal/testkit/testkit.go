// Package testkit 测试辅助：内存 sqlite + 全量建表
package testkit

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"posto-admin/internal/core/database"
	"posto-admin/pkg/utils"
)

var seq atomic.Int64

// NewDB 每个测试一个独立的内存库；单连接保证同一个库且写入串行
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	// 测试里 bcrypt 用最低成本
	utils.PasswordCost = 4

	dsn := fmt.Sprintf("file:posto_test_%d?mode=memory&cache=shared", seq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		TranslateError:         true,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

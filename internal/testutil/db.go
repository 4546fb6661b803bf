// Package testutil 为各包的测试提供共享的数据库与数据构造工具。
package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"parallax-gateway/internal/config"
	"parallax-gateway/internal/model"
	"parallax-gateway/internal/tier"
	"parallax-gateway/pkg/database"
	"parallax-gateway/pkg/hash"
)

// NewDB 打开一个每个测试独享的内存 sqlite 数据库并完成迁移。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1", uuid.NewString())
	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite", DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, model.AllModels()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser 直接写入一个活跃的 free 用户。
func CreateUser(t *testing.T, db *gorm.DB, email, password string) *model.User {
	t.Helper()
	h, err := hash.HashPassword(password)
	require.NoError(t, err)
	u := &model.User{Email: email, PasswordHash: h, Tier: tier.Free, IsActive: true}
	require.NoError(t, db.WithContext(context.Background()).Create(u).Error)
	return u
}

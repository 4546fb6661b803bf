// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parallax-gateway/internal/tier"
)

// User 对应于数据库中的 'users' 表。
type User struct {
	ID            string     `gorm:"type:char(36);primaryKey" json:"id"`
	Email         string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash  string     `gorm:"type:varchar(255);not null" json:"-"`
	Tier          tier.Tier  `gorm:"type:varchar(20);not null;default:free" json:"tier"`
	TierUpdatedAt *time.Time `json:"-"`
	IsActive      bool       `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// BeforeCreate 在插入前补全主键。
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		u.ID = id
	}
	return nil
}

// newID 生成按时间有序的 UUIDv7，保证同一毫秒内插入的行也能按 id 排序。
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

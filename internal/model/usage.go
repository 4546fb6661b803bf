package model

import (
	"time"

	"gorm.io/gorm"
)

// UsageRecord 记录单次上游调用消耗的 token。
type UsageRecord struct {
	ID             string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID         string    `gorm:"type:char(36);not null;index:ix_usage_user_created,priority:1" json:"user_id"`
	ConversationID string    `gorm:"type:char(36);not null;index:ix_usage_conversation" json:"conversation_id"`
	Model          string    `gorm:"type:varchar(50);not null" json:"model"` // haiku, sonnet, opus
	InputTokens    int64     `gorm:"not null" json:"input_tokens"`
	OutputTokens   int64     `gorm:"not null" json:"output_tokens"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:ix_usage_user_created,priority:2" json:"created_at"`
}

func (UsageRecord) TableName() string {
	return "usage_records"
}

func (r *UsageRecord) BeforeCreate(*gorm.DB) error {
	if r.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		r.ID = id
	}
	return nil
}

// MonthlyUsage 是按 用户/年/月/模型 聚合的用量，每个组合一行。
type MonthlyUsage struct {
	ID                string    `gorm:"type:char(36);primaryKey" json:"-"`
	UserID            string    `gorm:"type:char(36);not null;uniqueIndex:ix_monthly_usage_unique,priority:1" json:"user_id"`
	Year              int       `gorm:"not null;uniqueIndex:ix_monthly_usage_unique,priority:2;index:ix_monthly_usage_period,priority:1" json:"year"`
	Month             int       `gorm:"not null;uniqueIndex:ix_monthly_usage_unique,priority:3;index:ix_monthly_usage_period,priority:2" json:"month"`
	Model             string    `gorm:"type:varchar(50);not null;uniqueIndex:ix_monthly_usage_unique,priority:4" json:"model"`
	TotalInputTokens  int64     `gorm:"not null;default:0" json:"total_input_tokens"`
	TotalOutputTokens int64     `gorm:"not null;default:0" json:"total_output_tokens"`
	UpdatedAt         time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MonthlyUsage) TableName() string {
	return "monthly_usage"
}

func (m *MonthlyUsage) BeforeCreate(*gorm.DB) error {
	if m.ID == "" {
		id, err := newID()
		if err != nil {
			return err
		}
		m.ID = id
	}
	return nil
}

// TotalTokens 返回输入与输出 token 之和。
func (m MonthlyUsage) TotalTokens() int64 {
	return m.TotalInputTokens + m.TotalOutputTokens
}

// AllModels 返回需要 AutoMigrate 的全部模型。
func AllModels() []interface{} {
	return []interface{}{&User{}, &Conversation{}, &Message{}, &UsageRecord{}, &MonthlyUsage{}}
}

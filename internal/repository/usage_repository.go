package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parallax-gateway/internal/model"
)

// UsageRepository 定义了用量记录的追加与聚合操作。
type UsageRepository interface {
	// Record 写入一条调用记录，并把 token 数累加到对应的月度聚合行。
	Record(ctx context.Context, record *model.UsageRecord) error
	FindMonthly(ctx context.Context, userID string, year, month int) ([]model.MonthlyUsage, error)
}

type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository 创建一个新的 UsageRepository 实例。
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Record(ctx context.Context, record *model.UsageRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		at := record.CreatedAt
		monthly := &model.MonthlyUsage{
			UserID:            record.UserID,
			Year:              at.Year(),
			Month:             int(at.Month()),
			Model:             record.Model,
			TotalInputTokens:  record.InputTokens,
			TotalOutputTokens: record.OutputTokens,
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "year"}, {Name: "month"}, {Name: "model"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_input_tokens":  gorm.Expr("total_input_tokens + ?", record.InputTokens),
				"total_output_tokens": gorm.Expr("total_output_tokens + ?", record.OutputTokens),
				"updated_at":          at,
			}),
		}).Create(monthly).Error
	})
}

func (r *usageRepository) FindMonthly(ctx context.Context, userID string, year, month int) ([]model.MonthlyUsage, error) {
	var rows []model.MonthlyUsage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND year = ? AND month = ?", userID, year, month).
		Order("model ASC").
		Find(&rows).Error
	return rows, err
}

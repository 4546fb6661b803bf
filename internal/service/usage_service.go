package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/internal/tier"
	"parallax-gateway/pkg/log"
	"parallax-gateway/pkg/tasks"
)

// QuotaStatus 是某模型本月用量相对等级上限的状态。
type QuotaStatus string

const (
	QuotaAllowed  QuotaStatus = "allowed"
	QuotaExceeded QuotaStatus = "exceeded"
)

// QuotaCheck 是 CheckQuota 的结果。
type QuotaCheck struct {
	Model  string      `json:"model"`
	Used   int64       `json:"used"`
	Limit  int64       `json:"limit"`
	Status QuotaStatus `json:"status"`
}

// QuotaChecker 根据等级表判断用户是否还有额度。
// 仅用于报表，聊天流程不调用它。
type QuotaChecker interface {
	CheckQuota(ctx context.Context, user *model.User, modelAlias string) (QuotaCheck, error)
}

// ModelUsage 是月度报表中单个模型的一行。
type ModelUsage struct {
	QuotaCheck
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// UsageSummary 是用户某个月的用量报表。
type UsageSummary struct {
	Year   int          `json:"year"`
	Month  int          `json:"month"`
	Tier   tier.Tier    `json:"tier"`
	Models []ModelUsage `json:"models"`
}

// UsageService 负责记录和查询 token 用量。
type UsageService interface {
	QuotaChecker
	// Apply 落库一条用量事件。重复的 EventID 视为已处理。
	Apply(ctx context.Context, event tasks.UsageEvent) error
	MonthlySummary(ctx context.Context, user *model.User, year, month int) (*UsageSummary, error)
	CurrentSummary(ctx context.Context, user *model.User) (*UsageSummary, error)
}

// UsagePublisher 是聊天流结束后上报用量的出口：Kafka 生产者或直接写库。
type UsagePublisher interface {
	Publish(ctx context.Context, event tasks.UsageEvent) error
}

type usageService struct {
	repo repository.UsageRepository
	now  func() time.Time
}

// NewUsageService 创建一个新的 UsageService。
func NewUsageService(repo repository.UsageRepository) UsageService {
	return &usageService{repo: repo, now: time.Now}
}

func (s *usageService) Apply(ctx context.Context, event tasks.UsageEvent) error {
	record := &model.UsageRecord{
		ID:             event.EventID,
		UserID:         event.UserID,
		ConversationID: event.ConversationID,
		Model:          event.Model,
		InputTokens:    event.InputTokens,
		OutputTokens:   event.OutputTokens,
		CreatedAt:      event.OccurredAt.UTC(),
	}
	if err := s.repo.Record(ctx, record); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Infow("[UsageService] 重复的用量事件已忽略", "eventId", event.EventID)
			return nil
		}
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

func (s *usageService) MonthlySummary(ctx context.Context, user *model.User, year, month int) (*UsageSummary, error) {
	rows, err := s.repo.FindMonthly(ctx, user.ID, year, month)
	if err != nil {
		return nil, fmt.Errorf("find monthly usage: %w", err)
	}
	byModel := make(map[string]model.MonthlyUsage, len(rows))
	for _, r := range rows {
		byModel[r.Model] = r
	}

	summary := &UsageSummary{Year: year, Month: month, Tier: user.Tier}
	for _, m := range tier.Models() {
		row := byModel[m]
		summary.Models = append(summary.Models, ModelUsage{
			QuotaCheck:   quotaFor(user.Tier, m, row.TotalTokens()),
			InputTokens:  row.TotalInputTokens,
			OutputTokens: row.TotalOutputTokens,
		})
	}
	return summary, nil
}

func (s *usageService) CurrentSummary(ctx context.Context, user *model.User) (*UsageSummary, error) {
	now := s.now().UTC()
	return s.MonthlySummary(ctx, user, now.Year(), int(now.Month()))
}

func (s *usageService) CheckQuota(ctx context.Context, user *model.User, modelAlias string) (QuotaCheck, error) {
	now := s.now().UTC()
	rows, err := s.repo.FindMonthly(ctx, user.ID, now.Year(), int(now.Month()))
	if err != nil {
		return QuotaCheck{}, fmt.Errorf("find monthly usage: %w", err)
	}
	var used int64
	for _, r := range rows {
		if r.Model == modelAlias {
			used = r.TotalTokens()
		}
	}
	return quotaFor(user.Tier, modelAlias, used), nil
}

// 上限为 0 的模型对该等级不可用，视为已超额
func quotaFor(t tier.Tier, modelAlias string, used int64) QuotaCheck {
	limit := tier.ModelLimit(t, modelAlias)
	status := QuotaAllowed
	if used >= limit {
		status = QuotaExceeded
	}
	return QuotaCheck{Model: modelAlias, Used: used, Limit: limit, Status: status}
}

type directPublisher struct {
	svc UsageService
}

// NewDirectPublisher 返回一个同步写库的 UsagePublisher，未配置 Kafka 时使用。
func NewDirectPublisher(svc UsageService) UsagePublisher {
	return &directPublisher{svc: svc}
}

func (p *directPublisher) Publish(ctx context.Context, event tasks.UsageEvent) error {
	return p.svc.Apply(ctx, event)
}

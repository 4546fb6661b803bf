// Package tasks defines the structure for events that are sent to Kafka.
package tasks

import "time"

// UsageEvent 表示一次聊天流结束后上游报告的 token 消耗。
// EventID 同时作为 UsageRecord 的主键，重复投递不会重复计数。
type UsageEvent struct {
	EventID        string    `json:"event_id"`
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	Model          string    `json:"model"`
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	OccurredAt     time.Time `json:"occurred_at"`
}

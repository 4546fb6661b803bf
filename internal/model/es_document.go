package model

import "time"

// MessageDocument 定义了存储在 Elasticsearch 中的消息文档结构。
type MessageDocument struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchHit 是返回给前端的消息检索结果。
type SearchHit struct {
	MessageID      string    `json:"message_id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Score          float64   `json:"score"`
	CreatedAt      time.Time `json:"created_at"`
}

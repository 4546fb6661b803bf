package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"parallax-gateway/internal/model"
	"parallax-gateway/pkg/log"
)

// ObjectStore 是导出所需的对象存储能力（MinIO）。
type ObjectStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ExportResult 是导出后的下载地址。
type ExportResult struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService 把会话连同消息导出为 JSON 文件。
type ExportService interface {
	Export(ctx context.Context, conversationID, userID string) (*ExportResult, error)
}

type exportService struct {
	conversations ConversationService
	store         ObjectStore
	expiry        time.Duration
	now           func() time.Time
}

// NewExportService 创建导出服务。store 为 nil 时返回 ErrFeatureDisabled。
func NewExportService(conversations ConversationService, store ObjectStore, expiry time.Duration) ExportService {
	return &exportService{conversations: conversations, store: store, expiry: expiry, now: time.Now}
}

type exportDocument struct {
	ExportedAt   time.Time           `json:"exported_at"`
	Conversation *model.Conversation `json:"conversation"`
}

func (s *exportService) Export(ctx context.Context, conversationID, userID string) (*ExportResult, error) {
	// 先做归属校验，不存在或不属于当前用户的会话始终返回 404
	conv, err := s.conversations.Get(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrFeatureDisabled
	}

	now := s.now().UTC()
	data, err := json.MarshalIndent(exportDocument{ExportedAt: now, Conversation: conv}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}

	objectName := ExportObjectName(userID, conv.ID)
	if err := s.store.Put(ctx, objectName, "application/json", data); err != nil {
		return nil, fmt.Errorf("upload export: %w", err)
	}
	url, err := s.store.PresignedURL(ctx, objectName, s.expiry)
	if err != nil {
		return nil, fmt.Errorf("presign export: %w", err)
	}
	log.Infow("[ExportService] 会话已导出", "conversationId", conv.ID, "object", objectName)
	return &ExportResult{URL: url, ExpiresAt: now.Add(s.expiry)}, nil
}

// ExportObjectName 返回会话导出文件在存储桶中的路径。
func ExportObjectName(userID, conversationID string) string {
	return fmt.Sprintf("exports/%s/%s.json", userID, conversationID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"parallax-gateway/internal/model"
	"parallax-gateway/internal/repository"
	"parallax-gateway/pkg/log"
)

// ConversationPatch 描述会话的部分更新，nil 字段保持不变。
type ConversationPatch struct {
	Title *string
	Mode  *string
}

// ConversationService 定义了对话业务逻辑的接口。
// 所有按 id 操作的方法都做归属校验，不存在与不属于当前用户都返回 ErrNotFound。
type ConversationService interface {
	Create(ctx context.Context, userID, title, mode string) (*model.Conversation, error)
	List(ctx context.Context, userID string) ([]model.Conversation, error)
	Get(ctx context.Context, id, userID string) (*model.Conversation, error)
	Update(ctx context.Context, id, userID string, patch ConversationPatch) (*model.Conversation, error)
	UpdateMode(ctx context.Context, id, userID, mode string) (*model.Conversation, error)
	Delete(ctx context.Context, id, userID string) error
	AddMessage(ctx context.Context, id, userID, role, content string, mode *string) (*model.Message, error)
	// History 返回会话的全部消息（按创建时间升序）。
	History(ctx context.Context, id, userID string) ([]model.Message, error)
}

// MessageIndexer 把消息同步到检索索引。索引失败不影响主流程。
type MessageIndexer interface {
	IndexMessage(ctx context.Context, userID string, msg *model.Message) error
	DeleteConversation(ctx context.Context, conversationID string) error
}

type conversationService struct {
	repo    repository.ConversationRepository
	indexer MessageIndexer
}

// NewConversationService 创建一个新的 ConversationService。indexer 可以为 nil。
func NewConversationService(repo repository.ConversationRepository, indexer MessageIndexer) ConversationService {
	return &conversationService{repo: repo, indexer: indexer}
}

// Create 为用户创建新会话，标题与模式为空时使用默认值。
func (s *conversationService) Create(ctx context.Context, userID, title, mode string) (*model.Conversation, error) {
	if strings.TrimSpace(title) == "" {
		title = model.DefaultConversationTitle
	}
	if mode == "" {
		mode = model.DefaultMode
	}
	conv := &model.Conversation{UserID: userID, Title: title, CurrentMode: mode}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conv, nil
}

// List 返回用户的全部会话，最近更新的在前。
func (s *conversationService) List(ctx context.Context, userID string) ([]model.Conversation, error) {
	convs, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return convs, nil
}

// Get 返回会话及其按时间升序排列的消息。
func (s *conversationService) Get(ctx context.Context, id, userID string) (*model.Conversation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	conv, err := s.repo.FindOwnedWithMessages(ctx, id, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return conv, nil
}

// Update 按 patch 更新标题和/或模式，并刷新 updated_at。
func (s *conversationService) Update(ctx context.Context, id, userID string, patch ConversationPatch) (*model.Conversation, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	fields := make(map[string]interface{}, 2)
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Mode != nil {
		fields["current_mode"] = *patch.Mode
	}
	conv, err := s.repo.UpdateOwned(ctx, id, userID, fields)
	if err != nil {
		return nil, notFound(err)
	}
	return conv, nil
}

// UpdateMode 只修改会话的当前模式。
func (s *conversationService) UpdateMode(ctx context.Context, id, userID, mode string) (*model.Conversation, error) {
	return s.Update(ctx, id, userID, ConversationPatch{Mode: &mode})
}

// Delete 删除会话及其全部消息。重复删除返回 ErrNotFound。
func (s *conversationService) Delete(ctx context.Context, id, userID string) error {
	if !validID(id) {
		return ErrNotFound
	}
	if err := s.repo.DeleteOwned(ctx, id, userID); err != nil {
		return notFound(err)
	}
	if s.indexer != nil {
		if err := s.indexer.DeleteConversation(ctx, id); err != nil {
			log.Warnf("[ConversationService] 删除会话索引失败, conversationId: %s, error: %v", id, err)
		}
	}
	return nil
}

// AddMessage 向会话追加一条消息，并刷新会话的 updated_at。
func (s *conversationService) AddMessage(ctx context.Context, id, userID, role, content string, mode *string) (*model.Message, error) {
	if role != model.RoleUser && role != model.RoleAssistant {
		return nil, ErrInvalidRole
	}
	if !validID(id) {
		return nil, ErrNotFound
	}
	msg := &model.Message{Role: role, Content: content, Mode: mode}
	if err := s.repo.AddMessageOwned(ctx, id, userID, msg); err != nil {
		return nil, notFound(err)
	}
	if s.indexer != nil {
		if err := s.indexer.IndexMessage(ctx, userID, msg); err != nil {
			log.Warnf("[ConversationService] 消息索引失败, messageId: %s, error: %v", msg.ID, err)
		}
	}
	return msg, nil
}

func (s *conversationService) History(ctx context.Context, id, userID string) ([]model.Message, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	if _, err := s.repo.FindOwned(ctx, id, userID); err != nil {
		return nil, notFound(err)
	}
	msgs, err := s.repo.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// 格式错误的 id 不可能存在，直接按未找到处理
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

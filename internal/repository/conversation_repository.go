package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"parallax-gateway/internal/model"
)

// ConversationRepository 定义了会话与消息的持久化操作。
//
// 所有带 Owned 后缀的方法都以 (id, userID) 作为归属条件；行不存在或属于其他用户时
// 统一返回 gorm.ErrRecordNotFound。写操作在同一事务中先做归属查询，失败时不会写入任何数据。
type ConversationRepository interface {
	Create(ctx context.Context, conv *model.Conversation) error
	ListByUser(ctx context.Context, userID string) ([]model.Conversation, error)
	FindOwned(ctx context.Context, id, userID string) (*model.Conversation, error)
	FindOwnedWithMessages(ctx context.Context, id, userID string) (*model.Conversation, error)
	UpdateOwned(ctx context.Context, id, userID string, fields map[string]interface{}) (*model.Conversation, error)
	DeleteOwned(ctx context.Context, id, userID string) error
	AddMessageOwned(ctx context.Context, id, userID string, msg *model.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

type gormConversationRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db, now: time.Now}
}

func (r *gormConversationRepository) Create(ctx context.Context, conv *model.Conversation) error {
	return r.db.WithContext(ctx).Create(conv).Error
}

// ListByUser 按最近更新时间倒序返回用户的全部会话。
func (r *gormConversationRepository) ListByUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	var convs []model.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").Order("id DESC").
		Find(&convs).Error
	return convs, err
}

func (r *gormConversationRepository) FindOwned(ctx context.Context, id, userID string) (*model.Conversation, error) {
	return findOwned(r.db.WithContext(ctx), id, userID)
}

// FindOwnedWithMessages 查询会话并按创建时间升序预加载消息。
func (r *gormConversationRepository) FindOwnedWithMessages(ctx context.Context, id, userID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.db.WithContext(ctx).
		Preload("Messages", orderMessages).
		Where("id = ? AND user_id = ?", id, userID).
		First(&conv).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// UpdateOwned 更新给定字段并刷新 updated_at。
func (r *gormConversationRepository) UpdateOwned(ctx context.Context, id, userID string, fields map[string]interface{}) (*model.Conversation, error) {
	var updated *model.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := findOwned(tx, id, userID)
		if err != nil {
			return err
		}
		values := make(map[string]interface{}, len(fields)+1)
		for k, v := range fields {
			values[k] = v
		}
		values["updated_at"] = r.now()
		if err := tx.Model(conv).Updates(values).Error; err != nil {
			return err
		}
		updated, err = findOwned(tx, id, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteOwned 删除会话及其全部消息。
func (r *gormConversationRepository) DeleteOwned(ctx context.Context, id, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findOwned(tx, id, userID); err != nil {
			return err
		}
		// 外键已声明 ON DELETE CASCADE；显式删除保证 sqlite 未开启外键时也一致
		if err := tx.Where("conversation_id = ?", id).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Conversation{}).Error
	})
}

// AddMessageOwned 追加一条消息，并在同一事务中刷新父会话的 updated_at。
func (r *gormConversationRepository) AddMessageOwned(ctx context.Context, id, userID string, msg *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := findOwned(tx, id, userID)
		if err != nil {
			return err
		}
		msg.ConversationID = conv.ID
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(conv).UpdateColumn("updated_at", r.now()).Error
	})
}

// ListMessages 按创建时间升序返回会话的全部消息。
func (r *gormConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	err := orderMessages(r.db.WithContext(ctx)).
		Where("conversation_id = ?", conversationID).
		Find(&msgs).Error
	return msgs, err
}

func findOwned(db *gorm.DB, id, userID string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := db.Where("id = ? AND user_id = ?", id, userID).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// id 为 UUIDv7，同一时间戳内仍按插入顺序排列
func orderMessages(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

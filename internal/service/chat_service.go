package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"parallax-gateway/internal/config"
	"parallax-gateway/internal/model"
	"parallax-gateway/pkg/llm"
	"parallax-gateway/pkg/lock"
	"parallax-gateway/pkg/log"
	"parallax-gateway/pkg/metrics"
	"parallax-gateway/pkg/tasks"
)

// 会话锁的有效期。聊天流进行中每 1/3 周期续期一次，进程崩溃后锁在此之后自动失效
const relayLockTTL = time.Minute

// ChatRequest 是一次聊天请求。Mode 与 Model 为空时使用配置的默认值。
type ChatRequest struct {
	ConversationID string `json:"conversation_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
	Mode           string `json:"mode"`
	Model          string `json:"model"`
}

// StreamEvent 是发给客户端的一帧，三个字段同一时刻只有一个有值。
type StreamEvent struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StreamSink 接收聊天流事件，由 SSE 或 WebSocket handler 实现。
type StreamSink interface {
	Send(event StreamEvent) error
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	// Start 完成流开始前的全部校验与准备：归属校验、会话加锁、保存用户消息、加载历史。
	// 返回错误时不会向客户端写入任何流数据。
	Start(ctx context.Context, userID string, req ChatRequest) (*RelaySession, error)
}

type chatService struct {
	conversations ConversationService
	llmClient     llm.Client
	locker        lock.Locker
	usage         UsagePublisher
	cfg           config.LLMConfig
	lockTTL       time.Duration
	now           func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(conversations ConversationService, llmClient llm.Client, locker lock.Locker, usage UsagePublisher, cfg config.LLMConfig) ChatService {
	return &chatService{
		conversations: conversations,
		llmClient:     llmClient,
		locker:        locker,
		usage:         usage,
		cfg:           cfg,
		lockTTL:       relayLockTTL,
		now:           time.Now,
	}
}

// RelaySession 是一个已准备好、尚未开始的聊天流。
type RelaySession struct {
	svc            *chatService
	userID         string
	conversationID string
	mode           string
	modelAlias     string
	request        llm.Request
	lease          lock.Lease
}

func (s *chatService) Start(ctx context.Context, userID string, req ChatRequest) (*RelaySession, error) {
	// 1. 归属校验
	conv, err := s.conversations.Get(ctx, req.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	// 2. 同一会话同时只允许一个聊天流
	lease, ok, err := s.locker.TryLock(ctx, "chat:conversation:"+conv.ID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire conversation lock: %w", err)
	}
	if !ok {
		return nil, ErrConversationBusy
	}

	session, err := s.prepare(ctx, userID, conv.ID, req)
	if err != nil {
		lease.Release()
		return nil, err
	}
	session.lease = lease
	return session, nil
}

func (s *chatService) prepare(ctx context.Context, userID, conversationID string, req ChatRequest) (*RelaySession, error) {
	mode, system := s.resolveMode(req.Mode)
	alias, upstreamModel := s.resolveModel(req.Model)

	// 3. 先保存用户消息，上游失败时它也保留
	if _, err := s.conversations.AddMessage(ctx, conversationID, userID, model.RoleUser, req.Message, &mode); err != nil {
		return nil, err
	}

	// 4. 重新加载历史（已包含刚写入的用户消息）
	history, err := s.conversations.History(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	messages := make([]llm.Message, 0, len(history))
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	return &RelaySession{
		svc:            s,
		userID:         userID,
		conversationID: conversationID,
		mode:           mode,
		modelAlias:     alias,
		request: llm.Request{
			Model:     upstreamModel,
			System:    system,
			Messages:  messages,
			MaxTokens: s.cfg.MaxTokens,
		},
	}, nil
}

// resolveMode 返回实际使用的模式及其 system prompt，未知模式回退到默认模式。
func (s *chatService) resolveMode(mode string) (string, string) {
	if mode == "" {
		mode = s.cfg.DefaultMode
	}
	if prompt, ok := s.cfg.Modes[mode]; ok {
		return mode, prompt
	}
	return mode, s.cfg.Modes[s.cfg.DefaultMode]
}

// resolveModel 把模型别名映射为上游模型 ID，未知别名回退到默认模型。
func (s *chatService) resolveModel(alias string) (string, string) {
	if id, ok := s.cfg.Models[alias]; ok {
		return alias, id
	}
	return s.cfg.DefaultModel, s.cfg.Models[s.cfg.DefaultModel]
}

// ConversationID 返回该聊天流所属的会话。
func (r *RelaySession) ConversationID() string { return r.conversationID }

// Run 把上游增量逐段转发给 sink。运行期间持续续期会话锁，结束后释放。
// 成功时先保存完整的助手消息再发送 done；任何失败只发送 error 事件，不保存部分回答。
// ctx 取消（客户端断开）会中止上游请求，按失败处理。
func (r *RelaySession) Run(ctx context.Context, sink StreamSink) error {
	stopKeepAlive := r.keepAlive(ctx)
	defer func() {
		stopKeepAlive()
		r.lease.Release()
	}()
	finish := metrics.RelayStarted(r.modelAlias)

	var answer strings.Builder
	usage, err := r.svc.llmClient.StreamMessages(ctx, r.request, func(text string) error {
		answer.WriteString(text)
		return sink.Send(StreamEvent{Content: text})
	})
	if err != nil {
		outcome := "upstream_error"
		if ctx.Err() != nil {
			outcome = "canceled"
		}
		finish(outcome)
		log.Warnw("[ChatService] 聊天流中断", "conversationId", r.conversationID, "outcome", outcome, "error", err)
		_ = sink.Send(StreamEvent{Error: err.Error()})
		return err
	}

	// 上游已完整返回，即使客户端此刻断开也要保存回答
	persistCtx := context.WithoutCancel(ctx)
	mode := r.mode
	if _, err := r.svc.conversations.AddMessage(persistCtx, r.conversationID, r.userID, model.RoleAssistant, answer.String(), &mode); err != nil {
		finish("persist_error")
		log.Errorf("[ChatService] 保存助手消息失败, conversationId: %s, error: %v", r.conversationID, err)
		_ = sink.Send(StreamEvent{Error: "failed to save response"})
		return fmt.Errorf("save assistant message: %w", err)
	}

	sendErr := sink.Send(StreamEvent{Done: true})
	finish("ok")
	metrics.RecordTokens(r.modelAlias, usage.InputTokens, usage.OutputTokens)
	r.publishUsage(persistCtx, usage)
	return sendErr
}

// keepAlive 在聊天流期间定期续期会话锁，返回的函数停止续期并等待后台 goroutine 退出。
func (r *RelaySession) keepAlive(ctx context.Context) func() {
	ttl := r.svc.lockTTL
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				err := r.lease.Refresh(rctx, ttl)
				cancel()
				if err != nil {
					log.Warnf("[ChatService] 会话锁续期失败, conversationId: %s, error: %v", r.conversationID, err)
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

// 用量上报失败只记录日志，不影响已完成的回答
func (r *RelaySession) publishUsage(ctx context.Context, usage llm.Usage) {
	if r.svc.usage == nil {
		return
	}
	id, err := uuid.NewV7()
	if err != nil {
		log.Error("[ChatService] 生成用量事件 ID 失败", err)
		return
	}
	event := tasks.UsageEvent{
		EventID:        id.String(),
		UserID:         r.userID,
		ConversationID: r.conversationID,
		Model:          r.modelAlias,
		InputTokens:    usage.InputTokens,
		OutputTokens:   usage.OutputTokens,
		OccurredAt:     r.svc.now().UTC(),
	}
	if err := r.svc.usage.Publish(ctx, event); err != nil {
		log.Errorf("[ChatService] 上报用量失败, conversationId: %s, error: %v", r.conversationID, err)
	}
}

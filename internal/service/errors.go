// Package service 包含了应用的业务逻辑层。
package service

import (
	"errors"

	"parallax-gateway/pkg/token"
)

// 业务错误。handler 层通过 errors.Is 映射为 HTTP 状态码。
var (
	// ErrNotFound 表示资源不存在或不属于当前用户，两种情况不做区分。
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken 表示注册邮箱已被占用。
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials 表示登录凭证或 token 无效。
	ErrInvalidCredentials = token.ErrInvalidCredentials
	// ErrInactiveUser 表示账号已停用。
	ErrInactiveUser = errors.New("inactive user")
	// ErrInvalidRole 表示消息角色不是 user 或 assistant。
	ErrInvalidRole = errors.New("role must be 'user' or 'assistant'")
	// ErrConversationBusy 表示同一会话已有进行中的聊天流。
	ErrConversationBusy = errors.New("conversation has a chat stream in progress")
	// ErrFeatureDisabled 表示依赖的可选组件未配置。
	ErrFeatureDisabled = errors.New("feature not configured")
)

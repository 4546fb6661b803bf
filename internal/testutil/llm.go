package testutil

import (
	"context"
	"sync"
	"time"

	"parallax-gateway/internal/config"
	"parallax-gateway/pkg/llm"
)

// FakeLLM 按预设分块回放一次上游响应。FailAfter > 0 时在发出这么多分块后返回 Err。
// Delay 为每个分块之前的等待时间。
type FakeLLM struct {
	Chunks    []string
	Usage     llm.Usage
	Err       error
	FailAfter int
	Delay     time.Duration

	mu       sync.Mutex
	Requests []llm.Request
}

func (f *FakeLLM) StreamMessages(ctx context.Context, req llm.Request, onDelta func(string) error) (llm.Usage, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	f.mu.Unlock()

	for i, c := range f.Chunks {
		if f.Err != nil && f.FailAfter > 0 && i == f.FailAfter {
			return llm.Usage{}, f.Err
		}
		if f.Delay > 0 {
			select {
			case <-ctx.Done():
				return llm.Usage{}, ctx.Err()
			case <-time.After(f.Delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return llm.Usage{}, err
		}
		if err := onDelta(c); err != nil {
			return llm.Usage{}, err
		}
	}
	if f.Err != nil {
		return llm.Usage{}, f.Err
	}
	return f.Usage, nil
}

// LastRequest 返回最近一次收到的请求。
func (f *FakeLLM) LastRequest() llm.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Requests[len(f.Requests)-1]
}

// LLMConfig 返回与默认配置一致的模型与模式映射。
func LLMConfig() config.LLMConfig {
	return config.LLMConfig{
		MaxTokens:    4096,
		DefaultModel: "haiku",
		DefaultMode:  "balanced",
		Models: map[string]string{
			"haiku":  "claude-3-5-haiku-20241022",
			"sonnet": "claude-3-5-sonnet-20241022",
			"opus":   "claude-opus-4-20250514",
		},
		Modes: map[string]string{
			"balanced": "You are a helpful AI assistant. Provide clear, accurate, and balanced responses.",
		},
	}
}

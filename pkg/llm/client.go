// Package llm provides a streaming client for the Anthropic Messages API.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"parallax-gateway/internal/config"
)

// ErrUpstream 表示上游返回了非 200 状态或流内错误事件。
var ErrUpstream = errors.New("upstream error")

// Client defines the interface for an LLM client.
type Client interface {
	// StreamMessages 以流式方式调用上游，每收到一段文本增量就调用一次 onDelta。
	// onDelta 返回错误时中止读取并原样返回该错误。
	StreamMessages(ctx context.Context, req Request, onDelta func(text string) error) (Usage, error)
}

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request 是一次补全请求。Model 为上游模型 ID。
type Request struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Usage 是上游报告的 token 消耗。
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

type anthropicClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new Anthropic client from the config.
func NewClient(cfg config.LLMConfig) Client {
	return NewClientWithHTTP(cfg, &http.Client{})
}

// NewClientWithHTTP 允许注入自定义的 http.Client。
func NewClientWithHTTP(cfg config.LLMConfig, hc *http.Client) Client {
	return &anthropicClient{cfg: cfg, client: hc}
}

func (c *anthropicClient) StreamMessages(ctx context.Context, r Request, onDelta func(string) error) (Usage, error) {
	var usage Usage

	maxTokens := r.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.cfg.MaxTokens
	}
	reqBytes, err := json.Marshal(messagesRequest{
		Model:     r.Model,
		System:    r.System,
		Messages:  r.Messages,
		MaxTokens: maxTokens,
		Stream:    true,
	})
	if err != nil {
		return usage, fmt.Errorf("failed to marshal messages request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/messages"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBytes))
	if err != nil {
		return usage, fmt.Errorf("failed to create messages request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", c.cfg.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return usage, fmt.Errorf("failed to call messages api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return usage, fmt.Errorf("%w: status %s, body: %s", ErrUpstream, resp.Status, strings.TrimSpace(string(bodyBytes)))
	}

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			if errors.Is(err, io.EOF) {
				return usage, fmt.Errorf("%w: stream ended before message_stop", ErrUpstream)
			}
			return usage, fmt.Errorf("failed to read from stream: %w", err)
		}

		// event: 行与空行忽略，事件类型以 data 中的 type 字段为准
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || !gjson.Valid(data) {
			continue
		}

		event := gjson.Parse(data)
		switch event.Get("type").String() {
		case "message_start":
			usage.InputTokens = event.Get("message.usage.input_tokens").Int()
			if out := event.Get("message.usage.output_tokens"); out.Exists() {
				usage.OutputTokens = out.Int()
			}
		case "content_block_delta":
			if event.Get("delta.type").String() != "text_delta" {
				continue
			}
			text := event.Get("delta.text").String()
			if text == "" {
				continue
			}
			if err := onDelta(text); err != nil {
				return usage, err
			}
		case "message_delta":
			if out := event.Get("usage.output_tokens"); out.Exists() {
				usage.OutputTokens = out.Int()
			}
		case "message_stop":
			return usage, nil
		case "error":
			return usage, fmt.Errorf("%w: %s: %s", ErrUpstream,
				event.Get("error.type").String(), event.Get("error.message").String())
		}
	}
}

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"survey_analytics_backend/internal/config"
	"survey_analytics_backend/internal/util"
	"survey_analytics_backend/pkg/logger"
	"survey_analytics_backend/pkg/monitoring"
)

// LLMClient 上层服务只依赖补全能力，便于测试时替换
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (content, provider string, err error)
	CompleteWith(ctx context.Context, preferred, systemPrompt, userPrompt string) (content, provider string, err error)
	Chat(ctx context.Context, preferred string, messages []ChatMessage) (content, provider string, err error)
}

// LLMService 按配置顺序逐个尝试 OpenAI 兼容接口的大模型服务商，
// 单个服务商超时或报错都视为失败，换下一家；全部失败返回 ErrAllProvidersFailed
type LLMService struct {
	providers []config.AIProviderConfig
	timeout   time.Duration
	client    *http.Client
}

func NewLLMService(cfg config.AIConfig) *LLMService {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &LLMService{
		providers: cfg.Providers,
		timeout:   timeout,
		client:    &http.Client{Timeout: timeout},
	}
}

// ChatMessage OpenAI 兼容接口的消息结构，多轮对话的历史也用它传递
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete 按配置顺序尝试所有服务商
func (s *LLMService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, string, error) {
	return s.completeChain(ctx, s.providers, promptMessages(systemPrompt, userPrompt))
}

// CompleteWith 指定优先服务商，其余仍按配置顺序兜底
func (s *LLMService) CompleteWith(ctx context.Context, preferred, systemPrompt, userPrompt string) (string, string, error) {
	return s.completeChain(ctx, s.orderedProviders(preferred), promptMessages(systemPrompt, userPrompt))
}

// Chat 发送完整的多轮消息列表，preferred 为空时按配置顺序
func (s *LLMService) Chat(ctx context.Context, preferred string, messages []ChatMessage) (string, string, error) {
	providers := s.providers
	if preferred != "" {
		providers = s.orderedProviders(preferred)
	}
	return s.completeChain(ctx, providers, messages)
}

func promptMessages(systemPrompt, userPrompt string) []ChatMessage {
	return []ChatMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt},
	}
}

func (s *LLMService) orderedProviders(preferred string) []config.AIProviderConfig {
	ordered := make([]config.AIProviderConfig, 0, len(s.providers))
	for _, p := range s.providers {
		if strings.EqualFold(p.Name, preferred) {
			ordered = append(ordered, p)
		}
	}
	for _, p := range s.providers {
		if !strings.EqualFold(p.Name, preferred) {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (s *LLMService) completeChain(ctx context.Context, providers []config.AIProviderConfig, messages []ChatMessage) (string, string, error) {
	for _, p := range providers {
		if p.APIKey == "" {
			continue
		}
		content, err := s.callProvider(ctx, p, messages)
		if err != nil {
			monitoring.AIProviderCalls.WithLabelValues(p.Name, "failure").Inc()
			logger.Log.Warn("AI provider call failed",
				zap.String("provider", p.Name),
				zap.Error(err))
			continue
		}
		monitoring.AIProviderCalls.WithLabelValues(p.Name, "success").Inc()
		return content, p.Name, nil
	}
	return "", "", util.ErrAllProvidersFailed
}

func (s *LLMService) callProvider(ctx context.Context, p config.AIProviderConfig, messages []ChatMessage) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model:       p.Model,
		Messages:    messages,
		Temperature: 0.3,
	})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(p.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("provider %s returned status %d: %s", p.Name, resp.StatusCode, truncate(string(data), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("provider %s error: %s", p.Name, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("provider %s returned empty completion", p.Name)
	}
	return parsed.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// StripCodeFence 去掉模型喜欢包在 JSON 外面的 markdown 代码块标记
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

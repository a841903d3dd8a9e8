package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/filmfinder/internal/config"
)

// systemMessage 固定的系统指令，要求模型返回符合约定结构的 JSON
const systemMessage = "You are a movie recommendation assistant. Always respond with valid JSON arrays containing movie objects. " +
	"Each movie object must have the following fields: title (string), year (number), description (string), " +
	"genres (array of strings), actors (array of strings), and director (string). " +
	"Never include any additional text or explanations outside the JSON array. " +
	"If the user provides multiple preferences, give priority to the most specific ones (e.g., specific actors and directors). " +
	"Avoid suggesting movies that are difficult to match with the provided criteria."

// maxMessageLength 单条消息内容长度上限
const maxMessageLength = 4096

// ChatMessage 聊天消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat 约束模型输出的 JSON Schema 声明
type ResponseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *JSONSchema `json:"json_schema,omitempty"`
}

// JSONSchema 命名的 schema 定义
type JSONSchema struct {
	Name   string                 `json:"name"`
	Schema map[string]interface{} `json:"schema"`
}

// ModelParameters 模型采样参数
type ModelParameters struct {
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatRequest 聊天补全请求体
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []ChatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	TopP           float64         `json:"top_p"`
	MaxTokens      int             `json:"max_tokens"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
}

// ChatChoice 单条候选回复
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatUsage token 用量统计
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse 聊天补全响应体
type ChatResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Created int64        `json:"created"`
	Object  string       `json:"object"`
	Choices []ChatChoice `json:"choices"`
	Usage   ChatUsage    `json:"usage"`
}

// moviesSchema 推荐影片列表的 JSON Schema
func moviesSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"movies": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type":     "object",
					"required": []string{"title", "year", "description", "genres", "actors", "director"},
					"properties": map[string]interface{}{
						"title":       map[string]interface{}{"type": "string"},
						"year":        map[string]interface{}{"type": "number"},
						"description": map[string]interface{}{"type": "string"},
						"genres":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"actors":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
						"director":    map[string]interface{}{"type": "string"},
					},
				},
			},
		},
		"required": []string{"movies"},
	}
}

// OpenRouterService OpenRouter 聊天补全客户端
// 进程内只构造一次，配置构造后不可变
type OpenRouterService struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	model      string
	timeout    time.Duration

	maxAttempts   int
	initialDelay  time.Duration
	maxDelay      time.Duration
	backoffFactor float64

	params ModelParameters
}

// NewOpenRouterService 创建客户端，API Key 缺失时直接失败
func NewOpenRouterService(cfg config.OpenRouterConfig) (*OpenRouterService, error) {
	if cfg.APIKey == "" {
		return nil, &OpenRouterError{
			Message: "OpenRouter API key is not configured",
			Code:    ErrCodeMissingAPIKey,
		}
	}

	// 重试策略非法会让重试循环一次都不执行，必须在构造期拦下
	if err := validateRetryPolicy(cfg); err != nil {
		return nil, &OpenRouterError{
			Message: "Invalid retry policy",
			Code:    ErrCodeInvalidModelParams,
			Cause:   err,
		}
	}

	s := &OpenRouterService{
		httpClient:    &http.Client{},
		endpoint:      cfg.Endpoint,
		apiKey:        cfg.APIKey,
		model:         cfg.Model,
		timeout:       cfg.Timeout,
		maxAttempts:   cfg.MaxAttempts,
		initialDelay:  cfg.InitialDelay,
		maxDelay:      cfg.MaxDelay,
		backoffFactor: cfg.BackoffFactor,
		params: ModelParameters{
			Temperature: 0.1,
			TopP:        0.6,
			MaxTokens:   2000,
			ResponseFormat: &ResponseFormat{
				Type: "json_schema",
				JSONSchema: &JSONSchema{
					Name:   "movies",
					Schema: moviesSchema(),
				},
			},
		},
	}

	// 构造期即校验默认参数，参数来自程序员而非用户
	if err := validateModelParameters(s.params); err != nil {
		return nil, &OpenRouterError{
			Message: "Invalid default model parameters",
			Code:    ErrCodeInvalidModelParams,
			Cause:   err,
		}
	}

	return s, nil
}

// Model 返回当前使用的模型标识
func (s *OpenRouterService) Model() string {
	return s.model
}

// SetModelParameters 更新采样参数，先校验后生效
func (s *OpenRouterService) SetModelParameters(params ModelParameters) error {
	if err := validateModelParameters(params); err != nil {
		return &OpenRouterError{
			Message: "Invalid model parameters",
			Code:    ErrCodeInvalidModelParams,
			Context: &ErrorContext{Timestamp: time.Now()},
			Cause:   err,
		}
	}
	s.params = params
	return nil
}

// SendChatRequest 发送一次聊天补全请求
// 构建并校验请求体 -> 带退避重试发送 -> 校验响应结构
// 调用方负责从 Choices[0].Message.Content 中提取影片列表
func (s *OpenRouterService) SendChatRequest(ctx context.Context, message string) (*ChatResponse, error) {
	requestID := uuid.NewString()

	payload, err := s.buildRequestPayload(message, requestID)
	if err != nil {
		s.logError(err, requestID)
		return nil, err
	}

	resp, err := s.retryOperation(ctx, requestID, func(ctx context.Context) (*ChatResponse, error) {
		return s.sendRequest(ctx, payload, requestID)
	})
	if err != nil {
		s.logError(err, requestID)
		return nil, err
	}

	return resp, nil
}

// buildRequestPayload 组装并校验请求体
func (s *OpenRouterService) buildRequestPayload(userMessage, requestID string) (*ChatRequest, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, &OpenRouterError{
			Message: "User message cannot be empty",
			Code:    ErrCodeInvalidUserMessage,
			Context: &ErrorContext{Timestamp: time.Now(), RequestID: requestID},
		}
	}

	payload := &ChatRequest{
		Model: s.model,
		Messages: []ChatMessage{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: userMessage},
		},
		Temperature:    s.params.Temperature,
		TopP:           s.params.TopP,
		MaxTokens:      s.params.MaxTokens,
		ResponseFormat: s.params.ResponseFormat,
	}

	// 防御程序员错误的形状校验，不针对用户输入
	if err := validateRequestPayload(payload); err != nil {
		return nil, &OpenRouterError{
			Message: "Invalid request payload",
			Code:    ErrCodeInvalidRequestPayload,
			Context: &ErrorContext{Timestamp: time.Now(), RequestID: requestID},
			Cause:   err,
		}
	}

	return payload, nil
}

// sendRequest 单次请求：超时受限，非 2xx 视为失败，成功后校验响应结构
func (s *OpenRouterService) sendRequest(ctx context.Context, payload *ChatRequest, requestID string) (*ChatResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		// 网络错误、超时中断：可重试
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &OpenRouterError{
			Message:    fmt.Sprintf("API request failed with status %d", resp.StatusCode),
			Code:       ErrCodeAPIRequestFailed,
			HTTPStatus: resp.StatusCode,
			Context:    &ErrorContext{Timestamp: time.Now(), RequestID: requestID},
		}
	}

	return s.parseResponse(resp.Body, requestID)
}

// parseResponse 解析并校验响应结构
// 上游已经应答，结构错误不再重试
func (s *OpenRouterService) parseResponse(r io.Reader, requestID string) (*ChatResponse, error) {
	var parsed ChatResponse
	if err := json.NewDecoder(r).Decode(&parsed); err != nil {
		return nil, &OpenRouterError{
			Message: "Invalid response format from API",
			Code:    ErrCodeInvalidResponseFormat,
			Context: &ErrorContext{Timestamp: time.Now(), RequestID: requestID},
			Cause:   err,
		}
	}

	if err := validateResponse(&parsed); err != nil {
		return nil, &OpenRouterError{
			Message: "Invalid response format from API",
			Code:    ErrCodeInvalidResponseFormat,
			Context: &ErrorContext{Timestamp: time.Now(), RequestID: requestID},
			Cause:   err,
		}
	}

	return &parsed, nil
}

// retryOperation 带指数退避的重试循环
// 下一次尝试前的等待时间：delay = min(delay * backoffFactor, maxDelay)，从 initialDelay 开始
func (s *OpenRouterService) retryOperation(ctx context.Context, requestID string, op func(context.Context) (*ChatResponse, error)) (*ChatResponse, error) {
	var lastErr error
	delay := s.initialDelay

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		resp, err := op(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		// 客户端类错误重试无意义，直接上抛
		if oe, ok := err.(*OpenRouterError); ok && !oe.Retryable() {
			return nil, err
		}

		if attempt == s.maxAttempts {
			return nil, &OpenRouterError{
				Message: "Max retry attempts reached",
				Code:    ErrCodeMaxRetriesExceeded,
				Context: &ErrorContext{
					Timestamp:   time.Now(),
					RequestID:   requestID,
					Attempt:     attempt,
					MaxAttempts: s.maxAttempts,
				},
				Cause: lastErr,
			}
		}

		log.Printf("[OpenRouter] request_id=%s attempt=%d/%d 调用失败将于 %v 后重试: %v",
			requestID, attempt, s.maxAttempts, delay, err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		delay = s.nextDelay(delay)
	}

	return nil, lastErr
}

// nextDelay 计算下一次重试前的等待时间：当前等待时间乘以退避系数，封顶 maxDelay
func (s *OpenRouterService) nextDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * s.backoffFactor)
	if next > s.maxDelay {
		return s.maxDelay
	}
	return next
}

// logError 统一错误日志，带关联 ID
func (s *OpenRouterService) logError(err error, requestID string) {
	if oe, ok := err.(*OpenRouterError); ok {
		log.Printf("[OpenRouter] request_id=%s code=%s error=%v", requestID, oe.Code, oe)
		return
	}
	log.Printf("[OpenRouter] request_id=%s unexpected error: %v", requestID, err)
}

// validateRetryPolicy 重试策略校验
func validateRetryPolicy(cfg config.OpenRouterConfig) error {
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("max attempts 必须不小于 1，当前为 %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay <= 0 {
		return fmt.Errorf("initial delay 必须为正数，当前为 %v", cfg.InitialDelay)
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		return fmt.Errorf("max delay 不能小于 initial delay，当前为 %v < %v", cfg.MaxDelay, cfg.InitialDelay)
	}
	if cfg.BackoffFactor < 1 {
		return fmt.Errorf("backoff factor 必须不小于 1，当前为 %v", cfg.BackoffFactor)
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("timeout 必须为正数，当前为 %v", cfg.Timeout)
	}
	return nil
}

// validateModelParameters 采样参数形状校验
func validateModelParameters(p ModelParameters) error {
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature 必须在 [0, 2] 之间，当前为 %v", p.Temperature)
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p 必须在 [0, 1] 之间，当前为 %v", p.TopP)
	}
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens 必须为正数，当前为 %d", p.MaxTokens)
	}
	if p.ResponseFormat != nil {
		if p.ResponseFormat.Type != "json_schema" {
			return fmt.Errorf("response_format.type 必须为 json_schema")
		}
		if p.ResponseFormat.JSONSchema == nil || p.ResponseFormat.JSONSchema.Name == "" {
			return fmt.Errorf("response_format.json_schema 缺少 name")
		}
		if len(p.ResponseFormat.JSONSchema.Schema) == 0 {
			return fmt.Errorf("response_format.json_schema 缺少 schema")
		}
	}
	return nil
}

// validateRequestPayload 请求体形状校验
func validateRequestPayload(p *ChatRequest) error {
	if p.Model == "" {
		return fmt.Errorf("model 不能为空")
	}
	if len(p.Messages) == 0 {
		return fmt.Errorf("messages 不能为空")
	}
	for i, m := range p.Messages {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return fmt.Errorf("messages[%d].role 非法: %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("messages[%d].content 不能为空", i)
		}
		if len(m.Content) > maxMessageLength {
			return fmt.Errorf("messages[%d].content 超过 %d 字符上限", i, maxMessageLength)
		}
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature 必须在 [0, 2] 之间")
	}
	if p.TopP < 0 || p.TopP > 1 {
		return fmt.Errorf("top_p 必须在 [0, 1] 之间")
	}
	return nil
}

// validateResponse 响应结构校验：必需字段齐全才算有效应答
func validateResponse(r *ChatResponse) error {
	if r.ID == "" {
		return fmt.Errorf("响应缺少 id")
	}
	if r.Model == "" {
		return fmt.Errorf("响应缺少 model")
	}
	if r.Created == 0 {
		return fmt.Errorf("响应缺少 created")
	}
	if r.Object != "chat.completion" {
		return fmt.Errorf("object 必须为 chat.completion，当前为 %q", r.Object)
	}
	if len(r.Choices) == 0 {
		return fmt.Errorf("响应缺少 choices")
	}
	for i, c := range r.Choices {
		if c.Message.Role != "assistant" {
			return fmt.Errorf("choices[%d].message.role 必须为 assistant", i)
		}
		if c.Message.Content == "" {
			return fmt.Errorf("choices[%d].message.content 为空", i)
		}
	}
	return nil
}

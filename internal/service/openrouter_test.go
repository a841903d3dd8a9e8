package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/filmfinder/internal/config"
)

// newTestClient 构造指向测试服务器的客户端，退避间隔压到毫秒级
func newTestClient(t *testing.T, endpoint string, maxAttempts int) *OpenRouterService {
	t.Helper()

	s, err := NewOpenRouterService(config.OpenRouterConfig{
		Endpoint:      endpoint,
		APIKey:        "test-key",
		Model:         "openai/gpt-4o-mini",
		Timeout:       5 * time.Second,
		MaxAttempts:   maxAttempts,
		InitialDelay:  time.Millisecond,
		MaxDelay:      4 * time.Millisecond,
		BackoffFactor: 1.5,
	})
	if err != nil {
		t.Fatalf("构造客户端失败: %v", err)
	}
	return s
}

// validChatResponse 一份结构完整的上游应答
func validChatResponse(content string) ChatResponse {
	return ChatResponse{
		ID:      "gen-123",
		Model:   "openai/gpt-4o-mini",
		Created: 1700000000,
		Object:  "chat.completion",
		Choices: []ChatChoice{
			{Index: 0, Message: ChatMessage{Role: "assistant", Content: content}, FinishReason: "stop"},
		},
		Usage: ChatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

func TestNewOpenRouterServiceMissingAPIKey(t *testing.T) {
	_, err := NewOpenRouterService(config.OpenRouterConfig{
		Endpoint: "http://localhost",
		Model:    "openai/gpt-4o-mini",
	})

	var oe *OpenRouterError
	if !errors.As(err, &oe) {
		t.Fatalf("期望 *OpenRouterError，实际 %T", err)
	}
	if oe.Code != ErrCodeMissingAPIKey {
		t.Errorf("期望错误码 %s，实际 %s", ErrCodeMissingAPIKey, oe.Code)
	}
}

func TestNewOpenRouterServiceInvalidRetryPolicy(t *testing.T) {
	base := config.OpenRouterConfig{
		Endpoint:      "http://localhost",
		APIKey:        "test-key",
		Model:         "openai/gpt-4o-mini",
		Timeout:       time.Second,
		MaxAttempts:   5,
		InitialDelay:  time.Millisecond,
		MaxDelay:      4 * time.Millisecond,
		BackoffFactor: 1.5,
	}

	cases := []struct {
		name   string
		mutate func(*config.OpenRouterConfig)
	}{
		// 尝试次数为零会让重试循环一次都不执行，返回 (nil, nil)
		{"尝试次数为零", func(c *config.OpenRouterConfig) { c.MaxAttempts = 0 }},
		{"尝试次数为负", func(c *config.OpenRouterConfig) { c.MaxAttempts = -1 }},
		{"初始等待为零", func(c *config.OpenRouterConfig) { c.InitialDelay = 0 }},
		{"等待上限小于初始等待", func(c *config.OpenRouterConfig) { c.MaxDelay = c.InitialDelay / 2 }},
		{"退避系数小于一", func(c *config.OpenRouterConfig) { c.BackoffFactor = 0.5 }},
		{"超时为零", func(c *config.OpenRouterConfig) { c.Timeout = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base
			tc.mutate(&cfg)

			_, err := NewOpenRouterService(cfg)

			var oe *OpenRouterError
			if !errors.As(err, &oe) || oe.Code != ErrCodeInvalidModelParams {
				t.Fatalf("非法重试策略应在构造期被拒绝，实际 %v", err)
			}
		})
	}
}

func TestRetryDelayProgression(t *testing.T) {
	// 生产默认值：初始 500ms、系数 1.5、上限 8s
	s, err := NewOpenRouterService(config.OpenRouterConfig{
		Endpoint:      "http://localhost",
		APIKey:        "test-key",
		Model:         "openai/gpt-4o-mini",
		Timeout:       45 * time.Second,
		MaxAttempts:   5,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      8 * time.Second,
		BackoffFactor: 1.5,
	})
	if err != nil {
		t.Fatalf("构造客户端失败: %v", err)
	}

	// 第 k 次失败后的等待时间 = min(500ms * 1.5^(k-1), 8s)
	want := []time.Duration{
		500 * time.Millisecond,
		750 * time.Millisecond,
		1125 * time.Millisecond,
		1687500 * time.Microsecond,
		2531250 * time.Microsecond,
		3796875 * time.Microsecond,
		5695312500 * time.Nanosecond,
		8 * time.Second, // 8542.96875ms 被封顶
		8 * time.Second, // 封顶后保持不变
	}

	delay := s.initialDelay
	for i, w := range want {
		if delay != w {
			t.Fatalf("第 %d 次等待应为 %v，实际 %v", i+1, w, delay)
		}
		delay = s.nextDelay(delay)
	}
}

func TestSendChatRequestEmptyMessage(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	_, err := client.SendChatRequest(context.Background(), "   ")

	var oe *OpenRouterError
	if !errors.As(err, &oe) || oe.Code != ErrCodeInvalidUserMessage {
		t.Fatalf("期望 INVALID_USER_MESSAGE，实际 %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("空消息不应发起网络请求，实际发起了 %d 次", n)
	}
}

func TestSendChatRequestSuccess(t *testing.T) {
	var gotAuth, gotRequestID string
	var gotPayload ChatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		json.NewDecoder(r.Body).Decode(&gotPayload)
		json.NewEncoder(w).Encode(validChatResponse(`{"movies":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	resp, err := client.SendChatRequest(context.Background(), "recommend something")
	if err != nil {
		t.Fatalf("请求失败: %v", err)
	}

	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization 头不正确: %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Error("缺少 X-Request-ID 关联头")
	}
	if gotPayload.Model != "openai/gpt-4o-mini" {
		t.Errorf("model 不正确: %q", gotPayload.Model)
	}
	if len(gotPayload.Messages) != 2 || gotPayload.Messages[0].Role != "system" || gotPayload.Messages[1].Content != "recommend something" {
		t.Errorf("messages 结构不正确: %+v", gotPayload.Messages)
	}
	if gotPayload.Temperature != 0.1 || gotPayload.TopP != 0.6 || gotPayload.MaxTokens != 2000 {
		t.Errorf("默认采样参数不正确: temp=%v top_p=%v max_tokens=%d",
			gotPayload.Temperature, gotPayload.TopP, gotPayload.MaxTokens)
	}
	if gotPayload.ResponseFormat == nil || gotPayload.ResponseFormat.Type != "json_schema" ||
		gotPayload.ResponseFormat.JSONSchema == nil || gotPayload.ResponseFormat.JSONSchema.Name != "movies" {
		t.Errorf("response_format 不正确: %+v", gotPayload.ResponseFormat)
	}

	if resp.Choices[0].Message.Content != `{"movies":[]}` {
		t.Errorf("响应内容不正确: %q", resp.Choices[0].Message.Content)
	}
}

func TestSendChatRequestClientErrorNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	_, err := client.SendChatRequest(context.Background(), "hello")

	var oe *OpenRouterError
	if !errors.As(err, &oe) || oe.Code != ErrCodeAPIRequestFailed {
		t.Fatalf("期望 API_REQUEST_FAILED，实际 %v", err)
	}
	if oe.HTTPStatus != http.StatusBadRequest {
		t.Errorf("期望状态码 400，实际 %d", oe.HTTPStatus)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("4xx 不应重试，期望 1 次请求，实际 %d 次", n)
	}
}

func TestSendChatRequestRetriesUntilExhausted(t *testing.T) {
	const maxAttempts = 3

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, maxAttempts)

	_, err := client.SendChatRequest(context.Background(), "hello")

	var oe *OpenRouterError
	if !errors.As(err, &oe) {
		t.Fatalf("期望 *OpenRouterError，实际 %T", err)
	}
	if oe.Code != ErrCodeMaxRetriesExceeded {
		t.Fatalf("期望 MAX_RETRIES_EXCEEDED，实际 %s", oe.Code)
	}
	if n := atomic.LoadInt32(&calls); n != maxAttempts {
		t.Errorf("期望尝试 %d 次，实际 %d 次", maxAttempts, n)
	}

	// 最后一次的底层错误必须保留在错误链上
	var cause *OpenRouterError
	if !errors.As(oe.Cause, &cause) || cause.Code != ErrCodeAPIRequestFailed {
		t.Errorf("错误链缺少原始失败原因: %v", oe.Cause)
	}
	if oe.Context == nil || oe.Context.Attempt != maxAttempts || oe.Context.MaxAttempts != maxAttempts {
		t.Errorf("错误上下文不正确: %+v", oe.Context)
	}
}

func TestSendChatRequestRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(validChatResponse(`{"movies":[]}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	resp, err := client.SendChatRequest(context.Background(), "hello")
	if err != nil {
		t.Fatalf("瞬时失败恢复后仍报错: %v", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		t.Fatal("恢复后响应为空")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("期望 3 次请求（2 次失败 + 1 次成功），实际 %d 次", n)
	}
}

func TestSendChatRequestInvalidResponseNoRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		// 2xx 但缺少 choices：结构无效
		fmt.Fprint(w, `{"id":"gen-1","model":"m","created":1,"object":"chat.completion","choices":[]}`)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)

	_, err := client.SendChatRequest(context.Background(), "hello")

	var oe *OpenRouterError
	if !errors.As(err, &oe) || oe.Code != ErrCodeInvalidResponseFormat {
		t.Fatalf("期望 INVALID_RESPONSE_FORMAT，实际 %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("上游已应答，结构错误不应重试，实际 %d 次", n)
	}
}

func TestSendChatRequestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 5)
	client.initialDelay = time.Minute // 让重试等待撞上取消

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := client.SendChatRequest(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
}

func TestSetModelParameters(t *testing.T) {
	client := newTestClient(t, "http://localhost", 1)

	err := client.SetModelParameters(ModelParameters{Temperature: 3, TopP: 0.5, MaxTokens: 100})
	var oe *OpenRouterError
	if !errors.As(err, &oe) || oe.Code != ErrCodeInvalidModelParams {
		t.Fatalf("非法参数应返回 INVALID_MODEL_PARAMETERS，实际 %v", err)
	}

	if err := client.SetModelParameters(ModelParameters{Temperature: 0.5, TopP: 0.9, MaxTokens: 1000}); err != nil {
		t.Fatalf("合法参数被拒绝: %v", err)
	}
	if client.params.Temperature != 0.5 {
		t.Errorf("参数未生效: %+v", client.params)
	}
}

func TestRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  *OpenRouterError
		want bool
	}{
		{"服务端错误可重试", &OpenRouterError{Code: ErrCodeAPIRequestFailed, HTTPStatus: 502}, true},
		{"限流按客户端错误处理", &OpenRouterError{Code: ErrCodeAPIRequestFailed, HTTPStatus: 429}, false},
		{"客户端错误不可重试", &OpenRouterError{Code: ErrCodeAPIRequestFailed, HTTPStatus: 400}, false},
		{"请求体非法不可重试", &OpenRouterError{Code: ErrCodeInvalidRequestPayload}, false},
		{"消息非法不可重试", &OpenRouterError{Code: ErrCodeInvalidUserMessage}, false},
		{"响应结构非法不可重试", &OpenRouterError{Code: ErrCodeInvalidResponseFormat}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Retryable(); got != tc.want {
				t.Errorf("Retryable() = %v，期望 %v", got, tc.want)
			}
		})
	}
}

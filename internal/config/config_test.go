package config

import (
	"testing"
	"time"
)

func TestLoadOpenRouterDefaults(t *testing.T) {
	// 清空相关变量，保证拿到的是内置默认值
	for _, key := range []string{
		"OPENROUTER_MODEL", "OPENROUTER_MAX_ATTEMPTS", "OPENROUTER_INITIAL_DELAY_MS",
		"OPENROUTER_MAX_DELAY_MS", "OPENROUTER_BACKOFF_FACTOR", "OPENROUTER_TIMEOUT_MS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	or := cfg.OpenRouter
	if or.Model != "openai/gpt-4o-mini" {
		t.Errorf("默认模型不正确: %q", or.Model)
	}
	if or.MaxAttempts != 5 || or.InitialDelay != 500*time.Millisecond ||
		or.MaxDelay != 8*time.Second || or.BackoffFactor != 1.5 {
		t.Errorf("默认重试策略不正确: %+v", or)
	}
	if or.Timeout != 45*time.Second {
		t.Errorf("默认超时不正确: %v", or.Timeout)
	}
}

func TestLoadFallsBackOnMalformedNumbers(t *testing.T) {
	// 无法解析的数值变量回退到默认值，不能产出 0 这种会让重试循环失效的配置
	t.Setenv("OPENROUTER_MAX_ATTEMPTS", "abc")
	t.Setenv("OPENROUTER_BACKOFF_FACTOR", "fast")
	t.Setenv("OPENROUTER_INITIAL_DELAY_MS", "half a second")
	t.Setenv("JWT_EXPIRY_HOURS", "soon")

	cfg := Load()

	if cfg.OpenRouter.MaxAttempts != 5 {
		t.Errorf("非法 MAX_ATTEMPTS 应回退为 5，实际 %d", cfg.OpenRouter.MaxAttempts)
	}
	if cfg.OpenRouter.BackoffFactor != 1.5 {
		t.Errorf("非法 BACKOFF_FACTOR 应回退为 1.5，实际 %v", cfg.OpenRouter.BackoffFactor)
	}
	if cfg.OpenRouter.InitialDelay != 500*time.Millisecond {
		t.Errorf("非法 INITIAL_DELAY_MS 应回退为 500ms，实际 %v", cfg.OpenRouter.InitialDelay)
	}
	if cfg.JWTExpiry != 72*time.Hour {
		t.Errorf("非法 JWT_EXPIRY_HOURS 应回退为 72h，实际 %v", cfg.JWTExpiry)
	}
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	Env         string
	AppSecret   string
	DatabaseURL string
	JWTExpiry   time.Duration
	Port        string
	SiteName    string

	// OpenRouter AI 接口配置
	OpenRouter OpenRouterConfig
}

// OpenRouterConfig OpenRouter 聊天补全接口配置
type OpenRouterConfig struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration

	// 重试策略
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Load 加载配置
func Load() *Config {
	expiryHours := getEnvInt("JWT_EXPIRY_HOURS", 72)

	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "filmfinder")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL)

	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	maxAttempts := getEnvInt("OPENROUTER_MAX_ATTEMPTS", 5)
	initialDelayMs := getEnvInt("OPENROUTER_INITIAL_DELAY_MS", 500)
	maxDelayMs := getEnvInt("OPENROUTER_MAX_DELAY_MS", 8000)
	backoffFactor := getEnvFloat("OPENROUTER_BACKOFF_FACTOR", 1.5)
	timeoutMs := getEnvInt("OPENROUTER_TIMEOUT_MS", 45000)

	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		AppSecret:   appSecret,
		DatabaseURL: dbURL,
		JWTExpiry:   time.Duration(expiryHours) * time.Hour,
		Port:        getEnv("PORT", "5005"),
		SiteName:    getEnv("SITE_NAME", "FilmFinder"),
		OpenRouter: OpenRouterConfig{
			Endpoint:      getEnv("OPENROUTER_API_ENDPOINT", "https://openrouter.ai/api/v1/chat/completions"),
			APIKey:        os.Getenv("OPENROUTER_API_KEY"),
			Model:         getEnv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
			Timeout:       time.Duration(timeoutMs) * time.Millisecond,
			MaxAttempts:   maxAttempts,
			InitialDelay:  time.Duration(initialDelayMs) * time.Millisecond,
			MaxDelay:      time.Duration(maxDelayMs) * time.Millisecond,
			BackoffFactor: backoffFactor,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 解析整型环境变量，缺失或无法解析时回退默认值
func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvFloat 解析浮点环境变量，缺失或无法解析时回退默认值
func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}

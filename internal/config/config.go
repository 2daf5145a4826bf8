// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cache（空文字列の場合はキャッシュ無効）
	RedisURL      string
	CacheTTL      time.Duration
	UserCacheTTL  time.Duration

	// LLM
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	LLMTemperature float64

	// Session
	SessionMaxAge int

	// Posts
	PostsPerPage    int
	MaxPostsPerUser int
	BatchMaxConcurrent int

	// Rate Limit
	RateLimitGeneral  int
	RateLimitGenerate int

	// Worker
	ReconcileInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.UserCacheTTL = getEnvDuration("USER_CACHE_TTL", 15*time.Minute)
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4")
	cfg.LLMTemperature = getEnvFloat("LLM_TEMPERATURE", 0.7)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.PostsPerPage = getEnvInt("POSTS_PER_PAGE", 6)
	cfg.MaxPostsPerUser = getEnvInt("MAX_POSTS_PER_USER", 50)
	cfg.BatchMaxConcurrent = getEnvInt("BATCH_MAX_CONCURRENT", 3)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGenerate = getEnvInt("RATE_LIMIT_GENERATE", 10)
	cfg.ReconcileInterval = getEnvDuration("RECONCILE_INTERVAL", 1*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

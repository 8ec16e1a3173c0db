package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIBaseURL     string
	RequestTimeout time.Duration
	RequestRate    float64 // req/sec
	RequestBurst   int

	// Session
	SessionFile  string
	EnvToken     string // TODO_TOKEN が設定されている場合はファイルより優先する
	EnvUserID    int
	SessionStore string // セッションレコードを保存するキー

	// List
	DefaultPageSize int
	DefaultSort     string

	// Generate
	GenerateCount int

	// Metrics
	MetricsAddr string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIBaseURL = strings.TrimRight(os.Getenv("TODO_API_BASE_URL"), "/")
	if cfg.APIBaseURL == "" {
		missing = append(missing, "TODO_API_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return nil, fmt.Errorf("TODO_API_BASE_URL must start with http:// or https://: %q", cfg.APIBaseURL)
	}

	// Optional fields with defaults
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
	cfg.RequestRate = getEnvFloat("REQUEST_RATE", 5)
	cfg.RequestBurst = getEnvInt("REQUEST_BURST", 5)
	cfg.SessionFile = getEnvString("TODO_SESSION_FILE", defaultSessionFile())
	cfg.SessionStore = getEnvString("TODO_SESSION_KEY", "loggedInUser")
	cfg.EnvToken = strings.TrimSpace(os.Getenv("TODO_TOKEN"))
	cfg.EnvUserID = getEnvInt("TODO_USER_ID", 0)
	cfg.DefaultPageSize = getEnvInt("DEFAULT_PAGE_SIZE", 10)
	cfg.DefaultSort = getEnvString("DEFAULT_SORT", "DESC")
	cfg.GenerateCount = getEnvInt("GENERATE_COUNT", 15)
	cfg.MetricsAddr = getEnvString("METRICS_ADDR", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	return cfg, nil
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".todosync", "session.json")
	}
	return filepath.Join(home, ".todosync", "session.json")
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

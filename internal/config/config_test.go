package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnvVars(t *testing.T) {
	t.Helper()
	t.Setenv("TODO_API_BASE_URL", "http://localhost:1337/api/")
}

func TestLoad_AllRequiredVarsSet_ReturnsConfig(t *testing.T) {
	setRequiredEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// 末尾のスラッシュは除去される
	if cfg.APIBaseURL != "http://localhost:1337/api" {
		t.Errorf("APIBaseURL = %q, want %q", cfg.APIBaseURL, "http://localhost:1337/api")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("HOME", "/home/tester")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 10*time.Second)
	}
	if cfg.RequestRate != 5 {
		t.Errorf("RequestRate = %v, want %v", cfg.RequestRate, 5)
	}
	if cfg.RequestBurst != 5 {
		t.Errorf("RequestBurst = %d, want %d", cfg.RequestBurst, 5)
	}
	if want := filepath.Join("/home/tester", ".todosync", "session.json"); cfg.SessionFile != want {
		t.Errorf("SessionFile = %q, want %q", cfg.SessionFile, want)
	}
	if cfg.SessionStore != "loggedInUser" {
		t.Errorf("SessionStore = %q, want %q", cfg.SessionStore, "loggedInUser")
	}
	if cfg.DefaultPageSize != 10 {
		t.Errorf("DefaultPageSize = %d, want %d", cfg.DefaultPageSize, 10)
	}
	if cfg.DefaultSort != "DESC" {
		t.Errorf("DefaultSort = %q, want %q", cfg.DefaultSort, "DESC")
	}
	if cfg.GenerateCount != 15 {
		t.Errorf("GenerateCount = %d, want %d", cfg.GenerateCount, 15)
	}
	if cfg.MetricsAddr != "" {
		t.Errorf("MetricsAddr = %q, want empty", cfg.MetricsAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	setRequiredEnvVars(t)

	t.Setenv("REQUEST_TIMEOUT", "3s")
	t.Setenv("REQUEST_RATE", "0.5")
	t.Setenv("REQUEST_BURST", "1")
	t.Setenv("TODO_SESSION_FILE", "/tmp/session.json")
	t.Setenv("TODO_TOKEN", "  abc.def.ghi ")
	t.Setenv("TODO_USER_ID", "42")
	t.Setenv("DEFAULT_PAGE_SIZE", "50")
	t.Setenv("DEFAULT_SORT", "ASC")
	t.Setenv("GENERATE_COUNT", "3")
	t.Setenv("METRICS_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want %v", cfg.RequestTimeout, 3*time.Second)
	}
	if cfg.RequestRate != 0.5 {
		t.Errorf("RequestRate = %v, want %v", cfg.RequestRate, 0.5)
	}
	if cfg.RequestBurst != 1 {
		t.Errorf("RequestBurst = %d, want %d", cfg.RequestBurst, 1)
	}
	if cfg.SessionFile != "/tmp/session.json" {
		t.Errorf("SessionFile = %q", cfg.SessionFile)
	}
	if cfg.EnvToken != "abc.def.ghi" {
		t.Errorf("EnvToken = %q, want %q", cfg.EnvToken, "abc.def.ghi")
	}
	if cfg.EnvUserID != 42 {
		t.Errorf("EnvUserID = %d, want %d", cfg.EnvUserID, 42)
	}
	if cfg.DefaultPageSize != 50 {
		t.Errorf("DefaultPageSize = %d, want %d", cfg.DefaultPageSize, 50)
	}
	if cfg.DefaultSort != "ASC" {
		t.Errorf("DefaultSort = %q, want %q", cfg.DefaultSort, "ASC")
	}
	if cfg.GenerateCount != 3 {
		t.Errorf("GenerateCount = %d, want %d", cfg.GenerateCount, 3)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q", cfg.MetricsAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoad_MissingBaseURL_ReturnsError(t *testing.T) {
	t.Setenv("TODO_API_BASE_URL", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when TODO_API_BASE_URL is missing")
	}
	if !strings.Contains(err.Error(), "TODO_API_BASE_URL") {
		t.Errorf("error should mention TODO_API_BASE_URL, got: %v", err)
	}
}

func TestLoad_InvalidScheme_ReturnsError(t *testing.T) {
	t.Setenv("TODO_API_BASE_URL", "ftp://example.com")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}

func TestLoad_InvalidNumbers_FallBackToDefaults(t *testing.T) {
	setRequiredEnvVars(t)
	t.Setenv("REQUEST_TIMEOUT", "soon")
	t.Setenv("REQUEST_BURST", "many")
	t.Setenv("REQUEST_RATE", "fast")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want default", cfg.RequestTimeout)
	}
	if cfg.RequestBurst != 5 {
		t.Errorf("RequestBurst = %d, want default", cfg.RequestBurst)
	}
	if cfg.RequestRate != 5 {
		t.Errorf("RequestRate = %v, want default", cfg.RequestRate)
	}
}

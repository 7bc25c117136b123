package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config-*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad(t *testing.T) {
	configContent := `
server:
  port: 9090
log:
  level: "debug"
  format: "json"
boamp:
  api_url: "https://api.boamp.test/records"
  page_size: 50
  max_records: 200
  timeout_sec: 10
documents:
  base_url: "https://docs.boamp.test/PDF"
  delay_ms: 100
retry:
  max_attempts: 3
columns:
  document_id: "idweb"
keywords:
  extra: ["serrurerie"]
archive:
  endpoint: "localhost:9000"
  access_key: "minioadmin"
  secret_key: "minioadmin"
  bucket: "exports"
  expire_days: 14
store:
  max_runs: 50
auth:
  jwt_secret: "test-secret"
  token_expire_hours: 48
users:
  - username: "testuser"
    password: "testpass"
    tenant: "testtenant"
`
	cfg, err := Load(writeTempConfig(t, configContent))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Boamp.APIURL != "https://api.boamp.test/records" {
		t.Errorf("Unexpected api_url: %s", cfg.Boamp.APIURL)
	}
	if cfg.Boamp.PageSize != 50 {
		t.Errorf("Expected page_size 50, got %d", cfg.Boamp.PageSize)
	}
	if cfg.Boamp.MaxRecords != 200 {
		t.Errorf("Expected max_records 200, got %d", cfg.Boamp.MaxRecords)
	}
	if cfg.Documents.DelayMs != 100 {
		t.Errorf("Expected delay_ms 100, got %d", cfg.Documents.DelayMs)
	}
	if cfg.Retry.MaxAttempts != 3 {
		t.Errorf("Expected max_attempts 3, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Archive.ExpireDays != 14 {
		t.Errorf("Expected expire_days 14, got %d", cfg.Archive.ExpireDays)
	}
	if cfg.Store.MaxRuns != 50 {
		t.Errorf("Expected max_runs 50, got %d", cfg.Store.MaxRuns)
	}
	if cfg.Auth.TokenExpireHours != 48 {
		t.Errorf("Expected token_expire_hours 48, got %d", cfg.Auth.TokenExpireHours)
	}
	if len(cfg.Users) != 1 || cfg.Users[0].Username != "testuser" {
		t.Errorf("Unexpected users: %+v", cfg.Users)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "server:\n  port: 0\n"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected log defaults: %s/%s", cfg.Log.Level, cfg.Log.Format)
	}
	if cfg.Boamp.PageSize != 100 {
		t.Errorf("Expected default page_size 100, got %d", cfg.Boamp.PageSize)
	}
	if cfg.Boamp.MaxRecords != 5000 {
		t.Errorf("Expected default max_records 5000, got %d", cfg.Boamp.MaxRecords)
	}
	if cfg.Boamp.MaxOffset != 10000 {
		t.Errorf("Expected default max_offset 10000, got %d", cfg.Boamp.MaxOffset)
	}
	if cfg.Documents.TimeoutSec != 30 {
		t.Errorf("Expected default timeout_sec 30, got %d", cfg.Documents.TimeoutSec)
	}
	if cfg.Documents.DelayMs != 500 {
		t.Errorf("Expected default delay_ms 500, got %d", cfg.Documents.DelayMs)
	}
	if cfg.Documents.LotWindow != 1000 || cfg.Documents.VisitWindow != 500 {
		t.Errorf("Unexpected scan windows: %d/%d", cfg.Documents.LotWindow, cfg.Documents.VisitWindow)
	}
	if cfg.Retry.MaxAttempts != 1 {
		t.Errorf("Expected default max_attempts 1, got %d", cfg.Retry.MaxAttempts)
	}
	if cfg.Columns.ID != "id" || cfg.Columns.Keyword != "keyword" {
		t.Errorf("Unexpected column defaults: %+v", cfg.Columns)
	}
	if cfg.Columns.DocumentID != "idweb" || cfg.Columns.Date != "dateparution" {
		t.Errorf("Unexpected document column defaults: %+v", cfg.Columns)
	}
	if cfg.Store.MaxRuns != 100 {
		t.Errorf("Expected default max_runs 100, got %d", cfg.Store.MaxRuns)
	}
	if cfg.Auth.TokenExpireHours != 24 {
		t.Errorf("Expected default token_expire_hours 24, got %d", cfg.Auth.TokenExpireHours)
	}
}

func TestLoadNonExistent(t *testing.T) {
	_, err := Load("nonexistent.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeTempConfig(t, "invalid: yaml: content:"))
	if err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Retry:    RetryConfig{BackoffMultiplier: 2.0},
		Keywords: KeywordsConfig{Extra: []string{"serrurerie"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}

	cfg.Users = []User{{Username: "u", Password: "p"}}
	if err := cfg.Validate(); !errors.Is(err, ErrMissingJWTSecret) {
		t.Errorf("Expected ErrMissingJWTSecret, got %v", err)
	}
	cfg.Auth.JWTSecret = "s"

	cfg.Retry.BackoffMultiplier = 0.5
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidBackoffMultiplier) {
		t.Errorf("Expected ErrInvalidBackoffMultiplier, got %v", err)
	}
	cfg.Retry.BackoffMultiplier = 1.0

	cfg.Keywords = KeywordsConfig{}
	if err := cfg.Validate(); !errors.Is(err, ErrNoKeywords) {
		t.Errorf("Expected ErrNoKeywords, got %v", err)
	}
}

func TestGetRetryDelay(t *testing.T) {
	rc := &RetryConfig{MaxAttempts: 5, InitialDelayMs: 100, MaxDelayMs: 350, BackoffMultiplier: 2.0}

	if d := rc.GetRetryDelay(1); d != 0 {
		t.Errorf("Expected no delay before first attempt, got %v", d)
	}
	if d := rc.GetRetryDelay(2); d != 100*time.Millisecond {
		t.Errorf("Expected 100ms, got %v", d)
	}
	if d := rc.GetRetryDelay(3); d != 200*time.Millisecond {
		t.Errorf("Expected 200ms, got %v", d)
	}
	if d := rc.GetRetryDelay(4); d != 350*time.Millisecond {
		t.Errorf("Expected cap at 350ms, got %v", d)
	}
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()
	kwPath := filepath.Join(dir, "keywords.yaml")
	content := "keywords:\n  - miroiterie\n  - \"45420000\"\n  - métallerie\n  - miroiterie\n  - \"  \"\n"
	if err := os.WriteFile(kwPath, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write keywords file: %v", err)
	}

	cfg := &Config{Keywords: KeywordsConfig{File: kwPath, Extra: []string{"serrurerie", "métallerie"}}}
	keywords, err := cfg.LoadKeywords()
	if err != nil {
		t.Fatalf("Failed to load keywords: %v", err)
	}

	expected := []string{"miroiterie", "45420000", "métallerie", "serrurerie"}
	if len(keywords) != len(expected) {
		t.Fatalf("Expected %d keywords, got %d: %v", len(expected), len(keywords), keywords)
	}
	for i, kw := range expected {
		if keywords[i] != kw {
			t.Errorf("Expected keyword[%d]=%s, got %s", i, kw, keywords[i])
		}
	}
}

func TestLoadKeywordsMissingFile(t *testing.T) {
	cfg := &Config{Keywords: KeywordsConfig{File: "nonexistent-keywords.yaml"}}
	if _, err := cfg.LoadKeywords(); err == nil {
		t.Error("Expected error for missing keywords file")
	}
}

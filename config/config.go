package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrNoKeywords               = errors.New("no keywords configured: set keywords.file or keywords.extra")
	ErrMissingJWTSecret         = errors.New("auth.jwt_secret is required when users are configured")
	ErrInvalidBackoffMultiplier = errors.New("retry.backoff_multiplier must be >= 1.0")
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Boamp     BoampConfig     `yaml:"boamp"`
	Documents DocumentsConfig `yaml:"documents"`
	Retry     RetryConfig     `yaml:"retry"`
	Columns   ColumnsConfig   `yaml:"columns"`
	Keywords  KeywordsConfig  `yaml:"keywords"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Users     []User          `yaml:"users"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BoampConfig points the fetcher at the notice listing API.
type BoampConfig struct {
	APIURL     string `yaml:"api_url"`
	PageSize   int    `yaml:"page_size"`
	MaxRecords int    `yaml:"max_records"`
	MaxOffset  int    `yaml:"max_offset"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// DocumentsConfig drives the PDF scanner.
type DocumentsConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	DelayMs     int    `yaml:"delay_ms"`
	LotWindow   int    `yaml:"lot_window"`
	VisitWindow int    `yaml:"visit_window"`
}

// RetryConfig bounds retries for the two network operations. The default
// max_attempts of 1 keeps the historical single-shot behavior.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"`
	InitialDelayMs    int     `yaml:"initial_delay_ms"`
	MaxDelayMs        int     `yaml:"max_delay_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`
}

// ColumnsConfig names the columns the pipeline keys on.
type ColumnsConfig struct {
	ID         string `yaml:"id"`
	Keyword    string `yaml:"keyword"`
	DocumentID string `yaml:"document_id"`
	Date       string `yaml:"date"`
}

type KeywordsConfig struct {
	File  string   `yaml:"file"`
	Extra []string `yaml:"extra"`
}

type ArchiveConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket"`
	UseSSL     bool   `yaml:"use_ssl"`
	ExpireDays int    `yaml:"expire_days"`
}

type StoreConfig struct {
	MaxRuns int `yaml:"max_runs"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Tenant   string `yaml:"tenant"`
}

var GlobalConfig *Config

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if cfg.Boamp.APIURL == "" {
		cfg.Boamp.APIURL = "https://boamp-datadila.opendatasoft.com/api/explore/v2.1/catalog/datasets/boamp/records"
	}
	if cfg.Boamp.PageSize == 0 {
		cfg.Boamp.PageSize = 100
	}
	if cfg.Boamp.MaxRecords == 0 {
		cfg.Boamp.MaxRecords = 5000
	}
	if cfg.Boamp.MaxOffset == 0 {
		cfg.Boamp.MaxOffset = 10000
	}
	if cfg.Boamp.TimeoutSec == 0 {
		cfg.Boamp.TimeoutSec = 30
	}
	if cfg.Documents.BaseURL == "" {
		cfg.Documents.BaseURL = "https://www.boamp.fr/telechargements/FILES/PDF"
	}
	if cfg.Documents.TimeoutSec == 0 {
		cfg.Documents.TimeoutSec = 30
	}
	if cfg.Documents.DelayMs == 0 {
		cfg.Documents.DelayMs = 500
	}
	if cfg.Documents.LotWindow == 0 {
		cfg.Documents.LotWindow = 1000
	}
	if cfg.Documents.VisitWindow == 0 {
		cfg.Documents.VisitWindow = 500
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.InitialDelayMs == 0 {
		cfg.Retry.InitialDelayMs = 500
	}
	if cfg.Retry.MaxDelayMs == 0 {
		cfg.Retry.MaxDelayMs = 10000
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = 2.0
	}
	if cfg.Columns.ID == "" {
		cfg.Columns.ID = "id"
	}
	if cfg.Columns.Keyword == "" {
		cfg.Columns.Keyword = "keyword"
	}
	if cfg.Columns.DocumentID == "" {
		cfg.Columns.DocumentID = "idweb"
	}
	if cfg.Columns.Date == "" {
		cfg.Columns.Date = "dateparution"
	}
	if cfg.Archive.ExpireDays == 0 {
		cfg.Archive.ExpireDays = 7
	}
	if cfg.Store.MaxRuns == 0 {
		cfg.Store.MaxRuns = 100
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// Validate checks the parts of the configuration that cannot be defaulted.
func (c *Config) Validate() error {
	if len(c.Users) > 0 && c.Auth.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	if c.Retry.BackoffMultiplier < 1.0 {
		return ErrInvalidBackoffMultiplier
	}
	if c.Keywords.File == "" && len(c.Keywords.Extra) == 0 {
		return ErrNoKeywords
	}
	return nil
}

// GetRetryDelay calculates exponential backoff delay for attempt number.
func (rc *RetryConfig) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delayMs := float64(rc.InitialDelayMs)
	for i := 1; i < attempt; i++ {
		delayMs *= rc.BackoffMultiplier
	}

	if int(delayMs) > rc.MaxDelayMs {
		delayMs = float64(rc.MaxDelayMs)
	}

	return time.Duration(int(delayMs)) * time.Millisecond
}

type keywordsFile struct {
	Keywords []string `yaml:"keywords"`
}

// LoadKeywords resolves the configured keyword list: file entries first,
// then inline extras, first occurrence wins, blanks dropped.
func (c *Config) LoadKeywords() ([]string, error) {
	var list []string
	if c.Keywords.File != "" {
		data, err := os.ReadFile(c.Keywords.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read keywords file: %w", err)
		}
		var kf keywordsFile
		if err := yaml.Unmarshal(data, &kf); err != nil {
			return nil, fmt.Errorf("failed to parse keywords file: %w", err)
		}
		list = append(list, kf.Keywords...)
	}
	list = append(list, c.Keywords.Extra...)

	seen := make(map[string]struct{}, len(list))
	keywords := make([]string, 0, len(list))
	for _, kw := range list {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		keywords = append(keywords, kw)
	}
	return keywords, nil
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}

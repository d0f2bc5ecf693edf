package config

import (
	"strings"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name: "empty base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = ""
			},
			wantErr: "base URL",
		},
		{
			name: "invalid base url",
			mutate: func(cfg *Config) {
				cfg.BaseURL = "http://"
			},
			wantErr: "base URL",
		},
		{
			name: "empty tag base url",
			mutate: func(cfg *Config) {
				cfg.TagBaseURL = ""
			},
			wantErr: "tag base URL",
		},
		{
			name: "empty id file",
			mutate: func(cfg *Config) {
				cfg.IDFile = ""
			},
			wantErr: "identifier file",
		},
		{
			name: "no sink",
			mutate: func(cfg *Config) {
				cfg.DatabaseURL = ""
				cfg.OutputFile = ""
			},
			wantErr: "database URL or output file",
		},
		{
			name: "zero workers",
			mutate: func(cfg *Config) {
				cfg.Workers = 0
			},
			wantErr: "workers",
		},
		{
			name: "negative timeout",
			mutate: func(cfg *Config) {
				cfg.Timeout = -1 * time.Second
			},
			wantErr: "timeout",
		},
		{
			name: "rotate max below min",
			mutate: func(cfg *Config) {
				cfg.RotateMin = 50
				cfg.RotateMax = 40
			},
			wantErr: "rotate max",
		},
		{
			name: "backoff above cap",
			mutate: func(cfg *Config) {
				cfg.RetryBackoff = time.Minute
				cfg.RetryBackoffMax = time.Second
			},
			wantErr: "retry backoff",
		},
		{
			name: "negative rate limit",
			mutate: func(cfg *Config) {
				cfg.RateLimit = -1
			},
			wantErr: "rate limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestEnvInt(t *testing.T) {
	t.Setenv("COLLECTOR_TEST_INT", "17")
	value, ok, err := EnvInt("COLLECTOR_TEST_INT")
	if err != nil || !ok || value != 17 {
		t.Fatalf("EnvInt = (%d, %v, %v), want (17, true, nil)", value, ok, err)
	}

	t.Setenv("COLLECTOR_TEST_INT", "seventeen")
	if _, _, err := EnvInt("COLLECTOR_TEST_INT"); err == nil {
		t.Fatalf("expected parse error for non-numeric value")
	}

	if _, ok, err := EnvInt("COLLECTOR_TEST_INT_UNSET"); ok || err != nil {
		t.Fatalf("unset variable should report ok=false, err=nil")
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("COLLECTOR_TEST_DUR", "90s")
	value, ok, err := EnvDuration("COLLECTOR_TEST_DUR")
	if err != nil || !ok || value != 90*time.Second {
		t.Fatalf("EnvDuration = (%v, %v, %v), want (90s, true, nil)", value, ok, err)
	}
}

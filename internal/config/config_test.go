package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("expected default port %s, got %s", DefaultPort, cfg.Port)
	}
	if cfg.MaxCoverage != DefaultMaxCoverage {
		t.Errorf("expected default max coverage, got %d", cfg.MaxCoverage)
	}
	if cfg.PolicyTermBlocks != DefaultPolicyTermBlocks {
		t.Errorf("expected default policy term, got %d", cfg.PolicyTermBlocks)
	}
	if cfg.BlockTime != DefaultBlockTime {
		t.Errorf("expected default block time, got %s", cfg.BlockTime)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_COVERAGE", "5000000")
	t.Setenv("POLICY_TERM_BLOCKS", "1000")
	t.Setenv("BLOCK_TIME", "30s")
	t.Setenv("ADMIN_SECRET", "hunter2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MaxCoverage != 5000000 {
		t.Errorf("expected max coverage 5000000, got %d", cfg.MaxCoverage)
	}
	if cfg.PolicyTermBlocks != 1000 {
		t.Errorf("expected term 1000, got %d", cfg.PolicyTermBlocks)
	}
	if cfg.BlockTime != 30*time.Second {
		t.Errorf("expected block time 30s, got %s", cfg.BlockTime)
	}
	if cfg.AdminSecret != "hunter2" {
		t.Errorf("unexpected admin secret %q", cfg.AdminSecret)
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{
		Env:              "development",
		MaxCoverage:      1,
		PolicyTermBlocks: 1,
		BlockTime:        time.Second,
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	cfg.MaxCoverage = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero max coverage")
	}

	cfg.MaxCoverage = 1
	cfg.Env = "production"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for production without admin secret")
	}
	cfg.AdminSecret = "s"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid production config, got %v", err)
	}
}

package config

import "testing"

func TestValidate_RejectsEmptyDatabaseURL(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestValidate_RejectsBadCron(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabaseURL = "postgres://localhost/test"
	cfg.SamplerCron = "not a cron expression"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid SAMPLER_CRON")
	}
}

func TestValidate_AcceptsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabaseURL = "postgres://localhost/test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}

func TestValidate_RejectsNonPositivePoolSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DatabaseURL = "postgres://localhost/test"
	cfg.PoolSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero POOL_SIZE")
	}
}

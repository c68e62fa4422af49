package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SlotMergeTolerance != time.Minute {
		t.Errorf("expected default merge tolerance 1m, got %s", cfg.SlotMergeTolerance)
	}
	if cfg.SlotGranularity != time.Minute {
		t.Errorf("expected default granularity 1m, got %s", cfg.SlotGranularity)
	}
	if cfg.SuggestWorkers != 8 {
		t.Errorf("expected default worker count 8, got %d", cfg.SuggestWorkers)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLOT_MERGE_TOLERANCE", "90s")
	t.Setenv("SUGGEST_WORKER_COUNT", "3")
	t.Setenv("USE_REDIS_LOCK", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://console.example.com, https://staff.example.com")

	cfg := Load()

	if cfg.SlotMergeTolerance != 90*time.Second {
		t.Errorf("expected 90s tolerance, got %s", cfg.SlotMergeTolerance)
	}
	if cfg.SuggestWorkers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.SuggestWorkers)
	}
	if !cfg.UseRedisLock {
		t.Error("expected redis lock enabled")
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://staff.example.com" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SUGGEST_WORKER_COUNT", "not-a-number")
	t.Setenv("SLOT_GRANULARITY", "soon")

	cfg := Load()

	if cfg.SuggestWorkers != 8 {
		t.Errorf("expected fallback worker count 8, got %d", cfg.SuggestWorkers)
	}
	if cfg.SlotGranularity != time.Minute {
		t.Errorf("expected fallback granularity 1m, got %s", cfg.SlotGranularity)
	}
}

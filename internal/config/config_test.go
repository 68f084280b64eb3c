package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "")
	t.Setenv("REMEDIATION_MIN_QUESTIONS", "")
	t.Setenv("DEFAULT_PASSING_SCORE", "")

	cfg := Load()
	if cfg.RateLimitBackend != "memory" {
		t.Fatalf("expected memory backend, got %q", cfg.RateLimitBackend)
	}
	if cfg.Exam.MinRemediationQuestions != 5 {
		t.Fatalf("expected 5 remediation questions, got %d", cfg.Exam.MinRemediationQuestions)
	}
	if cfg.Exam.DefaultPassingScore != 70 {
		t.Fatalf("expected passing score 70, got %v", cfg.Exam.DefaultPassingScore)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_BACKEND", "Redis")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "30")
	t.Setenv("EXAM_MAX_QUESTIONS", "not-a-number")
	t.Setenv("DEFAULT_PASSING_SCORE", "72.5")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if cfg.RateLimitBackend != "redis" {
		t.Fatalf("expected redis backend, got %q", cfg.RateLimitBackend)
	}
	if cfg.RateLimitWindow != 30*time.Second {
		t.Fatalf("expected 30s window, got %v", cfg.RateLimitWindow)
	}
	if cfg.Exam.MaxQuestions != 200 {
		t.Fatalf("invalid integer should fall back to default, got %d", cfg.Exam.MaxQuestions)
	}
	if cfg.Exam.DefaultPassingScore != 72.5 {
		t.Fatalf("expected 72.5, got %v", cfg.Exam.DefaultPassingScore)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
}

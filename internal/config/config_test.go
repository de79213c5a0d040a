package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadIncludesFusionDefaults(t *testing.T) {
	t.Setenv("FUSION_TOP_K", "")
	t.Setenv("FUSION_TIMEOUT_MS", "")
	t.Setenv("FUSION_RRF_K", "")
	t.Setenv("FUSION_ALGORITHM", "")
	t.Setenv("MAX_TOKENS_PER_SOURCE", "")

	cfg := Load()
	if cfg.FusionTopK != 20 {
		t.Fatalf("expected default top k 20, got %d", cfg.FusionTopK)
	}
	if cfg.FusionTimeoutMs != 2000 {
		t.Fatalf("expected default timeout 2000ms, got %d", cfg.FusionTimeoutMs)
	}
	if cfg.FusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %d", cfg.FusionRRFK)
	}
	if cfg.FusionAlgorithm != "rrf" {
		t.Fatalf("expected default algorithm rrf, got %q", cfg.FusionAlgorithm)
	}
	if cfg.MaxTokensPerSource != 2000 {
		t.Fatalf("expected default per-source budget 2000, got %d", cfg.MaxTokensPerSource)
	}
}

func TestLoadParsesFusionOverrides(t *testing.T) {
	t.Setenv("FUSION_ALGORITHM", "weighted")
	t.Setenv("FUSION_WEIGHT_SEMANTIC", "0.6")
	t.Setenv("FUSION_WEIGHT_KEYWORD", "0.25")
	t.Setenv("FUSION_WEIGHT_STRUCTURED", "0.15")
	t.Setenv("FUSION_RRF_K", "75")

	cfg := Load()
	if cfg.FusionAlgorithm != "weighted" {
		t.Fatalf("expected algorithm override, got %q", cfg.FusionAlgorithm)
	}
	if cfg.WeightSemantic != 0.6 || cfg.WeightKeyword != 0.25 || cfg.WeightStructured != 0.15 {
		t.Fatalf("unexpected weights: %v %v %v", cfg.WeightSemantic, cfg.WeightKeyword, cfg.WeightStructured)
	}
	if cfg.FusionRRFK != 75 {
		t.Fatalf("expected rrf k 75, got %d", cfg.FusionRRFK)
	}
}

func TestLoadFallsBackOnUnparseableValues(t *testing.T) {
	t.Setenv("FUSION_TOP_K", "not-a-number")
	t.Setenv("FUSION_WEIGHT_SEMANTIC", "half")
	t.Setenv("SOURCE_BREAKER_ENABLED", "nope")

	cfg := Load()
	if cfg.FusionTopK != 20 {
		t.Fatalf("expected fallback top k 20, got %d", cfg.FusionTopK)
	}
	if cfg.WeightSemantic != 0.5 {
		t.Fatalf("expected fallback semantic weight 0.5, got %v", cfg.WeightSemantic)
	}
	if !cfg.SourceBreakerEnabled {
		t.Fatalf("expected fallback breaker enabled")
	}
}

func TestLoadPolicyPatternsReadsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.yaml")
	content := "patterns:\n  - '\\b\\d{3}-\\d{2}-\\d{4}\\b'\n  - '(?i)secret'\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	patterns, err := LoadPolicyPatterns(path)
	if err != nil {
		t.Fatalf("LoadPolicyPatterns() error = %v", err)
	}
	if len(patterns) != 2 || patterns[1] != "(?i)secret" {
		t.Fatalf("unexpected patterns: %v", patterns)
	}
}

func TestLoadPolicyPatternsEmptyPathMeansNone(t *testing.T) {
	patterns, err := LoadPolicyPatterns("")
	if err != nil {
		t.Fatalf("LoadPolicyPatterns(\"\") error = %v", err)
	}
	if patterns != nil {
		t.Fatalf("expected no patterns, got %v", patterns)
	}
}

func TestLoadPolicyPatternsMissingFileFails(t *testing.T) {
	if _, err := LoadPolicyPatterns(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

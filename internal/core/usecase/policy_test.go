package usecase

import (
	"strings"
	"testing"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

func policyInput(text string) []domain.FusedResult {
	return []domain.FusedResult{
		{SearchResult: domain.SearchResult{ChunkID: "c1", Text: text, Title: "clean title"}},
	}
}

func TestPolicyRedactsEmailAndPhone(t *testing.T) {
	enforcer := NewPolicyEnforcer(PolicyRedact, nil)

	out, warning := enforcer.Apply(policyInput("reach me at jane.doe@example.com or +1 (415) 555-0134 today"))
	if warning != "" {
		t.Fatalf("unexpected warning: %s", warning)
	}
	if len(out) != 1 {
		t.Fatalf("redact mode must keep the chunk, got %d", len(out))
	}
	text := out[0].Text
	if strings.Contains(text, "example.com") || strings.Contains(text, "555") {
		t.Fatalf("sensitive spans survived redaction: %s", text)
	}
	if !strings.Contains(text, redactionPlaceholder) {
		t.Fatalf("expected placeholder in %q", text)
	}
}

func TestPolicyBlockDropsMatchingChunks(t *testing.T) {
	enforcer := NewPolicyEnforcer(PolicyBlock, nil)

	results := append(policyInput("contact admin@corp.example"), domain.FusedResult{
		SearchResult: domain.SearchResult{ChunkID: "c2", Text: "nothing sensitive here"},
	})
	out, _ := enforcer.Apply(results)
	if len(out) != 1 || out[0].ChunkID != "c2" {
		t.Fatalf("block mode should drop the matching chunk, got %+v", out)
	}
}

func TestPolicyOffPassesThrough(t *testing.T) {
	enforcer := NewPolicyEnforcer(PolicyOff, nil)
	in := policyInput("email me: x@y.example")
	out, warning := enforcer.Apply(in)
	if warning != "" || out[0].Text != in[0].Text {
		t.Fatalf("off mode must not touch text")
	}
}

func TestPolicyInvalidCustomPatternDegradesWithWarning(t *testing.T) {
	enforcer := NewPolicyEnforcer(PolicyRedact, []string{"([unclosed"})

	out, warning := enforcer.Apply(policyInput("plain transcript text"))
	if warning == "" {
		t.Fatalf("expected a warning for the invalid pattern")
	}
	if len(out) != 1 || out[0].Text != "plain transcript text" {
		t.Fatalf("pipeline must pass text through unmodified, got %+v", out)
	}
}

func TestPolicyCustomPatternApplied(t *testing.T) {
	enforcer := NewPolicyEnforcer(PolicyRedact, []string{`secret-\d+`})
	out, _ := enforcer.Apply(policyInput("token secret-42 leaked"))
	if strings.Contains(out[0].Text, "secret-42") {
		t.Fatalf("custom pattern not applied: %s", out[0].Text)
	}
}

func TestParsePolicyMode(t *testing.T) {
	if ParsePolicyMode("REDACT") != PolicyRedact {
		t.Fatalf("expected redact")
	}
	if ParsePolicyMode("block") != PolicyBlock {
		t.Fatalf("expected block")
	}
	if ParsePolicyMode("anything-else") != PolicyOff {
		t.Fatalf("unknown modes default to off")
	}
}

package usecase

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

type PolicyMode string

const (
	PolicyOff    PolicyMode = "off"
	PolicyRedact PolicyMode = "redact"
	PolicyBlock  PolicyMode = "block"
)

func ParsePolicyMode(s string) PolicyMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redact":
		return PolicyRedact
	case "block":
		return PolicyBlock
	default:
		return PolicyOff
	}
}

const redactionPlaceholder = "[REDACTED]"

var builtinPatterns = []*regexp.Regexp{
	// Email addresses.
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	// Phone numbers, international or separator-formatted.
	regexp.MustCompile(`\+?\d[\d\s().\-]{7,}\d`),
}

// PolicyEnforcer scans fused results for sensitive spans before they are
// handed downstream. It never fails the pipeline: a bad custom pattern
// degrades to pass-through with a warning recorded at construction time.
type PolicyEnforcer struct {
	mode     PolicyMode
	patterns []*regexp.Regexp
	warning  string
}

func NewPolicyEnforcer(mode PolicyMode, extraPatterns []string) *PolicyEnforcer {
	e := &PolicyEnforcer{
		mode:     mode,
		patterns: builtinPatterns,
	}

	var failed []string
	for _, raw := range extraPatterns {
		compiled, err := regexp.Compile(raw)
		if err != nil {
			failed = append(failed, raw)
			continue
		}
		e.patterns = append(e.patterns, compiled)
	}
	if len(failed) > 0 {
		e.warning = fmt.Sprintf("policy patterns skipped (invalid regexp): %s", strings.Join(failed, ", "))
	}
	return e
}

// Apply redacts or drops results according to the configured mode and returns
// the surviving set plus any standing warning.
func (e *PolicyEnforcer) Apply(results []domain.FusedResult) ([]domain.FusedResult, string) {
	if e == nil || e.mode == PolicyOff {
		return results, ""
	}

	out := make([]domain.FusedResult, 0, len(results))
	for _, r := range results {
		matched := false
		text := r.Text
		title := r.Title
		for _, pattern := range e.patterns {
			if pattern.MatchString(text) || pattern.MatchString(title) {
				matched = true
				if e.mode == PolicyRedact {
					text = pattern.ReplaceAllString(text, redactionPlaceholder)
					title = pattern.ReplaceAllString(title, redactionPlaceholder)
				}
			}
		}

		if matched && e.mode == PolicyBlock {
			continue
		}
		r.Text = text
		r.Title = title
		out = append(out, r)
	}
	return out, e.warning
}

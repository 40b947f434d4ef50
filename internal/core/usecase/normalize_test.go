package usecase

import (
	"strings"
	"testing"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

func TestNormalizeRangeSkipsConversion(t *testing.T) {
	n := NewTermNormalizer()

	cases := []string{
		"10-20 microns",
		"10 - 20 microns",
		"10 a 20 microns",
		"0.5 to 2.5 Pa.s",
	}
	for _, raw := range cases {
		term := n.Normalize(raw)
		if term.RuleApplied != domain.RuleRangeDetectedSkip {
			t.Fatalf("Normalize(%q) rule = %q, want range_detected_skip", raw, term.RuleApplied)
		}
		if strings.Contains(term.Normalized, "nm") || strings.Contains(term.Normalized, "mpa") {
			t.Fatalf("Normalize(%q) converted a range: %q", raw, term.Normalized)
		}
	}
}

func TestNormalizeMicronToNanometer(t *testing.T) {
	n := NewTermNormalizer()

	term := n.Normalize("0.4 microns")
	if term.RuleApplied != domain.RuleMicronToNm {
		t.Fatalf("rule = %q, want micron_to_nm", term.RuleApplied)
	}
	if !strings.Contains(term.Normalized, "400 nm") {
		t.Fatalf("normalized = %q, want to contain %q", term.Normalized, "400 nm")
	}
}

func TestNormalizeMicronSkipsWhenAlreadyNanometers(t *testing.T) {
	n := NewTermNormalizer()

	term := n.Normalize("400 nm particles")
	if term.RuleApplied != domain.RuleNone {
		t.Fatalf("rule = %q, want none", term.RuleApplied)
	}
}

func TestNormalizePascalSecondToMillipascal(t *testing.T) {
	n := NewTermNormalizer()

	term := n.Normalize("2.5 Pa.s")
	if term.RuleApplied != domain.RulePasToMpas {
		t.Fatalf("rule = %q, want pas_to_mpas", term.RuleApplied)
	}
	if !strings.Contains(term.Normalized, "2500 mpa.s") {
		t.Fatalf("normalized = %q, want to contain %q", term.Normalized, "2500 mpa.s")
	}
}

func TestNormalizePascalSecondSkipsWhenAlreadyMilli(t *testing.T) {
	n := NewTermNormalizer()

	term := n.Normalize("2500 mPa.s")
	if term.RuleApplied != domain.RuleNone {
		t.Fatalf("rule = %q, want none", term.RuleApplied)
	}
}

func TestNormalizeFoldsCaseAndDiacritics(t *testing.T) {
	n := NewTermNormalizer()

	term := n.Normalize("  Resistência à  Flexão ")
	if term.Normalized != "resistencia a flexao" {
		t.Fatalf("normalized = %q, want %q", term.Normalized, "resistencia a flexao")
	}
	if term.Original != "  Resistência à  Flexão " {
		t.Fatalf("original must be preserved verbatim, got %q", term.Original)
	}
}

func TestNormalizeCommaDecimal(t *testing.T) {
	n := NewTermNormalizer()

	term := n.Normalize("0,4 µm")
	if term.RuleApplied != domain.RuleMicronToNm {
		t.Fatalf("rule = %q, want micron_to_nm", term.RuleApplied)
	}
	if !strings.Contains(term.Normalized, "400 nm") {
		t.Fatalf("normalized = %q, want to contain %q", term.Normalized, "400 nm")
	}
}

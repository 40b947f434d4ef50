package usecase

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

type VerifierConfig struct {
	Tolerance       float64
	MaxUngrounded   int
	SmallIntExempt  int
	YearExemptLower int
	YearExemptUpper int
}

// normalize floors non-positive values to the defaults; zero counts as
// unset for every field here.
func (c VerifierConfig) normalize() VerifierConfig {
	out := c
	if out.Tolerance <= 0 {
		out.Tolerance = 0.5
	}
	if out.MaxUngrounded <= 0 {
		out.MaxUngrounded = 2
	}
	if out.SmallIntExempt <= 0 {
		out.SmallIntExempt = 10
	}
	if out.YearExemptLower <= 0 {
		out.YearExemptLower = 1900
	}
	if out.YearExemptUpper <= 0 {
		out.YearExemptUpper = 2100
	}
	return out
}

// NumericVerifier checks that every load-bearing number in a drafted
// answer is backed by a measurement in the evidence graph.
type NumericVerifier struct {
	cfg VerifierConfig
}

func NewNumericVerifier(cfg VerifierConfig) *NumericVerifier {
	return &NumericVerifier{cfg: cfg.normalize()}
}

var numericTokenPattern = regexp.MustCompile(`\d+(?:[.,]\d+)?`)

// Verify extracts numeric tokens from the draft and matches each
// against the valid values derived from graph measurements, exactly or
// within the tolerance. Citation markers, small integers and year-like
// tokens are exempt.
func (v *NumericVerifier) Verify(draft string, graph domain.EvidenceGraph) domain.VerificationResult {
	valid := validValues(graph)
	draft = stripCitationMarkers(draft)

	var ungrounded []string
	for _, token := range numericTokenPattern.FindAllString(draft, -1) {
		value, err := strconv.ParseFloat(strings.ReplaceAll(token, ",", "."), 64)
		if err != nil {
			continue
		}
		if v.exempt(token, value) {
			continue
		}
		if grounded(value, valid, v.cfg.Tolerance) {
			continue
		}
		ungrounded = append(ungrounded, token)
	}

	result := domain.VerificationResult{Verified: true}
	if len(ungrounded) > v.cfg.MaxUngrounded {
		examples := ungrounded
		if len(examples) > 3 {
			examples = examples[:3]
		}
		result.Verified = false
		result.Issues = append(result.Issues, fmt.Sprintf(
			"%d numeric token(s) not grounded in evidence, e.g. %s",
			len(ungrounded), strings.Join(examples, ", ")))
	}
	result.UngroundedTokens = ungrounded
	return result
}

func (v *NumericVerifier) exempt(token string, value float64) bool {
	if strings.ContainsAny(token, ".,") {
		return false
	}
	n := int(value)
	if n <= v.cfg.SmallIntExempt {
		return true
	}
	if len(token) == 4 && n >= v.cfg.YearExemptLower && n <= v.cfg.YearExemptUpper {
		return true
	}
	return false
}

func grounded(value float64, valid []float64, tolerance float64) bool {
	for _, want := range valid {
		if math.Abs(value-want) <= tolerance {
			return true
		}
	}
	return false
}

func validValues(graph domain.EvidenceGraph) []float64 {
	var out []float64
	for _, exp := range graph.Experiments {
		for _, variant := range exp.Variants {
			for _, m := range variant.Measurements {
				out = append(out, m.Value)
				if m.CanonicalValue != 0 && m.CanonicalValue != m.Value {
					out = append(out, m.CanonicalValue)
				}
			}
		}
	}
	return out
}

var citationMarkerPattern = regexp.MustCompile(`\[\d+\]`)

func stripCitationMarkers(text string) string {
	return citationMarkerPattern.ReplaceAllString(text, "")
}

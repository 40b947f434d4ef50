package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// unitRule is one entry of the ordered normalization table. Rules are
// evaluated in fixed precedence and at most one fires per term.
type unitRule struct {
	name    domain.NormalizationRule
	applies func(term string) bool
	apply   func(term string) string
}

type TermNormalizer struct {
	rules []unitRule
}

var (
	rangePattern  = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:-|–|\b(?:a|to)\b)\s*\d+(?:[.,]\d+)?`)
	micronPattern = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*(?:µm|μm|um|micr(?:on|ons|a|ometro|ometros))\b`)
	nmPattern     = regexp.MustCompile(`\bnm\b`)
	pasPattern    = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s*pa\s*[.·]?\s*s\b`)
)

func NewTermNormalizer() *TermNormalizer {
	return &TermNormalizer{
		rules: []unitRule{
			{
				// Ranges are never unit-converted: the conversion could
				// apply inconsistently across the two bounds.
				name:    domain.RuleRangeDetectedSkip,
				applies: func(term string) bool { return rangePattern.MatchString(term) },
				apply:   func(term string) string { return term },
			},
			{
				name: domain.RuleMicronToNm,
				applies: func(term string) bool {
					return micronPattern.MatchString(term) && !nmPattern.MatchString(term)
				},
				apply: func(term string) string {
					return convertFirstMatch(term, micronPattern, 1000, "nm")
				},
			},
			{
				name: domain.RulePasToMpas,
				applies: func(term string) bool {
					return pasPattern.MatchString(term) && !strings.Contains(term, "mpa")
				},
				apply: func(term string) string {
					return convertFirstMatch(term, pasPattern, 1000, "mpa.s")
				},
			},
		},
	}
}

func (n *TermNormalizer) Normalize(raw string) domain.Term {
	normalized := foldTerm(raw)

	for _, rule := range n.rules {
		if rule.applies(normalized) {
			return domain.Term{
				Original:    raw,
				Normalized:  rule.apply(normalized),
				RuleApplied: rule.name,
			}
		}
	}

	return domain.Term{
		Original:    raw,
		Normalized:  normalized,
		RuleApplied: domain.RuleNone,
	}
}

func convertFirstMatch(term string, pattern *regexp.Regexp, factor float64, unit string) string {
	loc := pattern.FindStringSubmatchIndex(term)
	if loc == nil {
		return term
	}
	value, err := parseDecimal(term[loc[2]:loc[3]])
	if err != nil {
		return term
	}
	converted := formatDecimal(value * factor)
	return term[:loc[0]] + converted + " " + unit + term[loc[1]:]
}

func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
}

// formatDecimal trims float artifacts so 0.4*1000 renders as "400".
func formatDecimal(v float64) string {
	rounded := math.Round(v*1e6) / 1e6
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// foldTerm lower-cases, strips diacritics, and collapses whitespace.
// Numeric comparisons elsewhere always use the folded form.
func foldTerm(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range s {
		if folded, ok := diacriticFold[r]; ok {
			r = folded
		}
		if r == ' ' || r == '\t' || r == '\n' {
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteRune(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

var diacriticFold = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

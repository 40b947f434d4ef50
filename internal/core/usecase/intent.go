package usecase

import (
	"context"
	"regexp"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// IntentClassifier detects query shape from bilingual (pt/en) keyword
// rules and estimates a complexity tier. Classification routes the
// pipeline; it never blocks it.
type IntentClassifier struct {
	normalizer *TermNormalizer
	resolver   *AliasResolver
	rules      []intentRule
}

type intentRule struct {
	name  string
	match func(q string) bool
	apply func(flags *domain.IntentFlags)
}

var (
	interpretivePhrase = regexp.MustCompile(`\bwhat (?:did|does|do) (?:this|that|these|the|it)\b|\bo que (?:isso|este|esse|esta|essa|o|a)\b`)
	interpretiveVerbs  = []string{
		"show", "showed", "shown", "teach", "taught", "imply", "implied", "implies",
		"demonstrate", "demonstrated", "demonstrates", "mean", "meant", "conclude", "concluded",
		"mostrou", "mostram", "ensinou", "ensina", "implicou", "implica",
		"demonstrou", "demonstra", "concluiu", "significou", "significa",
	}
	experimentContextWords = []string{
		"experiment", "experiments", "trial", "trials", "table", "tables",
		"spreadsheet", "sheet", "sheets", "run", "runs",
		"experimento", "experimentos", "ensaio", "ensaios", "tabela", "tabelas",
		"planilha", "planilhas", "aba", "abas",
	}
	deepAnalysisVerbs = []string{
		"analyze", "analyse", "explain", "detail", "interpret",
		"analise", "analisar", "explique", "explicar", "detalhe", "detalhar", "interprete",
	}
	deepAnalysisNouns = []string{
		"result", "results", "data", "measurement", "measurements", "finding", "findings",
		"resultado", "resultados", "dados", "medicao", "medicoes", "medida", "medidas",
	}
	tabularWords = []string{
		"spreadsheet", "sheet", "table", "row", "column", "cell", "tab",
		"planilha", "tabela", "linha", "coluna", "celula", "aba",
	}
	comparativeWords = []string{
		"compare", "comparison", "versus", "vs", "difference between", "better than", "worse than",
		"comparar", "compare", "comparacao", "diferenca entre", "melhor que", "pior que",
	}
)

func NewIntentClassifier(normalizer *TermNormalizer, resolver *AliasResolver) *IntentClassifier {
	c := &IntentClassifier{
		normalizer: normalizer,
		resolver:   resolver,
	}
	c.rules = []intentRule{
		{
			name:  "interpretive_phrase",
			match: func(q string) bool { return interpretivePhrase.MatchString(q) && containsAnyWord(q, interpretiveVerbs) },
			apply: func(f *domain.IntentFlags) { f.Interpretive = true },
		},
		{
			name: "interpretive_context",
			match: func(q string) bool {
				return containsAnyWord(q, experimentContextWords) &&
					containsAnyWord(q, deepAnalysisVerbs) &&
					containsAnyWord(q, deepAnalysisNouns)
			},
			apply: func(f *domain.IntentFlags) { f.Interpretive = true },
		},
		{
			name:  "tabular_lookup",
			match: func(q string) bool { return containsAnyWord(q, tabularWords) },
			apply: func(f *domain.IntentFlags) { f.TabularLookup = true },
		},
		{
			name:  "comparative",
			match: func(q string) bool { return containsAnyPhrase(q, comparativeWords) },
			apply: func(f *domain.IntentFlags) { f.Comparative = true },
		},
	}
	return c
}

// Classify normalizes and resolves recognized domain terms, then
// derives intent flags and a complexity tier.
func (c *IntentClassifier) Classify(ctx context.Context, query domain.Query) (domain.QueryClassification, error) {
	folded := foldTerm(query.Text)

	flags := domain.IntentFlags{}
	for _, rule := range c.rules {
		if rule.match(folded) {
			rule.apply(&flags)
		}
	}

	metrics, err := c.targetMetrics(ctx, query.Text)
	if err != nil {
		return domain.QueryClassification{}, err
	}

	return domain.QueryClassification{
		Intent:        flags,
		Complexity:    complexityTier(flags, len(metrics), len(query.History)),
		TargetMetrics: metrics,
	}, nil
}

// targetMetrics scans word n-grams of the query for catalog terms.
// Unresolved n-grams are not metrics; unresolved full terms pass
// through elsewhere, never invented here.
func (c *IntentClassifier) targetMetrics(ctx context.Context, queryText string) ([]string, error) {
	candidates := candidateTerms(queryText)
	if len(candidates) == 0 {
		return nil, nil
	}

	terms := make([]domain.Term, 0, len(candidates))
	for _, candidate := range candidates {
		terms = append(terms, c.normalizer.Normalize(candidate))
	}

	resolutions, err := c.resolver.ResolveAll(ctx, terms)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(resolutions))
	metrics := make([]string, 0, len(resolutions))
	for _, res := range resolutions {
		if res.Status != domain.ResolutionAccepted {
			continue
		}
		if _, dup := seen[res.CanonicalKey]; dup {
			continue
		}
		seen[res.CanonicalKey] = struct{}{}
		metrics = append(metrics, res.CanonicalKey)
	}
	return metrics, nil
}

// complexityTier is monotonic in interpretive intent, distinct target
// metric count, and conversation length.
func complexityTier(flags domain.IntentFlags, metricCount, historyLen int) domain.ComplexityTier {
	score := 0
	if flags.Interpretive {
		score += 2
	}
	if metricCount >= 2 {
		score++
	}
	if metricCount >= 4 {
		score++
	}
	if historyLen >= 2 {
		score++
	}
	if historyLen >= 6 {
		score++
	}

	switch {
	case score == 0:
		return domain.ComplexitySimple
	case score <= 2:
		return domain.ComplexityStandard
	default:
		return domain.ComplexityDeep
	}
}

var intentStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "in": {}, "on": {},
	"to": {}, "for": {}, "with": {}, "about": {}, "what": {}, "which": {}, "how": {},
	"did": {}, "does": {}, "do": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "it": {}, "its": {},
	"o": {}, "os": {}, "as": {}, "um": {}, "uma": {}, "de": {}, "da": {},
	"das": {}, "dos": {}, "em": {}, "no": {}, "na": {}, "que": {}, "qual": {},
	"como": {}, "sobre": {}, "e": {}, "ou": {}, "para": {}, "com": {}, "isso": {},
	"este": {}, "esse": {}, "esta": {}, "essa": {},
}

// candidateTerms yields word 1- to 3-grams worth checking against the
// catalog, stop words excluded from unigram candidates.
func candidateTerms(queryText string) []string {
	words := strings.Fields(foldTerm(stripPunctuation(queryText)))
	if len(words) == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	out := make([]string, 0, len(words)*3)
	add := func(term string) {
		if _, dup := seen[term]; dup {
			return
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}

	for i, w := range words {
		if _, stop := intentStopWords[w]; !stop && len(w) > 2 {
			add(w)
		}
		if i+2 <= len(words) {
			add(strings.Join(words[i:i+2], " "))
		}
		if i+3 <= len(words) {
			add(strings.Join(words[i:i+3], " "))
		}
	}
	return out
}

func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '?', '!', ';', ':', '(', ')', '[', ']', '{', '}', '"', '\'':
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsAnyWord(q string, words []string) bool {
	fields := strings.FieldsFunc(q, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	for _, w := range words {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}

func containsAnyPhrase(q string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(p, " ") {
			if strings.Contains(q, p) {
				return true
			}
			continue
		}
		if containsAnyWord(q, []string{p}) {
			return true
		}
	}
	return false
}

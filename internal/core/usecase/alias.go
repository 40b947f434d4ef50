package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
)

type AliasConfig struct {
	TrigramThreshold   float64
	EmbeddingThreshold float64
	AmbiguityDelta     float64
}

// normalize floors non-positive values to the defaults: a zero
// threshold would accept every candidate, so zero counts as unset here.
func (c AliasConfig) normalize() AliasConfig {
	out := c
	if out.TrigramThreshold <= 0 {
		out.TrigramThreshold = 0.40
	}
	if out.EmbeddingThreshold <= 0 {
		out.EmbeddingThreshold = 0.75
	}
	if out.AmbiguityDelta <= 0 {
		out.AmbiguityDelta = 0.05
	}
	return out
}

type AliasResolver struct {
	catalog  ports.CatalogProvider
	embedder ports.Embedder
	cache    ports.ResolutionCache
	cfg      AliasConfig
}

func NewAliasResolver(
	catalog ports.CatalogProvider,
	embedder ports.Embedder,
	cache ports.ResolutionCache,
	cfg AliasConfig,
) *AliasResolver {
	return &AliasResolver{
		catalog:  catalog,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg.normalize(),
	}
}

// Resolve maps a normalized term to a canonical catalog key. Methods are
// tried in order and short-circuit on the first confident hit; an
// ambiguous or unresolved term passes through unchanged downstream.
func (r *AliasResolver) Resolve(ctx context.Context, term domain.Term) (domain.Resolution, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(term.Normalized); ok {
			cached.Term = term
			return cached, nil
		}
	}

	entries, err := r.catalog.Catalog(ctx)
	if err != nil {
		return domain.Resolution{}, fmt.Errorf("load metric catalog: %w", err)
	}

	resolution := r.resolveAgainst(ctx, term, entries)
	if r.cache != nil && resolution.Status == domain.ResolutionAccepted {
		r.cache.Put(term.Normalized, resolution)
	}
	return resolution, nil
}

// ResolveAll resolves independent terms concurrently; order is preserved.
func (r *AliasResolver) ResolveAll(ctx context.Context, terms []domain.Term) ([]domain.Resolution, error) {
	if len(terms) == 0 {
		return nil, nil
	}

	resolutions := make([]domain.Resolution, len(terms))
	errs := make([]error, len(terms))

	var wg sync.WaitGroup
	for i, term := range terms {
		wg.Add(1)
		go func(i int, term domain.Term) {
			defer wg.Done()
			resolutions[i], errs[i] = r.Resolve(ctx, term)
		}(i, term)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return resolutions, nil
}

func (r *AliasResolver) resolveAgainst(ctx context.Context, term domain.Term, entries []domain.CatalogEntry) domain.Resolution {
	if exact, ok := exactMatch(term, entries); ok {
		return exact
	}

	trigram := r.trigramResolution(term, entries)
	if trigram.Status == domain.ResolutionAccepted {
		return trigram
	}

	// Embedding fallback only when trigram failed or tied.
	embedded, err := r.embeddingResolution(ctx, term, entries)
	if err != nil {
		slog.Warn("alias_embedding_fallback_failed", "term", term.Normalized, "error", err)
	} else if embedded.Status == domain.ResolutionAccepted || embedded.Status == domain.ResolutionAmbiguous {
		return embedded
	}

	if trigram.Status == domain.ResolutionAmbiguous {
		return trigram
	}
	return domain.Resolution{
		Term:   term,
		Status: domain.ResolutionUnresolved,
		Reason: "no catalog entry above acceptance threshold",
	}
}

func exactMatch(term domain.Term, entries []domain.CatalogEntry) (domain.Resolution, bool) {
	for _, entry := range entries {
		spellings := append([]string{entry.CanonicalKey}, entry.Aliases...)
		for _, spelling := range spellings {
			if strings.EqualFold(spelling, term.Normalized) {
				return domain.Resolution{
					Term:         term,
					CanonicalKey: entry.CanonicalKey,
					Status:       domain.ResolutionAccepted,
					Candidates: []domain.AliasCandidate{{
						CanonicalKey: entry.CanonicalKey,
						Alias:        spelling,
						Score:        1.0,
						Method:       domain.MatchExact,
						Accepted:     true,
					}},
				}, true
			}
		}
	}
	return domain.Resolution{}, false
}

func (r *AliasResolver) trigramResolution(term domain.Term, entries []domain.CatalogEntry) domain.Resolution {
	candidates := scoreCandidates(entries, func(spelling string) float64 {
		return trigramSimilarity(term.Normalized, spelling)
	}, domain.MatchTrigram)
	return r.gateCandidates(term, candidates, r.cfg.TrigramThreshold)
}

func (r *AliasResolver) embeddingResolution(ctx context.Context, term domain.Term, entries []domain.CatalogEntry) (domain.Resolution, error) {
	if r.embedder == nil {
		return domain.Resolution{Term: term, Status: domain.ResolutionUnresolved}, nil
	}

	spellings := make([]string, 0, len(entries)*2)
	owners := make([]string, 0, len(entries)*2)
	for _, entry := range entries {
		for _, spelling := range append([]string{entry.CanonicalKey}, entry.Aliases...) {
			spellings = append(spellings, spelling)
			owners = append(owners, entry.CanonicalKey)
		}
	}
	if len(spellings) == 0 {
		return domain.Resolution{Term: term, Status: domain.ResolutionUnresolved}, nil
	}

	vectors, err := r.embedder.Embed(ctx, append([]string{term.Normalized}, spellings...))
	if err != nil {
		return domain.Resolution{}, err
	}
	if len(vectors) != len(spellings)+1 {
		return domain.Resolution{}, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(spellings)+1)
	}

	queryVec := vectors[0]
	candidates := make([]domain.AliasCandidate, 0, len(spellings))
	for i, spelling := range spellings {
		candidates = append(candidates, domain.AliasCandidate{
			CanonicalKey: owners[i],
			Alias:        spelling,
			Score:        cosineSimilarity(queryVec, vectors[i+1]),
			Method:       domain.MatchEmbedding,
		})
	}
	sortCandidates(candidates)
	return r.gateCandidates(term, candidates, r.cfg.EmbeddingThreshold), nil
}

// gateCandidates applies the acceptance threshold and the ambiguity
// delta: a margin below the delta must block silent misresolution.
func (r *AliasResolver) gateCandidates(term domain.Term, candidates []domain.AliasCandidate, threshold float64) domain.Resolution {
	if len(candidates) == 0 {
		return domain.Resolution{Term: term, Status: domain.ResolutionUnresolved}
	}

	best := candidates[0]
	secondBest := 0.0
	for _, c := range candidates[1:] {
		if c.CanonicalKey != best.CanonicalKey {
			secondBest = c.Score
			break
		}
	}

	keep := candidates
	if len(keep) > 5 {
		keep = keep[:5]
	}

	switch ambiguityGate(best.Score, secondBest, threshold, r.cfg.AmbiguityDelta) {
	case gateAccept:
		best.Accepted = true
		keep = append([]domain.AliasCandidate{best}, keep[1:]...)
		return domain.Resolution{
			Term:         term,
			CanonicalKey: best.CanonicalKey,
			Status:       domain.ResolutionAccepted,
			Candidates:   keep,
		}
	case gateAmbiguous:
		return domain.Resolution{
			Term:       term,
			Status:     domain.ResolutionAmbiguous,
			Candidates: keep,
			Reason: fmt.Sprintf("ambiguous between %q (%.2f) and next candidate (%.2f)",
				best.CanonicalKey, best.Score, secondBest),
		}
	default:
		return domain.Resolution{
			Term:       term,
			Status:     domain.ResolutionUnresolved,
			Candidates: keep,
			Reason:     fmt.Sprintf("best score %.2f below threshold %.2f", best.Score, threshold),
		}
	}
}

type gateOutcome int

const (
	gateReject gateOutcome = iota
	gateAccept
	gateAmbiguous
)

// ambiguityGate decides accept/ambiguous/reject from the best and
// second-best candidate scores.
func ambiguityGate(best, secondBest, threshold, delta float64) gateOutcome {
	if best < threshold {
		return gateReject
	}
	if best-secondBest < delta {
		return gateAmbiguous
	}
	return gateAccept
}

func scoreCandidates(entries []domain.CatalogEntry, score func(string) float64, method domain.MatchMethod) []domain.AliasCandidate {
	candidates := make([]domain.AliasCandidate, 0, len(entries)*2)
	for _, entry := range entries {
		for _, spelling := range append([]string{entry.CanonicalKey}, entry.Aliases...) {
			candidates = append(candidates, domain.AliasCandidate{
				CanonicalKey: entry.CanonicalKey,
				Alias:        spelling,
				Score:        score(spelling),
				Method:       method,
			})
		}
	}
	sortCandidates(candidates)
	return candidates
}

func sortCandidates(candidates []domain.AliasCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].CanonicalKey != candidates[j].CanonicalKey {
			return candidates[i].CanonicalKey < candidates[j].CanonicalKey
		}
		return candidates[i].Alias < candidates[j].Alias
	})
}

// trigramSimilarity is the Dice coefficient over character trigrams:
// 2·|shared| / (|trigrams(a)| + |trigrams(b)|).
func trigramSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ta))
	for _, t := range ta {
		counts[t]++
	}
	shared := 0
	for _, t := range tb {
		if counts[t] > 0 {
			counts[t]--
			shared++
		}
	}
	return 2 * float64(shared) / float64(len(ta)+len(tb))
}

func trigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 3 {
		return nil
	}
	out := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		out = append(out, string(runes[i:i+3]))
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// ResolutionCacheMap is the default insert-if-absent cache; races cost
// at most a redundant recompute, never a wrong answer.
type ResolutionCacheMap struct {
	mu      sync.RWMutex
	entries map[string]domain.Resolution
}

func NewResolutionCacheMap() *ResolutionCacheMap {
	return &ResolutionCacheMap{entries: make(map[string]domain.Resolution)}
}

func (c *ResolutionCacheMap) Get(normalizedTerm string) (domain.Resolution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	resolution, ok := c.entries[normalizedTerm]
	return resolution, ok
}

func (c *ResolutionCacheMap) Put(normalizedTerm string, resolution domain.Resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[normalizedTerm]; exists {
		return
	}
	c.entries[normalizedTerm] = resolution
}

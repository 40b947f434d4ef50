package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

type catalogFake struct {
	entries []domain.CatalogEntry
	err     error
	calls   int
}

func (f *catalogFake) Catalog(context.Context) ([]domain.CatalogEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.entries, nil
}

type embedderFake struct {
	vectors map[string][]float32
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := f.vectors[text]
		if !ok {
			vec = []float32{0, 0, 1}
		}
		out[i] = vec
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func resinCatalog() []domain.CatalogEntry {
	return []domain.CatalogEntry{
		{CanonicalKey: "flexural_strength", Aliases: []string{"resistencia a flexao", "flexural resistance"}},
		{CanonicalKey: "viscosity", Aliases: []string{"viscosidade"}},
		{CanonicalKey: "bis-gma", Aliases: []string{"bisphenol a-glycidyl methacrylate"}},
		{CanonicalKey: "tegdma", Aliases: []string{"triethylene glycol dimethacrylate"}},
	}
}

func TestTrigramSimilarityProperties(t *testing.T) {
	if got := trigramSimilarity("flexural", "flexural"); got != 1.0 {
		t.Fatalf("identical strings similarity = %v, want 1.0", got)
	}
	ab := trigramSimilarity("bis-gma", "bisgma")
	ba := trigramSimilarity("bisgma", "bis-gma")
	if ab != ba {
		t.Fatalf("similarity not symmetric: %v vs %v", ab, ba)
	}
	if ab <= 0.4 {
		t.Fatalf("trigramSimilarity(bis-gma, bisgma) = %v, want > 0.4", ab)
	}
	if got := trigramSimilarity("tegdma", "vitality"); got >= 0.3 {
		t.Fatalf("trigramSimilarity(tegdma, vitality) = %v, want < 0.3", got)
	}
}

func TestAmbiguityGate(t *testing.T) {
	if got := ambiguityGate(0.82, 0.79, 0.4, 0.05); got != gateAmbiguous {
		t.Fatalf("gate(0.82, 0.79) = %v, want ambiguous", got)
	}
	if got := ambiguityGate(0.85, 0.60, 0.4, 0.05); got != gateAccept {
		t.Fatalf("gate(0.85, 0.60) = %v, want accept", got)
	}
	if got := ambiguityGate(0.35, 0.10, 0.4, 0.05); got != gateReject {
		t.Fatalf("gate(0.35, 0.10) = %v, want reject", got)
	}
}

func TestResolveExactMatchIsImmediate(t *testing.T) {
	catalog := &catalogFake{entries: resinCatalog()}
	r := NewAliasResolver(catalog, nil, NewResolutionCacheMap(), AliasConfig{})

	res, err := r.Resolve(context.Background(), domain.Term{Original: "Viscosidade", Normalized: "viscosidade"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Status != domain.ResolutionAccepted || res.CanonicalKey != "viscosity" {
		t.Fatalf("resolution = %+v, want accepted viscosity", res)
	}
	if res.Candidates[0].Method != domain.MatchExact || res.Candidates[0].Score != 1.0 {
		t.Fatalf("candidate = %+v, want exact with score 1.0", res.Candidates[0])
	}
}

func TestResolveTrigramMisspelling(t *testing.T) {
	catalog := &catalogFake{entries: resinCatalog()}
	r := NewAliasResolver(catalog, nil, NewResolutionCacheMap(), AliasConfig{})

	res, err := r.Resolve(context.Background(), domain.Term{Original: "bisgma", Normalized: "bisgma"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Status != domain.ResolutionAccepted || res.CanonicalKey != "bis-gma" {
		t.Fatalf("resolution = %+v, want accepted bis-gma", res)
	}
	if res.Candidates[0].Method != domain.MatchTrigram {
		t.Fatalf("method = %q, want trigram", res.Candidates[0].Method)
	}
}

func TestResolveUnresolvedPassesThrough(t *testing.T) {
	catalog := &catalogFake{entries: resinCatalog()}
	r := NewAliasResolver(catalog, nil, NewResolutionCacheMap(), AliasConfig{})

	term := domain.Term{Original: "zzqq", Normalized: "zzqq"}
	res, err := r.Resolve(context.Background(), term)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Status != domain.ResolutionUnresolved {
		t.Fatalf("status = %q, want unresolved", res.Status)
	}
	if res.EffectiveKey() != "zzqq" {
		t.Fatalf("EffectiveKey() = %q, want passthrough %q", res.EffectiveKey(), "zzqq")
	}
}

func TestResolveEmbeddingFallback(t *testing.T) {
	catalog := &catalogFake{entries: []domain.CatalogEntry{
		{CanonicalKey: "cure_depth", Aliases: []string{"profundidade de cura"}},
		{CanonicalKey: "shrinkage", Aliases: []string{"contracao"}},
	}}
	embedder := &embedderFake{vectors: map[string][]float32{
		"depth of polymerization": {1, 0, 0},
		"cure_depth":              {0.95, 0.05, 0},
		"profundidade de cura":    {0.9, 0.1, 0},
		"shrinkage":               {0, 1, 0},
		"contracao":               {0, 1, 0},
	}}
	r := NewAliasResolver(catalog, embedder, NewResolutionCacheMap(), AliasConfig{})

	res, err := r.Resolve(context.Background(), domain.Term{Normalized: "depth of polymerization"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Status != domain.ResolutionAccepted || res.CanonicalKey != "cure_depth" {
		t.Fatalf("resolution = %+v, want accepted cure_depth via embedding", res)
	}
	if res.Candidates[0].Method != domain.MatchEmbedding {
		t.Fatalf("method = %q, want embedding", res.Candidates[0].Method)
	}
}

func TestResolveEmbeddingErrorLeavesUnresolved(t *testing.T) {
	catalog := &catalogFake{entries: resinCatalog()}
	embedder := &embedderFake{err: errors.New("embedding service down")}
	r := NewAliasResolver(catalog, embedder, NewResolutionCacheMap(), AliasConfig{})

	res, err := r.Resolve(context.Background(), domain.Term{Normalized: "zzqq"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if res.Status != domain.ResolutionUnresolved {
		t.Fatalf("status = %q, want unresolved when fallback fails", res.Status)
	}
}

func TestResolveCacheIdempotence(t *testing.T) {
	catalog := &catalogFake{entries: resinCatalog()}
	cache := NewResolutionCacheMap()
	r := NewAliasResolver(catalog, nil, cache, AliasConfig{})

	term := domain.Term{Normalized: "bisgma"}
	first, err := r.Resolve(context.Background(), term)
	if err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	second, err := r.Resolve(context.Background(), term)
	if err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}
	if first.CanonicalKey != second.CanonicalKey {
		t.Fatalf("cache not idempotent: %q vs %q", first.CanonicalKey, second.CanonicalKey)
	}
	if catalog.calls != 1 {
		t.Fatalf("catalog scanned %d times, want 1 (second hit served from cache)", catalog.calls)
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	catalog := &catalogFake{entries: resinCatalog()}
	r := NewAliasResolver(catalog, nil, NewResolutionCacheMap(), AliasConfig{})

	terms := []domain.Term{
		{Normalized: "viscosidade"},
		{Normalized: "zzqq"},
		{Normalized: "flexural resistance"},
	}
	resolutions, err := r.ResolveAll(context.Background(), terms)
	if err != nil {
		t.Fatalf("ResolveAll() error = %v", err)
	}
	if len(resolutions) != 3 {
		t.Fatalf("got %d resolutions, want 3", len(resolutions))
	}
	if resolutions[0].CanonicalKey != "viscosity" {
		t.Fatalf("resolutions[0] = %+v, want viscosity", resolutions[0])
	}
	if resolutions[1].Status != domain.ResolutionUnresolved {
		t.Fatalf("resolutions[1] = %+v, want unresolved", resolutions[1])
	}
	if resolutions[2].CanonicalKey != "flexural_strength" {
		t.Fatalf("resolutions[2] = %+v, want flexural_strength", resolutions[2])
	}
}

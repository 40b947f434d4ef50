package usecase

import (
	"context"
	"testing"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

func newTestClassifier(entries []domain.CatalogEntry) *IntentClassifier {
	resolver := NewAliasResolver(&catalogFake{entries: entries}, nil, NewResolutionCacheMap(), AliasConfig{})
	return NewIntentClassifier(NewTermNormalizer(), resolver)
}

func TestClassifyInterpretiveQuery(t *testing.T) {
	c := newTestClassifier(resinCatalog())

	cls, err := c.Classify(context.Background(), domain.Query{
		Text: "what did this experiment demonstrate about flexural strength?",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !cls.Intent.Interpretive {
		t.Fatalf("expected interpretive intent, got %+v", cls.Intent)
	}
}

func TestClassifyConceptualQueryIsNotInterpretive(t *testing.T) {
	c := newTestClassifier(resinCatalog())

	cls, err := c.Classify(context.Background(), domain.Query{
		Text: "what causes yellowing over time?",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if cls.Intent.Interpretive {
		t.Fatalf("conceptual query misclassified as interpretive: %+v", cls.Intent)
	}
}

func TestClassifyInterpretivePortuguese(t *testing.T) {
	c := newTestClassifier(resinCatalog())

	cls, err := c.Classify(context.Background(), domain.Query{
		Text: "O que esse ensaio mostrou sobre a viscosidade?",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !cls.Intent.Interpretive {
		t.Fatalf("expected interpretive intent for pt query, got %+v", cls.Intent)
	}
}

func TestClassifyTabularAndComparative(t *testing.T) {
	c := newTestClassifier(resinCatalog())

	cls, err := c.Classify(context.Background(), domain.Query{
		Text: "compare a viscosidade na planilha de ensaios",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !cls.Intent.TabularLookup {
		t.Fatalf("expected tabular intent, got %+v", cls.Intent)
	}
	if !cls.Intent.Comparative {
		t.Fatalf("expected comparative intent, got %+v", cls.Intent)
	}
}

func TestClassifyExtractsTargetMetrics(t *testing.T) {
	c := newTestClassifier(resinCatalog())

	cls, err := c.Classify(context.Background(), domain.Query{
		Text: "qual a viscosidade e a resistencia a flexao do lote 12?",
	})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	want := map[string]bool{"viscosity": false, "flexural_strength": false}
	for _, m := range cls.TargetMetrics {
		if _, ok := want[m]; ok {
			want[m] = true
		}
	}
	for key, found := range want {
		if !found {
			t.Fatalf("target metric %q not extracted, got %v", key, cls.TargetMetrics)
		}
	}
}

func TestComplexityTierMonotonic(t *testing.T) {
	ider := domain.IntentFlags{Interpretive: true}
	plain := domain.IntentFlags{}

	if got := complexityTier(plain, 0, 0); got != domain.ComplexitySimple {
		t.Fatalf("tier(plain, 0 metrics, no history) = %q, want simple", got)
	}
	if got := complexityTier(ider, 0, 0); got != domain.ComplexityStandard {
		t.Fatalf("tier(ider) = %q, want standard", got)
	}
	if got := complexityTier(ider, 2, 2); got != domain.ComplexityDeep {
		t.Fatalf("tier(ider, 2 metrics, history) = %q, want deep", got)
	}
	if got := complexityTier(plain, 4, 6); got != domain.ComplexityDeep {
		t.Fatalf("tier(plain, 4 metrics, long history) = %q, want deep", got)
	}
}

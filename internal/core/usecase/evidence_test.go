package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

type evidenceStoreFake struct {
	experiments  []domain.Experiment
	variants     []domain.Variant
	measurements []domain.Measurement
	conditions   []domain.Condition
	insights     []domain.Insight
	catalog      []domain.CatalogEntry

	experimentsErr error
}

func (f *evidenceStoreFake) ExperimentsByMetricKeys(_ context.Context, _, _ []string) ([]domain.Experiment, error) {
	return f.experiments, f.experimentsErr
}

func (f *evidenceStoreFake) VariantsByExperimentIDs(_ context.Context, _ []string) ([]domain.Variant, error) {
	return f.variants, nil
}

func (f *evidenceStoreFake) MeasurementsByVariantIDs(_ context.Context, _ []string) ([]domain.Measurement, error) {
	return f.measurements, nil
}

func (f *evidenceStoreFake) ConditionsByVariantIDs(_ context.Context, _ []string) ([]domain.Condition, error) {
	return f.conditions, nil
}

func (f *evidenceStoreFake) InsightsByMetricKeys(_ context.Context, _, _ []string) ([]domain.Insight, error) {
	return f.insights, nil
}

func (f *evidenceStoreFake) MetricCatalog(_ context.Context) ([]domain.CatalogEntry, error) {
	return f.catalog, nil
}

func TestGraphBuilderAssemblesLevels(t *testing.T) {
	store := &evidenceStoreFake{
		experiments: []domain.Experiment{
			{ID: "exp-1", ProjectID: "p1", DocumentID: "doc-1", Title: "Flexural study", EvidenceDate: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "exp-2", ProjectID: "p1", DocumentID: "doc-2", Title: "Viscosity study", EvidenceDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
		variants: []domain.Variant{
			{ID: "var-1", ExperimentID: "exp-1", Name: "10% TEGDMA"},
			{ID: "var-2", ExperimentID: "exp-2", Name: "reference"},
		},
		measurements: []domain.Measurement{
			{VariantID: "var-1", MetricKey: "flexural_strength", Value: 131.5, Unit: "MPa", SourceExcerpt: "mean flexural strength of 131.5 MPa"},
			{VariantID: "var-2", MetricKey: "viscosity", Value: 2500, Unit: "mPa.s", SourceExcerpt: "viscosity measured at 2500 mPa.s"},
		},
		conditions: []domain.Condition{
			{VariantID: "var-1", Key: "cure_time", Value: "20s"},
		},
		insights: []domain.Insight{
			{ID: "ins-1", DocumentID: "doc-1", MetricKey: "flexural_strength", Text: "strength improves", Verified: true},
		},
	}
	b := NewGraphBuilder(store)

	graph, err := b.Build(context.Background(), []string{"p1"}, []string{"flexural_strength", "viscosity"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(graph.Experiments) != 2 {
		t.Fatalf("expected 2 experiments, got %d", len(graph.Experiments))
	}
	if graph.Experiments[0].ID != "exp-2" {
		t.Fatalf("expected newest experiment first, got %s", graph.Experiments[0].ID)
	}
	if graph.MeasurementCount() != 2 {
		t.Fatalf("expected 2 measurements, got %d", graph.MeasurementCount())
	}
	var flexural domain.Experiment
	for _, exp := range graph.Experiments {
		if exp.ID == "exp-1" {
			flexural = exp
		}
	}
	if len(flexural.Variants) != 1 || len(flexural.Variants[0].Conditions) != 1 {
		t.Fatalf("conditions not attached: %+v", flexural.Variants)
	}
	if len(graph.Insights) != 1 || !graph.Insights[0].Verified {
		t.Fatalf("insights not folded in: %+v", graph.Insights)
	}
}

func TestGraphBuilderDropsUnverifiableMeasurements(t *testing.T) {
	store := &evidenceStoreFake{
		experiments: []domain.Experiment{{ID: "exp-1", DocumentID: "doc-1"}},
		variants:    []domain.Variant{{ID: "var-1", ExperimentID: "exp-1"}},
		measurements: []domain.Measurement{
			{VariantID: "var-1", MetricKey: "hardness", Value: 82.3, SourceExcerpt: "hardness around eighty"},
			{VariantID: "var-1", MetricKey: "hardness", Value: 82.3, SourceExcerpt: "Shore D de 82,3"},
		},
	}
	b := NewGraphBuilder(store)

	graph, err := b.Build(context.Background(), nil, []string{"hardness"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if graph.MeasurementCount() != 1 {
		t.Fatalf("expected unverifiable measurement dropped, got %d", graph.MeasurementCount())
	}
	if len(graph.Diagnostics) == 0 || !strings.Contains(graph.Diagnostics[0], "dropped 1") {
		t.Fatalf("expected drop diagnostic, got %v", graph.Diagnostics)
	}
}

func TestGraphBuilderEmptyMetricsSkipsLookup(t *testing.T) {
	b := NewGraphBuilder(&evidenceStoreFake{experimentsErr: errors.New("must not be called")})

	graph, err := b.Build(context.Background(), []string{"p1"}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !graph.Empty() {
		t.Fatalf("expected empty graph")
	}
	if len(graph.Diagnostics) != 1 {
		t.Fatalf("expected skip diagnostic, got %v", graph.Diagnostics)
	}
}

func TestGraphBuilderNoMatchesDiagnostic(t *testing.T) {
	b := NewGraphBuilder(&evidenceStoreFake{})

	graph, err := b.Build(context.Background(), []string{"p1"}, []string{"cure_depth"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !graph.Empty() || len(graph.Diagnostics) != 1 {
		t.Fatalf("expected empty graph with diagnostic, got %+v", graph)
	}
}

package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
)

// GraphBuilder assembles the per-query evidence graph one level at a
// time: experiments, then variants keyed by experiment id, then
// measurements and conditions keyed by variant id.
type GraphBuilder struct {
	store ports.EvidenceStore
}

func NewGraphBuilder(store ports.EvidenceStore) *GraphBuilder {
	return &GraphBuilder{store: store}
}

// Build loads every experiment touching the resolved metric keys within
// the authorized projects and attaches its variants, measurements and
// conditions. Measurements whose excerpt does not literally contain the
// measured value are dropped here so nothing downstream can cite them.
func (b *GraphBuilder) Build(ctx context.Context, projectIDs, metricKeys []string) (domain.EvidenceGraph, error) {
	graph := domain.EvidenceGraph{}
	if len(metricKeys) == 0 {
		graph.Diagnostics = append(graph.Diagnostics, "no resolved metrics, evidence lookup skipped")
		return graph, nil
	}

	experiments, err := b.store.ExperimentsByMetricKeys(ctx, projectIDs, metricKeys)
	if err != nil {
		return graph, fmt.Errorf("load experiments: %w", err)
	}

	insights, err := b.store.InsightsByMetricKeys(ctx, projectIDs, metricKeys)
	if err != nil {
		return graph, fmt.Errorf("load insights: %w", err)
	}
	graph.Insights = insights

	if len(experiments) == 0 {
		if len(insights) == 0 {
			graph.Diagnostics = append(graph.Diagnostics, "no experiments or insights matched the resolved metrics")
		}
		return graph, nil
	}

	experimentIDs := make([]string, 0, len(experiments))
	for _, exp := range experiments {
		experimentIDs = append(experimentIDs, exp.ID)
	}

	variants, err := b.store.VariantsByExperimentIDs(ctx, experimentIDs)
	if err != nil {
		return graph, fmt.Errorf("load variants: %w", err)
	}

	variantIDs := make([]string, 0, len(variants))
	for _, v := range variants {
		variantIDs = append(variantIDs, v.ID)
	}

	var measurements []domain.Measurement
	var conditions []domain.Condition
	if len(variantIDs) > 0 {
		measurements, err = b.store.MeasurementsByVariantIDs(ctx, variantIDs)
		if err != nil {
			return graph, fmt.Errorf("load measurements: %w", err)
		}
		conditions, err = b.store.ConditionsByVariantIDs(ctx, variantIDs)
		if err != nil {
			return graph, fmt.Errorf("load conditions: %w", err)
		}
	}

	measurementsByVariant := make(map[string][]domain.Measurement, len(variantIDs))
	dropped := 0
	for _, m := range measurements {
		if !m.HasVerifiableExcerpt() {
			dropped++
			continue
		}
		measurementsByVariant[m.VariantID] = append(measurementsByVariant[m.VariantID], m)
	}
	if dropped > 0 {
		graph.Diagnostics = append(graph.Diagnostics,
			fmt.Sprintf("dropped %d measurement(s) without a verifiable source excerpt", dropped))
	}

	conditionsByVariant := make(map[string][]domain.Condition, len(variantIDs))
	for _, c := range conditions {
		conditionsByVariant[c.VariantID] = append(conditionsByVariant[c.VariantID], c)
	}

	variantsByExperiment := make(map[string][]domain.Variant, len(experiments))
	for _, v := range variants {
		v.Measurements = measurementsByVariant[v.ID]
		v.Conditions = conditionsByVariant[v.ID]
		variantsByExperiment[v.ExperimentID] = append(variantsByExperiment[v.ExperimentID], v)
	}

	for i := range experiments {
		experiments[i].Variants = variantsByExperiment[experiments[i].ID]
	}
	sort.SliceStable(experiments, func(i, j int) bool {
		if !experiments[i].EvidenceDate.Equal(experiments[j].EvidenceDate) {
			return experiments[i].EvidenceDate.After(experiments[j].EvidenceDate)
		}
		return experiments[i].ID < experiments[j].ID
	})
	graph.Experiments = experiments
	return graph, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// EvidenceRepository reads the structured experimental records written
// by the extraction pipeline. Each query covers one level of the
// experiment tree, keyed by parent ids.
type EvidenceRepository struct {
	db *sql.DB
}

func NewEvidenceRepository(db *sql.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082902)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS experiments (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	title TEXT NOT NULL,
	objective TEXT,
	evidence_date TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS variants (
	id TEXT PRIMARY KEY,
	experiment_id TEXT NOT NULL REFERENCES experiments(id),
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS measurements (
	id TEXT PRIMARY KEY,
	variant_id TEXT NOT NULL REFERENCES variants(id),
	metric_key TEXT NOT NULL,
	raw_name TEXT NOT NULL,
	value DOUBLE PRECISION NOT NULL,
	unit TEXT NOT NULL,
	canonical_value DOUBLE PRECISION NOT NULL DEFAULT 0,
	canonical_unit TEXT NOT NULL DEFAULT '',
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_excerpt TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conditions (
	id TEXT PRIMARY KEY,
	variant_id TEXT NOT NULL REFERENCES variants(id),
	key TEXT NOT NULL,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS insights (
	id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	document_id TEXT NOT NULL,
	metric_key TEXT NOT NULL,
	text TEXT NOT NULL,
	verified BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS metric_catalog (
	canonical_key TEXT PRIMARY KEY,
	aliases JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_experiments_project_id ON experiments(project_id);
CREATE INDEX IF NOT EXISTS idx_variants_experiment_id ON variants(experiment_id);
CREATE INDEX IF NOT EXISTS idx_measurements_variant_id ON measurements(variant_id);
CREATE INDEX IF NOT EXISTS idx_measurements_metric_key ON measurements(metric_key);
CREATE INDEX IF NOT EXISTS idx_conditions_variant_id ON conditions(variant_id);
CREATE INDEX IF NOT EXISTS idx_insights_metric_key ON insights(metric_key);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) ExperimentsByMetricKeys(ctx context.Context, projectIDs, metricKeys []string) ([]domain.Experiment, error) {
	if len(metricKeys) == 0 {
		return nil, nil
	}
	var args []any
	metricFilter, args := inFilter("m.metric_key", metricKeys, args)
	projectFilter, args := authorizedProjectFilter("e.project_id", projectIDs, args)

	query := fmt.Sprintf(`
SELECT DISTINCT e.id, e.project_id, e.document_id, e.title, coalesce(e.objective, ''), e.evidence_date
FROM experiments e
JOIN variants v ON v.experiment_id = e.id
JOIN measurements m ON m.variant_id = v.id
WHERE %s AND %s
ORDER BY e.evidence_date DESC, e.id
`, metricFilter, projectFilter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	var out []domain.Experiment
	for rows.Next() {
		var e domain.Experiment
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.DocumentID, &e.Title, &e.Objective, &e.EvidenceDate); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return out, nil
}

func (r *EvidenceRepository) VariantsByExperimentIDs(ctx context.Context, experimentIDs []string) ([]domain.Variant, error) {
	if len(experimentIDs) == 0 {
		return nil, nil
	}
	var args []any
	filter, args := inFilter("experiment_id", experimentIDs, args)

	query := fmt.Sprintf(`
SELECT id, experiment_id, name
FROM variants
WHERE %s
ORDER BY id
`, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	var out []domain.Variant
	for rows.Next() {
		var v domain.Variant
		if err := rows.Scan(&v.ID, &v.ExperimentID, &v.Name); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variants: %w", err)
	}
	return out, nil
}

func (r *EvidenceRepository) MeasurementsByVariantIDs(ctx context.Context, variantIDs []string) ([]domain.Measurement, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	var args []any
	filter, args := inFilter("variant_id", variantIDs, args)

	query := fmt.Sprintf(`
SELECT variant_id, metric_key, raw_name, value, unit, canonical_value, canonical_unit, confidence, source_excerpt
FROM measurements
WHERE %s
ORDER BY variant_id, metric_key
`, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query measurements: %w", err)
	}
	defer rows.Close()

	var out []domain.Measurement
	for rows.Next() {
		var m domain.Measurement
		if err := rows.Scan(&m.VariantID, &m.MetricKey, &m.RawName, &m.Value, &m.Unit, &m.CanonicalValue, &m.CanonicalUnit, &m.Confidence, &m.SourceExcerpt); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate measurements: %w", err)
	}
	return out, nil
}

func (r *EvidenceRepository) ConditionsByVariantIDs(ctx context.Context, variantIDs []string) ([]domain.Condition, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}
	var args []any
	filter, args := inFilter("variant_id", variantIDs, args)

	query := fmt.Sprintf(`
SELECT variant_id, key, value
FROM conditions
WHERE %s
ORDER BY variant_id, key
`, filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conditions: %w", err)
	}
	defer rows.Close()

	var out []domain.Condition
	for rows.Next() {
		var c domain.Condition
		if err := rows.Scan(&c.VariantID, &c.Key, &c.Value); err != nil {
			return nil, fmt.Errorf("scan condition: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conditions: %w", err)
	}
	return out, nil
}

func (r *EvidenceRepository) InsightsByMetricKeys(ctx context.Context, projectIDs, metricKeys []string) ([]domain.Insight, error) {
	if len(metricKeys) == 0 {
		return nil, nil
	}
	var args []any
	metricFilter, args := inFilter("metric_key", metricKeys, args)
	projectFilter, args := authorizedProjectFilter("project_id", projectIDs, args)

	query := fmt.Sprintf(`
SELECT id, project_id, document_id, metric_key, text, verified
FROM insights
WHERE %s AND %s
ORDER BY verified DESC, id
`, metricFilter, projectFilter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query insights: %w", err)
	}
	defer rows.Close()

	var out []domain.Insight
	for rows.Next() {
		var ins domain.Insight
		if err := rows.Scan(&ins.ID, &ins.ProjectID, &ins.DocumentID, &ins.MetricKey, &ins.Text, &ins.Verified); err != nil {
			return nil, fmt.Errorf("scan insight: %w", err)
		}
		out = append(out, ins)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate insights: %w", err)
	}
	return out, nil
}

func (r *EvidenceRepository) MetricCatalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT canonical_key, aliases
FROM metric_catalog
ORDER BY canonical_key
`)
	if err != nil {
		return nil, fmt.Errorf("query metric catalog: %w", err)
	}
	defer rows.Close()

	var out []domain.CatalogEntry
	for rows.Next() {
		var entry domain.CatalogEntry
		var aliasesRaw []byte
		if err := rows.Scan(&entry.CanonicalKey, &aliasesRaw); err != nil {
			return nil, fmt.Errorf("scan catalog entry: %w", err)
		}
		if err := json.Unmarshal(aliasesRaw, &entry.Aliases); err != nil {
			return nil, fmt.Errorf("unmarshal aliases: %w", err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate catalog: %w", err)
	}
	return out, nil
}

func inFilter(column string, values []string, args []any) (string, []any) {
	placeholders := make([]string, 0, len(values))
	for _, v := range values {
		args = append(args, v)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")), args
}

// authorizedProjectFilter fails closed: experiments and insights always
// belong to a project, so an empty authorized set matches nothing.
func authorizedProjectFilter(column string, projectIDs []string, args []any) (string, []any) {
	if len(projectIDs) == 0 {
		return "FALSE", args
	}
	filter, args := inFilter(column, projectIDs, args)
	return filter, args
}

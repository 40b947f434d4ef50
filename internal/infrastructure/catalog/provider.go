package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
	"github.com/osadchiy/evidence-engine/internal/core/ports"
)

// LoadFile reads the metric catalog from a yaml file of the form:
//
//	metrics:
//	  - canonical_key: flexural_strength
//	    aliases: [resistencia a flexao, flexural strength]
func LoadFile(path string) ([]domain.CatalogEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var doc struct {
		Metrics []domain.CatalogEntry `yaml:"metrics"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog yaml: %w", err)
	}
	for _, entry := range doc.Metrics {
		if entry.CanonicalKey == "" {
			return nil, fmt.Errorf("catalog entry without canonical_key")
		}
	}
	return doc.Metrics, nil
}

// Provider caches a catalog snapshot and reloads it on demand. The
// NATS subscription calls Refresh when the catalog changes upstream.
type Provider struct {
	load func(ctx context.Context) ([]domain.CatalogEntry, error)

	mu       sync.RWMutex
	snapshot []domain.CatalogEntry
	loaded   bool
}

var _ ports.CatalogProvider = (*Provider)(nil)

func NewFileProvider(path string) *Provider {
	return &Provider{
		load: func(context.Context) ([]domain.CatalogEntry, error) {
			return LoadFile(path)
		},
	}
}

// NewStoreProvider serves the catalog from the structured evidence
// store instead of a file.
func NewStoreProvider(store ports.EvidenceStore) *Provider {
	return &Provider{load: store.MetricCatalog}
}

func (p *Provider) Catalog(ctx context.Context) ([]domain.CatalogEntry, error) {
	p.mu.RLock()
	if p.loaded {
		snapshot := p.snapshot
		p.mu.RUnlock()
		return snapshot, nil
	}
	p.mu.RUnlock()
	return p.Refresh(ctx)
}

func (p *Provider) Refresh(ctx context.Context) ([]domain.CatalogEntry, error) {
	entries, err := p.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	p.mu.Lock()
	p.snapshot = entries
	p.loaded = true
	p.mu.Unlock()

	slog.Info("catalog_refreshed", "entries", len(entries))
	return entries, nil
}

package domain

// CatalogEntry maps a canonical metric key to its known alias spellings.
type CatalogEntry struct {
	CanonicalKey string   `json:"canonical_key" yaml:"canonical_key"`
	Aliases      []string `json:"aliases,omitempty" yaml:"aliases"`
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/osadchiy/evidence-engine/internal/core/domain"
)

// ChunkRepository reads the chunk index maintained by the external
// ingestion pipeline. Lexical ranking uses postgres FTS with a
// configurable text search language.
type ChunkRepository struct {
	db       *sql.DB
	language string
}

func NewChunkRepository(db *sql.DB, language string) *ChunkRepository {
	if language == "" {
		language = "simple"
	}
	return &ChunkRepository{db: db, language: language}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ChunkRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS chunks (
	id TEXT PRIMARY KEY,
	project_id TEXT,
	source_type TEXT NOT NULL,
	source_id TEXT NOT NULL,
	title TEXT,
	page INTEGER NOT NULL DEFAULT 0,
	body TEXT NOT NULL,
	search_vector TSVECTOR GENERATED ALWAYS AS (to_tsvector('%s', coalesce(title, '') || ' ' || body)) STORED
);

CREATE INDEX IF NOT EXISTS idx_chunks_search_vector ON chunks USING GIN(search_vector);
CREATE INDEX IF NOT EXISTS idx_chunks_project_id ON chunks(project_id);
CREATE INDEX IF NOT EXISTS idx_chunks_source ON chunks(source_type, source_id);
`, r.language)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ChunkRepository) SearchLexical(ctx context.Context, query string, scope domain.SearchScope) ([]domain.Chunk, error) {
	args := []any{r.language, query}
	projectFilter, args := projectScopeFilter(scope.ProjectIDs, args)

	sqlQuery := fmt.Sprintf(`
SELECT id, coalesce(project_id, ''), source_type, source_id, coalesce(title, ''), page, body,
	ts_rank_cd(search_vector, plainto_tsquery($1::regconfig, $2)) AS score
FROM chunks
WHERE search_vector @@ plainto_tsquery($1::regconfig, $2)
	AND %s
ORDER BY score DESC, id
LIMIT %d
`, projectFilter, limitOrDefault(scope.Limit))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.SourceType, &c.SourceID, &c.Title, &c.Page, &c.Text, &c.ScoreLexical); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// SearchSubstring matches individual query terms rather than the
// verbatim question, which never occurs literally in a chunk body.
func (r *ChunkRepository) SearchSubstring(ctx context.Context, query string, scope domain.SearchScope) ([]domain.Chunk, error) {
	terms := substringTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	args := make([]any, 0, len(terms))
	conditions := make([]string, 0, len(terms))
	for _, term := range terms {
		args = append(args, "%"+term+"%")
		conditions = append(conditions, fmt.Sprintf("body ILIKE $%d", len(args)))
	}
	projectFilter, args := projectScopeFilter(scope.ProjectIDs, args)

	sqlQuery := fmt.Sprintf(`
SELECT id, coalesce(project_id, ''), source_type, source_id, coalesce(title, ''), page, body
FROM chunks
WHERE (%s)
	AND %s
ORDER BY id
LIMIT %d
`, strings.Join(conditions, " OR "), projectFilter, limitOrDefault(scope.Limit))

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("substring search: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.SourceType, &c.SourceID, &c.Title, &c.Page, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		c.ScoreFinal = 1.0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// projectScopeFilter admits global (null project) chunks plus any chunk
// inside the authorized project set.
const maxSubstringTerms = 8

var substringStopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "what": {}, "which": {}, "how": {},
	"did": {}, "does": {}, "was": {}, "were": {}, "this": {}, "that": {}, "about": {},
	"qual": {}, "quais": {}, "como": {}, "sobre": {}, "que": {}, "para": {},
	"com": {}, "uma": {}, "das": {}, "dos": {}, "isso": {}, "este": {}, "essa": {},
}

func substringTerms(query string) []string {
	seen := make(map[string]struct{})
	var terms []string
	for _, word := range strings.Fields(strings.ToLower(query)) {
		word = strings.Trim(word, ".,;:!?\"'()[]")
		if len([]rune(word)) < 3 {
			continue
		}
		if _, stop := substringStopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		terms = append(terms, word)
		if len(terms) == maxSubstringTerms {
			break
		}
	}
	return terms
}

func projectScopeFilter(projectIDs []string, args []any) (string, []any) {
	if len(projectIDs) == 0 {
		return "project_id IS NULL", args
	}
	placeholders := make([]string, 0, len(projectIDs))
	for _, id := range projectIDs {
		args = append(args, id)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	return fmt.Sprintf("(project_id IS NULL OR project_id IN (%s))", strings.Join(placeholders, ",")), args
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 30
	}
	return limit
}

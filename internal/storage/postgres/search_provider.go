package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// SearchMemories implements storage.SearchProvider using pgvector's native
// cosine-distance operator (`<=>`) when the extension is available, falling
// back to in-process cosine similarity over the filtered candidate set
// otherwise — the same fallback the sqlite backend always uses (spec §4.1).
func (s *MemoryStore) SearchMemories(ctx context.Context, workspaceID string, opts storage.SearchOptions) ([]storage.ScoredMemory, error) {
	opts.Normalize()
	if s.pgvectorAvailable && len(opts.QueryEmbedding) > 0 {
		return s.vectorSearch(ctx, workspaceID, opts)
	}
	return s.bruteForceSearch(ctx, workspaceID, opts)
}

func (s *MemoryStore) vectorSearch(ctx context.Context, workspaceID string, opts storage.SearchOptions) ([]storage.ScoredMemory, error) {
	where, args := buildFilterClauses(workspaceID, opts.Filters)
	args = append(args, pgvectorLiteral(opts.QueryEmbedding))
	vecArg := fmt.Sprintf("$%d", len(args))

	query := fmt.Sprintf(`
		SELECT %s, embedding_vec::text, 1 - (embedding_vec <=> %s::vector) AS similarity
		FROM memories
		WHERE %s AND embedding_vec IS NOT NULL
		ORDER BY embedding_vec <=> %s::vector ASC
		LIMIT %d
	`, memoryColumns, vecArg, where, vecArg, opts.Limit*4+20)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector search: %w", err)
	}
	defer rows.Close()

	var out []storage.ScoredMemory
	for rows.Next() {
		m, sim, err := scanMemoryWithSimilarity(rows)
		if err != nil {
			return nil, err
		}
		if !matchesAllTags(m, opts.Filters.Tags) {
			continue
		}
		if sim < opts.MinRelevance {
			continue
		}
		out = append(out, storage.ScoredMemory{Memory: m, Similarity: sim})
		if len(out) >= opts.Limit {
			break
		}
	}
	return out, rows.Err()
}

// bruteForceSearch mirrors the sqlite backend: load filter-matching rows and
// rank by cosine similarity in Go. Used when enabling pgvector failed at
// startup or the query carries no embedding.
func (s *MemoryStore) bruteForceSearch(ctx context.Context, workspaceID string, opts storage.SearchOptions) ([]storage.ScoredMemory, error) {
	where, args := buildFilterClauses(workspaceID, opts.Filters)
	query := fmt.Sprintf(`
		SELECT %s, embedding_vec::text
		FROM memories
		WHERE %s AND embedding_vec IS NOT NULL
	`, memoryColumns, where)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: search memories: %w", err)
	}
	defer rows.Close()

	candidates, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}

	var out []storage.ScoredMemory
	for _, m := range candidates {
		if !matchesAllTags(m, opts.Filters.Tags) {
			continue
		}
		sim := cosineSimilarity(opts.QueryEmbedding, m.Embedding)
		if sim < opts.MinRelevance {
			continue
		}
		out = append(out, storage.ScoredMemory{Memory: m, Similarity: sim})
	}
	sortScoredDesc(out)
	if len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func buildFilterClauses(workspaceID string, f storage.MemoryFilters) (string, []interface{}) {
	status := string(f.Status)
	if status == "" {
		status = string(types.StatusActive)
	}
	clauses := []string{"workspace_id = $1", "status = $2", "deleted_at IS NULL"}
	args := []interface{}{workspaceID, status}

	if !f.CreatedAfter.IsZero() {
		args = append(args, f.CreatedAfter)
		clauses = append(clauses, fmt.Sprintf("created_at > $%d", len(args)))
	}
	if !f.CreatedBefore.IsZero() {
		args = append(args, f.CreatedBefore)
		clauses = append(clauses, fmt.Sprintf("created_at < $%d", len(args)))
	}
	if f.Pinned != nil {
		args = append(args, *f.Pinned)
		clauses = append(clauses, fmt.Sprintf("pinned = $%d", len(args)))
	}
	if len(f.Types) > 0 {
		placeholders := make([]string, len(f.Types))
		for i, t := range f.Types {
			args = append(args, string(t))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, "type IN ("+strings.Join(placeholders, ",")+")")
	}
	if len(f.Subtypes) > 0 {
		placeholders := make([]string, len(f.Subtypes))
		for i, t := range f.Subtypes {
			args = append(args, t)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, "subtype IN ("+strings.Join(placeholders, ",")+")")
	}
	return strings.Join(clauses, " AND "), args
}

func matchesAllTags(m *types.Memory, required []string) bool {
	for _, tag := range required {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

func sortScoredDesc(s []storage.ScoredMemory) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j].Similarity > s[j-1].Similarity; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func scanMemoryWithSimilarity(rows *sql.Rows) (*types.Memory, float64, error) {
	var (
		m                  types.Memory
		mtype, status      string
		tagsJSON, metaJSON string
		embeddingDim       int
		embeddingText      sql.NullString
		deletedAt          sql.NullTime
		similarity         float64
	)

	err := rows.Scan(
		&m.ID, &m.WorkspaceID, &m.TenantID, &m.ContextID, &m.Content, &m.ContentHash,
		&m.Abstract, &m.Overview, &mtype, &m.Subtype, &m.Importance, &m.Pinned, &status,
		&tagsJSON, &metaJSON, &embeddingDim,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt, &m.AccessCount, &deletedAt, &m.SourceMemoryID,
		&embeddingText, &similarity,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres: scan scored memory: %w", err)
	}

	m.Type = types.MemoryType(mtype)
	m.Status = types.MemoryStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, 0, fmt.Errorf("postgres: unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return nil, 0, fmt.Errorf("postgres: unmarshal metadata: %w", err)
	}
	if embeddingText.Valid {
		emb, err := parsePgvectorLiteral(embeddingText.String)
		if err != nil {
			return nil, 0, err
		}
		m.Embedding = emb
	}

	return &m, similarity, nil
}

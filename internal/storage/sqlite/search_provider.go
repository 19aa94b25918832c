package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// SearchMemories implements storage.SearchProvider by loading the
// filter-matching candidate rows for a workspace and ranking them by cosine
// similarity to the query embedding in application code. SQLite has no
// native vector type, so this is the grounded equivalent of the postgres
// backend's pgvector `<=>` search (spec §4.1).
func (s *MemoryStore) SearchMemories(ctx context.Context, workspaceID string, opts storage.SearchOptions) ([]storage.ScoredMemory, error) {
	opts.Normalize()

	status := string(opts.Filters.Status)
	if status == "" {
		status = string(types.StatusActive)
	}

	query := `
		SELECT id, workspace_id, tenant_id, context_id, content, content_hash,
		       abstract, overview, type, subtype, importance, pinned, status,
		       tags, metadata, embedding, embedding_dim,
		       created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
		FROM memories
		WHERE workspace_id = ? AND status = ? AND deleted_at IS NULL AND embedding IS NOT NULL
	`
	args := []interface{}{workspaceID, status}

	if !opts.Filters.CreatedAfter.IsZero() {
		query += " AND created_at > ?"
		args = append(args, opts.Filters.CreatedAfter)
	}
	if !opts.Filters.CreatedBefore.IsZero() {
		query += " AND created_at < ?"
		args = append(args, opts.Filters.CreatedBefore)
	}
	if opts.Filters.Pinned != nil {
		query += " AND pinned = ?"
		args = append(args, *opts.Filters.Pinned)
	}
	if len(opts.Filters.Types) > 0 {
		placeholders := make([]string, len(opts.Filters.Types))
		for i, t := range opts.Filters.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		query += " AND type IN (" + strings.Join(placeholders, ",") + ")"
	}
	if len(opts.Filters.Subtypes) > 0 {
		placeholders := make([]string, len(opts.Filters.Subtypes))
		for i, t := range opts.Filters.Subtypes {
			placeholders[i] = "?"
			args = append(args, t)
		}
		query += " AND subtype IN (" + strings.Join(placeholders, ",") + ")"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: search memories: %w", err)
	}
	defer rows.Close()

	candidates, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}

	var scored []storage.ScoredMemory
	for _, m := range candidates {
		// Tag filters apply with AND semantics and are cheapest to check
		// in-process after the SQL predicates have already narrowed the set.
		if !matchesAllTags(m, opts.Filters.Tags) {
			continue
		}
		sim := cosineSimilarity(opts.QueryEmbedding, m.Embedding)
		if sim < opts.MinRelevance {
			continue
		}
		scored = append(scored, storage.ScoredMemory{Memory: m, Similarity: sim})
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })

	if len(scored) > opts.Limit {
		scored = scored[:opts.Limit]
	}
	return scored, nil
}

func matchesAllTags(m *types.Memory, required []string) bool {
	for _, tag := range required {
		if !m.HasTag(tag) {
			return false
		}
	}
	return true
}

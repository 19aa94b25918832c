package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

var _ storage.Backend = (*MemoryStore)(nil)

// MemoryStore implements storage.Backend using PostgreSQL with pgvector.
type MemoryStore struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewMemoryStore opens a PostgreSQL connection pool, applies the schema, and
// attempts to enable pgvector. If enabling the extension fails,
// SearchMemories ranks by in-process cosine similarity instead of the
// native operator; the schema's embedding_vec column has the vector type, so
// where the extension is not installed at all applying the schema fails and
// NewMemoryStore returns that error. Callers that need a
// store-with-embeddings everywhere should prefer the sqlite backend in that
// environment (spec §4.1 names both backends without mandating feature
// parity on managed Postgres without the extension).
func NewMemoryStore(dsn string) (*MemoryStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	s := &MemoryStore{db: db}

	if _, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		log.Printf("postgres: pgvector extension not available (vector search disabled): %v", err)
		s.pgvectorAvailable = false
	} else {
		s.pgvectorAvailable = true
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to apply schema: %w", err)
	}

	if _, err := db.Exec(MigrationFTS); err != nil {
		log.Printf("postgres: failed to apply FTS migration (full-text search degraded): %v", err)
	}

	if s.pgvectorAvailable {
		if _, err := db.Exec(MigrationPgvectorIndex); err != nil {
			log.Printf("postgres: failed to create pgvector index: %v", err)
		}
	}

	return s, nil
}

// Close releases the connection pool.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

const memoryColumns = `
	id, workspace_id, tenant_id, context_id, content, content_hash,
	abstract, overview, type, subtype, importance, pinned, status,
	tags, metadata, embedding_dim,
	created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
`

// CreateMemory inserts a new memory row. Returns storage.ErrUniqueConstraint
// if (workspace_id, content_hash) already exists.
func (s *MemoryStore) CreateMemory(ctx context.Context, m *types.Memory) error {
	if m == nil || m.ID == "" || m.WorkspaceID == "" || m.Content == "" {
		return fmt.Errorf("%w: id, workspace_id, and content are required", storage.ErrInvalidInput)
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.LastAccessedAt.IsZero() {
		m.LastAccessedAt = m.CreatedAt
	}
	if m.Status == "" {
		m.Status = types.StatusActive
	}

	tagsJSON, err := json.Marshal(nonNilStrings(m.Tags))
	if err != nil {
		return fmt.Errorf("postgres: marshal tags: %w", err)
	}
	metaJSON, err := json.Marshal(nonNilMap(m.Metadata))
	if err != nil {
		return fmt.Errorf("postgres: marshal metadata: %w", err)
	}

	vecLiteral := pgvectorLiteral(m.Embedding)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, workspace_id, tenant_id, context_id, content, content_hash,
			abstract, overview, type, subtype, importance, pinned, status,
			tags, metadata, embedding_vec, embedding_dim,
			created_at, updated_at, last_accessed_at, access_count, source_memory_id
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
	`,
		m.ID, m.WorkspaceID, m.TenantID, m.ContextID, m.Content, m.ContentHash,
		m.Abstract, m.Overview, string(m.Type), m.Subtype, m.Importance, m.Pinned, string(m.Status),
		string(tagsJSON), string(metaJSON), vecLiteral, len(m.Embedding),
		m.CreatedAt, m.UpdatedAt, m.LastAccessedAt, m.AccessCount, m.SourceMemoryID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUniqueConstraint
		}
		return fmt.Errorf("postgres: insert memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by workspace and id, optionally tracking
// access in the same round trip.
func (s *MemoryStore) GetMemory(ctx context.Context, workspaceID, id string, trackAccess bool) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memoryColumns+`, embedding_vec::text
		FROM memories WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL
	`, workspaceID, id)

	m, err := scanMemory(row)
	if err != nil {
		return nil, err
	}

	if trackAccess {
		now := time.Now().UTC()
		if _, err := s.db.ExecContext(ctx, `
			UPDATE memories SET access_count = access_count + 1, last_accessed_at = $1
			WHERE workspace_id = $2 AND id = $3
		`, now, workspaceID, id); err != nil {
			return nil, fmt.Errorf("postgres: track access: %w", err)
		}
		m.AccessCount++
		m.LastAccessedAt = now
	}

	return m, nil
}

// GetMemoryByHash looks up a memory by its exact content_hash within a
// workspace, used by the deduplication service's SKIP path.
func (s *MemoryStore) GetMemoryByHash(ctx context.Context, workspaceID, contentHash string) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+memoryColumns+`, embedding_vec::text
		FROM memories WHERE workspace_id = $1 AND content_hash = $2 AND deleted_at IS NULL
	`, workspaceID, contentHash)
	return scanMemory(row)
}

// UpdateMemory applies a partial update; nil fields on the MemoryUpdate are
// left untouched. updated_at is always refreshed.
func (s *MemoryStore) UpdateMemory(ctx context.Context, workspaceID, id string, fields storage.MemoryUpdate) (*types.Memory, error) {
	existing, err := s.GetMemory(ctx, workspaceID, id, false)
	if err != nil {
		return nil, err
	}

	if fields.Content != nil {
		existing.Content = *fields.Content
	}
	if fields.Abstract != nil {
		existing.Abstract = *fields.Abstract
	}
	if fields.Overview != nil {
		existing.Overview = *fields.Overview
	}
	if fields.Type != nil {
		existing.Type = *fields.Type
	}
	if fields.Subtype != nil {
		existing.Subtype = *fields.Subtype
	}
	if fields.Importance != nil {
		existing.Importance = *fields.Importance
	}
	if fields.Pinned != nil {
		existing.Pinned = *fields.Pinned
	}
	if fields.Status != nil {
		existing.Status = *fields.Status
	}
	if fields.Tags != nil {
		existing.Tags = fields.Tags
	}
	if fields.Metadata != nil {
		existing.Metadata = fields.Metadata
	}
	if fields.Embedding != nil {
		existing.Embedding = fields.Embedding
	}
	existing.UpdatedAt = time.Now().UTC()

	tagsJSON, err := json.Marshal(nonNilStrings(existing.Tags))
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal tags: %w", err)
	}
	metaJSON, err := json.Marshal(nonNilMap(existing.Metadata))
	if err != nil {
		return nil, fmt.Errorf("postgres: marshal metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE memories SET
			content = $1, abstract = $2, overview = $3, type = $4, subtype = $5,
			importance = $6, pinned = $7, status = $8, tags = $9, metadata = $10,
			embedding_vec = $11, embedding_dim = $12, updated_at = $13
		WHERE workspace_id = $14 AND id = $15
	`,
		existing.Content, existing.Abstract, existing.Overview, string(existing.Type), existing.Subtype,
		existing.Importance, existing.Pinned, string(existing.Status), string(tagsJSON), string(metaJSON),
		pgvectorLiteral(existing.Embedding), len(existing.Embedding), existing.UpdatedAt,
		workspaceID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: update memory: %w", err)
	}
	return existing, nil
}

// DeleteMemory soft-deletes (tombstone) unless hard is true.
func (s *MemoryStore) DeleteMemory(ctx context.Context, workspaceID, id string, hard bool) error {
	var res sql.Result
	var err error
	if hard {
		res, err = s.db.ExecContext(ctx, `DELETE FROM memories WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE memories SET deleted_at = $1, status = $2 WHERE workspace_id = $3 AND id = $4 AND deleted_at IS NULL
		`, time.Now().UTC(), string(types.StatusDeleted), workspaceID, id)
	}
	if err != nil {
		return fmt.Errorf("postgres: delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns a page of memories for a workspace.
func (s *MemoryStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	status := string(opts.Status)
	if status == "" {
		status = string(types.StatusActive)
	}

	query := fmt.Sprintf(`
		SELECT %s, embedding_vec::text
		FROM memories
		WHERE workspace_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY %s %s
		LIMIT $3 OFFSET $4
	`, memoryColumns, opts.SortBy, strings.ToUpper(opts.SortOrder))

	rows, err := s.db.QueryContext(ctx, query, opts.WorkspaceID, status, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("postgres: list memories: %w", err)
	}
	defer rows.Close()

	items, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memories WHERE workspace_id = $1 AND status = $2 AND deleted_at IS NULL
	`, opts.WorkspaceID, status).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: count memories: %w", err)
	}

	return &storage.PaginatedResult[types.Memory]{
		Items:    derefAll(items),
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

// GetMemoriesForDecay returns non-pinned (unless excludePinned is false)
// memories at least minAgeDays old, for the decay pass (spec §4.6).
func (s *MemoryStore) GetMemoriesForDecay(ctx context.Context, workspaceID string, minAgeDays int, excludePinned bool) ([]*types.Memory, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	query := fmt.Sprintf(`
		SELECT %s, embedding_vec::text
		FROM memories
		WHERE workspace_id = $1 AND status = $2 AND deleted_at IS NULL AND created_at <= $3
	`, memoryColumns)
	if excludePinned {
		query += " AND pinned = FALSE"
	}

	rows, err := s.db.QueryContext(ctx, query, workspaceID, string(types.StatusActive), cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: get memories for decay: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetArchivalCandidates returns memories eligible for archival (spec §4.6).
func (s *MemoryStore) GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount int, minAgeDays int) ([]*types.Memory, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s, embedding_vec::text
		FROM memories
		WHERE workspace_id = $1 AND status = $2 AND deleted_at IS NULL
		  AND pinned = FALSE AND importance <= $3 AND access_count <= $4 AND created_at <= $5
	`, memoryColumns), workspaceID, string(types.StatusActive), maxImportance, maxAccessCount, cutoff)
	if err != nil {
		return nil, fmt.Errorf("postgres: get archival candidates: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListAllWorkspaceIDs returns every distinct workspace that owns at least
// one memory, used by the decay handler to iterate workspaces (spec §4.6).
func (s *MemoryStore) ListAllWorkspaceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT workspace_id FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list workspace ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func derefAll(items []*types.Memory) []types.Memory {
	out := make([]types.Memory, len(items))
	for i, m := range items {
		out[i] = *m
	}
	return out
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*types.Memory, error) {
	var (
		m                  types.Memory
		mtype, status      string
		tagsJSON, metaJSON string
		embeddingDim       int
		embeddingText      sql.NullString
		deletedAt          sql.NullTime
	)

	err := row.Scan(
		&m.ID, &m.WorkspaceID, &m.TenantID, &m.ContextID, &m.Content, &m.ContentHash,
		&m.Abstract, &m.Overview, &mtype, &m.Subtype, &m.Importance, &m.Pinned, &status,
		&tagsJSON, &metaJSON, &embeddingDim,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt, &m.AccessCount, &deletedAt, &m.SourceMemoryID,
		&embeddingText,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: scan memory: %w", err)
	}

	m.Type = types.MemoryType(mtype)
	m.Status = types.MemoryStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return nil, fmt.Errorf("postgres: unmarshal metadata: %w", err)
	}
	if embeddingText.Valid {
		emb, err := parsePgvectorLiteral(embeddingText.String)
		if err != nil {
			return nil, err
		}
		m.Embedding = emb
	}

	return &m, nil
}

func scanMemories(rows *sql.Rows) ([]*types.Memory, error) {
	var out []*types.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

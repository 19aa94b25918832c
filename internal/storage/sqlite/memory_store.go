// Package sqlite implements the embedded single-file storage backend
// (spec §4.1) over modernc.org/sqlite (pure Go, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

var _ storage.Backend = (*MemoryStore)(nil)

// MemoryStore implements storage.Backend using SQLite.
type MemoryStore struct {
	db *sql.DB
}

// NewMemoryStore opens a SQLite database, configuring WAL mode and the
// schema. If the initial open fails due to stale WAL files left behind by a
// crashed process, it verifies no other process holds them and retries once
// after removing the stale -shm/-wal files.
func NewMemoryStore(dsn string) (*MemoryStore, error) {
	store, err := openMemoryStore(dsn)
	if err == nil {
		return store, nil
	}

	if !isRecoverableWALError(err) {
		return nil, err
	}

	dbPath := dbPathFromDSN(dsn)
	if dbPath == "" || !isWALStale(dbPath) {
		return nil, err
	}

	removeStaleWAL(dbPath)

	store, retryErr := openMemoryStore(dsn)
	if retryErr != nil {
		return nil, fmt.Errorf("sqlite: failed after WAL recovery: %w (original: %v)", retryErr, err)
	}

	log.Printf("sqlite: recovered from stale WAL files for %s", dbPath)
	return store, nil
}

func openMemoryStore(dsn string) (*MemoryStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open database: %w", err)
	}

	// A single writer connection serializes writes and avoids SQLITE_BUSY
	// under concurrent load; WAL mode lets readers proceed unblocked.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlite: failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: failed to create schema: %w", err)
	}

	return &MemoryStore{db: db}, nil
}

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
		return fmt.Errorf("sqlite: marshal tags: %w", err)
	}
	metaJSON, err := json.Marshal(nonNilMap(m.Metadata))
	if err != nil {
		return fmt.Errorf("sqlite: marshal metadata: %w", err)
	}

	var embeddingBlob []byte
	if len(m.Embedding) > 0 {
		embeddingBlob = serializeEmbedding(m.Embedding)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memories (
			id, workspace_id, tenant_id, context_id, content, content_hash,
			abstract, overview, type, subtype, importance, pinned, status,
			tags, metadata, embedding, embedding_dim,
			created_at, updated_at, last_accessed_at, access_count, source_memory_id
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`,
		m.ID, m.WorkspaceID, m.TenantID, m.ContextID, m.Content, m.ContentHash,
		m.Abstract, m.Overview, string(m.Type), m.Subtype, m.Importance, m.Pinned, string(m.Status),
		string(tagsJSON), string(metaJSON), embeddingBlob, len(m.Embedding),
		m.CreatedAt, m.UpdatedAt, m.LastAccessedAt, m.AccessCount, m.SourceMemoryID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUniqueConstraint
		}
		return fmt.Errorf("sqlite: insert memory: %w", err)
	}
	return nil
}

// GetMemory retrieves a memory by workspace and id, optionally tracking
// access in the same round trip.
func (s *MemoryStore) GetMemory(ctx context.Context, workspaceID, id string, trackAccess bool) (*types.Memory, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, tenant_id, context_id, content, content_hash,
		       abstract, overview, type, subtype, importance, pinned, status,
		       tags, metadata, embedding, embedding_dim,
		       created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
		FROM memories WHERE workspace_id = ? AND id = ? AND deleted_at IS NULL
	`, workspaceID, id)

	m, err := scanMemory(row)
	if err != nil {
		return nil, err
	}

	if trackAccess {
		now := time.Now().UTC()
		if _, err := s.db.ExecContext(ctx, `
			UPDATE memories SET access_count = access_count + 1, last_accessed_at = ?
			WHERE workspace_id = ? AND id = ?
		`, now, workspaceID, id); err != nil {
			return nil, fmt.Errorf("sqlite: track access: %w", err)
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
		SELECT id, workspace_id, tenant_id, context_id, content, content_hash,
		       abstract, overview, type, subtype, importance, pinned, status,
		       tags, metadata, embedding, embedding_dim,
		       created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
		FROM memories WHERE workspace_id = ? AND content_hash = ? AND deleted_at IS NULL
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
		return nil, fmt.Errorf("sqlite: marshal tags: %w", err)
	}
	metaJSON, err := json.Marshal(nonNilMap(existing.Metadata))
	if err != nil {
		return nil, fmt.Errorf("sqlite: marshal metadata: %w", err)
	}
	var embeddingBlob []byte
	if len(existing.Embedding) > 0 {
		embeddingBlob = serializeEmbedding(existing.Embedding)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE memories SET
			content = ?, abstract = ?, overview = ?, type = ?, subtype = ?,
			importance = ?, pinned = ?, status = ?, tags = ?, metadata = ?,
			embedding = ?, embedding_dim = ?, updated_at = ?
		WHERE workspace_id = ? AND id = ?
	`,
		existing.Content, existing.Abstract, existing.Overview, string(existing.Type), existing.Subtype,
		existing.Importance, existing.Pinned, string(existing.Status), string(tagsJSON), string(metaJSON),
		embeddingBlob, len(existing.Embedding), existing.UpdatedAt,
		workspaceID, id,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: update memory: %w", err)
	}
	return existing, nil
}

// DeleteMemory soft-deletes (tombstone) unless hard is true.
func (s *MemoryStore) DeleteMemory(ctx context.Context, workspaceID, id string, hard bool) error {
	var res sql.Result
	var err error
	if hard {
		res, err = s.db.ExecContext(ctx, `DELETE FROM memories WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE memories SET deleted_at = ?, status = ? WHERE workspace_id = ? AND id = ? AND deleted_at IS NULL
		`, time.Now().UTC(), string(types.StatusDeleted), workspaceID, id)
	}
	if err != nil {
		return fmt.Errorf("sqlite: delete memory: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// List returns a page of memories for a workspace, most recent first by
// default.
func (s *MemoryStore) List(ctx context.Context, opts storage.ListOptions) (*storage.PaginatedResult[types.Memory], error) {
	opts.Normalize()

	status := string(opts.Status)
	if status == "" {
		status = string(types.StatusActive)
	}

	query := fmt.Sprintf(`
		SELECT id, workspace_id, tenant_id, context_id, content, content_hash,
		       abstract, overview, type, subtype, importance, pinned, status,
		       tags, metadata, embedding, embedding_dim,
		       created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
		FROM memories
		WHERE workspace_id = ? AND status = ? AND deleted_at IS NULL
		ORDER BY %s %s
		LIMIT ? OFFSET ?
	`, opts.SortBy, strings.ToUpper(opts.SortOrder))

	rows, err := s.db.QueryContext(ctx, query, opts.WorkspaceID, status, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("sqlite: list memories: %w", err)
	}
	defer rows.Close()

	items, err := scanMemories(rows)
	if err != nil {
		return nil, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM memories WHERE workspace_id = ? AND status = ? AND deleted_at IS NULL
	`, opts.WorkspaceID, status).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: count memories: %w", err)
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
	query := `
		SELECT id, workspace_id, tenant_id, context_id, content, content_hash,
		       abstract, overview, type, subtype, importance, pinned, status,
		       tags, metadata, embedding, embedding_dim,
		       created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
		FROM memories
		WHERE workspace_id = ? AND status = ? AND deleted_at IS NULL AND created_at <= ?
	`
	args := []interface{}{workspaceID, string(types.StatusActive), cutoff}
	if excludePinned {
		query += " AND pinned = 0"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get memories for decay: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// GetArchivalCandidates returns memories eligible for archival (spec §4.6).
func (s *MemoryStore) GetArchivalCandidates(ctx context.Context, workspaceID string, maxImportance float64, maxAccessCount int, minAgeDays int) ([]*types.Memory, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -minAgeDays)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workspace_id, tenant_id, context_id, content, content_hash,
		       abstract, overview, type, subtype, importance, pinned, status,
		       tags, metadata, embedding, embedding_dim,
		       created_at, updated_at, last_accessed_at, access_count, deleted_at, source_memory_id
		FROM memories
		WHERE workspace_id = ? AND status = ? AND deleted_at IS NULL
		  AND pinned = 0 AND importance <= ? AND access_count <= ? AND created_at <= ?
	`, workspaceID, string(types.StatusActive), maxImportance, maxAccessCount, cutoff)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get archival candidates: %w", err)
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ListAllWorkspaceIDs returns every distinct workspace that owns at least
// one memory, used by the decay handler to iterate workspaces (spec §4.6).
func (s *MemoryStore) ListAllWorkspaceIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT workspace_id FROM memories`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list workspace ids: %w", err)
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

// Close releases the underlying database handle.
func (s *MemoryStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
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
		m                          types.Memory
		mtype, status              string
		tagsJSON, metaJSON         string
		embeddingBlob              []byte
		embeddingDim               int
		deletedAt                  sql.NullTime
	)

	err := row.Scan(
		&m.ID, &m.WorkspaceID, &m.TenantID, &m.ContextID, &m.Content, &m.ContentHash,
		&m.Abstract, &m.Overview, &mtype, &m.Subtype, &m.Importance, &m.Pinned, &status,
		&tagsJSON, &metaJSON, &embeddingBlob, &embeddingDim,
		&m.CreatedAt, &m.UpdatedAt, &m.LastAccessedAt, &m.AccessCount, &deletedAt, &m.SourceMemoryID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: scan memory: %w", err)
	}

	m.Type = types.MemoryType(mtype)
	m.Status = types.MemoryStatus(status)
	if deletedAt.Valid {
		t := deletedAt.Time
		m.DeletedAt = &t
	}
	if err := json.Unmarshal([]byte(tagsJSON), &m.Tags); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal tags: %w", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &m.Metadata); err != nil {
		return nil, fmt.Errorf("sqlite: unmarshal metadata: %w", err)
	}
	if len(embeddingBlob) > 0 {
		emb, err := deserializeEmbedding(embeddingBlob, embeddingDim)
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

func dbPathFromDSN(dsn string) string {
	if dsn == ":memory:" || dsn == "" {
		return ""
	}
	if strings.HasPrefix(dsn, "file:") {
		u, err := url.Parse(dsn)
		if err != nil {
			return ""
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		if path == ":memory:" {
			return ""
		}
		return path
	}
	return dsn
}

func isRecoverableWALError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "disk I/O error") || strings.Contains(msg, "database is locked")
}

func isWALStale(dbPath string) bool {
	shmPath := dbPath + "-shm"
	walPath := dbPath + "-wal"
	if !fileExists(shmPath) && !fileExists(walPath) {
		return false
	}
	lsofPath, err := exec.LookPath("lsof")
	if err != nil {
		return false
	}
	cmd := exec.Command(lsofPath, "-t", dbPath, shmPath, walPath)
	output, err := cmd.Output()
	if err != nil {
		return true
	}
	return strings.TrimSpace(string(output)) == ""
}

func removeStaleWAL(dbPath string) {
	for _, suffix := range []string{"-shm", "-wal"} {
		path := dbPath + suffix
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Printf("sqlite: failed to remove stale %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// CreateAssociation inserts a directed typed edge. Returns
// storage.ErrUniqueConstraint when (source_id, target_id, relationship)
// already exists (spec §4.1, §4.7).
func (s *MemoryStore) CreateAssociation(ctx context.Context, a *types.Association) error {
	if a == nil || a.ID == "" || a.SourceID == "" || a.TargetID == "" || a.Relationship == "" {
		return fmt.Errorf("%w: id, source_id, target_id, and relationship are required", storage.ErrInvalidInput)
	}
	if a.SourceID == a.TargetID {
		return fmt.Errorf("%w: source_id and target_id must differ", storage.ErrInvalidInput)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	metaJSON, err := json.Marshal(nonNilMap(a.Metadata))
	if err != nil {
		return fmt.Errorf("postgres: marshal association metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO associations (id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.ID, a.WorkspaceID, a.SourceID, a.TargetID, a.Relationship, a.Strength, string(metaJSON), a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUniqueConstraint
		}
		return fmt.Errorf("postgres: insert association: %w", err)
	}
	return nil
}

// GetAssociations returns the edges touching memoryID that match the given
// direction/relationship-type/strength filters.
func (s *MemoryStore) GetAssociations(ctx context.Context, workspaceID, memoryID string, filters storage.AssociationFilters) ([]*types.Association, error) {
	direction := filters.Direction
	if direction == "" {
		direction = types.DirectionOutgoing
	}

	args := []interface{}{workspaceID}
	var clauses []string

	switch direction {
	case types.DirectionOutgoing:
		args = append(args, memoryID)
		clauses = append(clauses, fmt.Sprintf("source_id = $%d", len(args)))
	case types.DirectionIncoming:
		args = append(args, memoryID)
		clauses = append(clauses, fmt.Sprintf("target_id = $%d", len(args)))
	case types.DirectionBoth:
		args = append(args, memoryID, memoryID)
		clauses = append(clauses, fmt.Sprintf("(source_id = $%d OR target_id = $%d)", len(args)-1, len(args)))
	}

	if len(filters.RelationshipTypes) > 0 {
		placeholders := make([]string, len(filters.RelationshipTypes))
		for i, rt := range filters.RelationshipTypes {
			args = append(args, rt)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, "relationship IN ("+strings.Join(placeholders, ",")+")")
	}
	if filters.MinStrength != nil {
		args = append(args, *filters.MinStrength)
		clauses = append(clauses, fmt.Sprintf("strength >= $%d", len(args)))
	}

	query := `
		SELECT id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at
		FROM associations WHERE workspace_id = $1
	`
	for _, c := range clauses {
		query += " AND " + c
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: get associations: %w", err)
	}
	defer rows.Close()

	var out []*types.Association
	for rows.Next() {
		var a types.Association
		var metaJSON string
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.SourceID, &a.TargetID, &a.Relationship, &a.Strength, &metaJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan association: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal association metadata: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DeleteAssociation removes an edge by id.
func (s *MemoryStore) DeleteAssociation(ctx context.Context, workspaceID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM associations WHERE workspace_id = $1 AND id = $2`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("postgres: delete association: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

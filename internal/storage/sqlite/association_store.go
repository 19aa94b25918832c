package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
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
		return fmt.Errorf("sqlite: marshal association metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO associations (id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at)
		VALUES (?,?,?,?,?,?,?,?)
	`, a.ID, a.WorkspaceID, a.SourceID, a.TargetID, a.Relationship, a.Strength, string(metaJSON), a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrUniqueConstraint
		}
		return fmt.Errorf("sqlite: insert association: %w", err)
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

	var clauses []string
	var args []interface{}
	args = append(args, workspaceID)

	switch direction {
	case types.DirectionOutgoing:
		clauses = append(clauses, "source_id = ?")
		args = append(args, memoryID)
	case types.DirectionIncoming:
		clauses = append(clauses, "target_id = ?")
		args = append(args, memoryID)
	case types.DirectionBoth:
		clauses = append(clauses, "(source_id = ? OR target_id = ?)")
		args = append(args, memoryID, memoryID)
	}

	if len(filters.RelationshipTypes) > 0 {
		placeholders := ""
		for i, rt := range filters.RelationshipTypes {
			if i > 0 {
				placeholders += ","
			}
			placeholders += "?"
			args = append(args, rt)
		}
		clauses = append(clauses, "relationship IN ("+placeholders+")")
	}
	if filters.MinStrength != nil {
		clauses = append(clauses, "strength >= ?")
		args = append(args, *filters.MinStrength)
	}

	query := `
		SELECT id, workspace_id, source_id, target_id, relationship, strength, metadata, created_at
		FROM associations WHERE workspace_id = ?
	`
	for _, c := range clauses {
		query += " AND " + c
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: get associations: %w", err)
	}
	defer rows.Close()

	var out []*types.Association
	for rows.Next() {
		var a types.Association
		var metaJSON string
		if err := rows.Scan(&a.ID, &a.WorkspaceID, &a.SourceID, &a.TargetID, &a.Relationship, &a.Strength, &metaJSON, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan association: %w", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &a.Metadata); err != nil {
			return nil, fmt.Errorf("sqlite: unmarshal association metadata: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// DeleteAssociation removes an edge by id.
func (s *MemoryStore) DeleteAssociation(ctx context.Context, workspaceID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM associations WHERE workspace_id = ? AND id = ?`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete association: %w", err)
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

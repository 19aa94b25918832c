// Package association validates and creates typed edges between memories
// and runs bounded graph traversals over them (spec §4.7).
package association

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/memlayer/memcore/internal/ontology"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// Service validates and persists associations and runs graph traversals
// over the association store.
type Service struct {
	store    storage.Backend
	ontology *ontology.Service
}

// New constructs an association Service.
func New(store storage.Backend, ont *ontology.Service) *Service {
	return &Service{store: store, ontology: ont}
}

// Input describes a requested association edge.
type Input struct {
	WorkspaceID  string
	SourceID     string
	TargetID     string
	Relationship string
	Strength     float64
	Metadata     map[string]interface{}
}

// ErrSelfAssociation is returned when source and target are the same
// memory.
var ErrSelfAssociation = errors.New("association: source and target must differ")

// Associate validates and creates an edge: both endpoints exist,
// source != target, and the relationship is a known ontology type.
// Unique-edge violations surface storage.ErrUniqueConstraint directly so
// callers can distinguish it from other failures (spec §4.7).
func (s *Service) Associate(ctx context.Context, in Input) (*types.Association, error) {
	if in.SourceID == in.TargetID {
		return nil, ErrSelfAssociation
	}
	if err := s.ontology.Validate(in.Relationship); err != nil {
		return nil, err
	}
	if _, err := s.store.GetMemory(ctx, in.WorkspaceID, in.SourceID, false); err != nil {
		return nil, fmt.Errorf("association: source memory: %w", err)
	}
	if _, err := s.store.GetMemory(ctx, in.WorkspaceID, in.TargetID, false); err != nil {
		return nil, fmt.Errorf("association: target memory: %w", err)
	}

	if in.Strength == 0 {
		in.Strength = 1.0
	}

	assoc := &types.Association{
		ID:           "assoc_" + uuid.NewString(),
		WorkspaceID:  in.WorkspaceID,
		SourceID:     in.SourceID,
		TargetID:     in.TargetID,
		Relationship: in.Relationship,
		Strength:     in.Strength,
		Metadata:     in.Metadata,
		CreatedAt:    time.Now(),
	}
	if err := s.store.CreateAssociation(ctx, assoc); err != nil {
		return nil, err
	}
	return assoc, nil
}

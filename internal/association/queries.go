package association

import (
	"context"

	"github.com/memlayer/memcore/internal/ontology"
	"github.com/memlayer/memcore/pkg/types"
)

// causalRelationshipTypes lists every ontology type in the causal category,
// looked up from the ontology on each call.
func causalRelationshipTypes(ont *ontology.Service) []string {
	relTypes, err := ont.ByCategory(ontology.CategoryCausal)
	if err != nil {
		return nil
	}
	return relTypes
}

// GetCausalChain runs an incoming traversal from target restricted to
// causal-category relationship types (spec §4.7).
func (s *Service) GetCausalChain(ctx context.Context, workspaceID, target string, maxDepth int) (TraverseResult, error) {
	return s.Traverse(ctx, workspaceID, target, TraverseOptions{
		MaxDepth:          maxDepth,
		RelationshipTypes: causalRelationshipTypes(s.ontology),
		Direction:         types.DirectionIncoming,
	})
}

// GetSolutionsForProblem returns the set of source memory ids connected to
// problemID via an incoming "solves" or "addresses" edge (spec §4.7).
func (s *Service) GetSolutionsForProblem(ctx context.Context, workspaceID, problemID string) ([]string, error) {
	result, err := s.Traverse(ctx, workspaceID, problemID, TraverseOptions{
		MaxDepth:          1,
		RelationshipTypes: []string{"solves", "addresses"},
		Direction:         types.DirectionIncoming,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(result.UniqueNodes))
	for _, id := range result.UniqueNodes {
		if id != problemID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FindContradictions runs a depth-1, both-direction traversal from
// memoryID limited to "contradicts" edges (spec §4.7).
func (s *Service) FindContradictions(ctx context.Context, workspaceID, memoryID string) (TraverseResult, error) {
	return s.Traverse(ctx, workspaceID, memoryID, TraverseOptions{
		MaxDepth:          1,
		RelationshipTypes: []string{"contradicts"},
		Direction:         types.DirectionBoth,
	})
}

package association

import (
	"context"
	"fmt"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// Step is one (edge, node) hop in a traversal path.
type Step struct {
	Edge *types.Association
	Node string
}

// Path is a sequence of hops from the traversal's start node, with the
// product of every edge's strength along the way.
type Path struct {
	Steps         []Step
	TotalStrength float64
}

// TraverseResult is the return shape of a bounded graph traversal (spec
// §4.7).
type TraverseResult struct {
	Paths       []Path
	UniqueNodes []string
	TotalPaths  int
}

// TraverseOptions configures a traversal.
type TraverseOptions struct {
	MaxDepth          int
	RelationshipTypes []string
	Direction         types.Direction
	MinStrength       *float64
}

const (
	defaultTraverseMaxDepth = 3
)

// Traverse runs a bounded depth-first path enumeration from startID,
// following edges that match direction and relationship_types, dropping
// edges below min_strength. A node can't repeat within a single path
// (cycle prevention) but can appear in multiple sibling paths (diamond
// patterns), matching spec §4.7.
func (s *Service) Traverse(ctx context.Context, workspaceID, startID string, opts TraverseOptions) (TraverseResult, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultTraverseMaxDepth
	}
	direction := opts.Direction
	if direction == "" {
		direction = types.DirectionOutgoing
	}

	bounds := storage.GraphBounds{MaxHops: maxDepth}
	bounds.Normalize()
	checker := newBoundsChecker(bounds)

	filters := storage.AssociationFilters{
		Direction:         direction,
		RelationshipTypes: opts.RelationshipTypes,
		MinStrength:       opts.MinStrength,
	}

	var result TraverseResult
	visited := map[string]bool{startID: true}
	uniqueNodes := map[string]bool{startID: true}

	var dfs func(currentID string, path []Step, depth int) error
	dfs = func(currentID string, path []Step, depth int) error {
		if err := checker.canContinue(ctx, depth); err != nil {
			return err
		}
		if depth >= maxDepth {
			return nil
		}

		edges, err := s.store.GetAssociations(ctx, workspaceID, currentID, filters)
		if err != nil {
			return fmt.Errorf("association: traverse fetch edges for %s: %w", currentID, err)
		}

		for _, edge := range edges {
			nextID := otherEnd(edge, currentID)
			if nextID == "" || visited[nextID] {
				continue
			}
			checker.recordEdge()

			nextPath := append(append([]Step{}, path...), Step{Edge: edge, Node: nextID})
			strength := pathStrength(nextPath)

			visited[nextID] = true
			uniqueNodes[nextID] = true
			checker.recordNode()

			result.Paths = append(result.Paths, Path{Steps: nextPath, TotalStrength: strength})

			if err := dfs(nextID, nextPath, depth+1); err != nil {
				visited[nextID] = false
				return err
			}
			visited[nextID] = false
		}
		return nil
	}

	if err := dfs(startID, nil, 0); err != nil {
		return result, err
	}

	result.UniqueNodes = make([]string, 0, len(uniqueNodes))
	for id := range uniqueNodes {
		result.UniqueNodes = append(result.UniqueNodes, id)
	}
	result.TotalPaths = len(result.Paths)
	return result, nil
}

func otherEnd(edge *types.Association, currentID string) string {
	if edge.SourceID == currentID {
		return edge.TargetID
	}
	if edge.TargetID == currentID {
		return edge.SourceID
	}
	return ""
}

func pathStrength(steps []Step) float64 {
	strength := 1.0
	for _, step := range steps {
		strength *= step.Edge.Strength
	}
	return strength
}

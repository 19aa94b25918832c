package association

import (
	"context"
	"fmt"
	"time"

	"github.com/memlayer/memcore/internal/storage"
)

// boundsChecker tracks nodes visited, edges traversed, and elapsed time
// against storage.GraphBounds to keep traversal from exploding on a
// densely connected graph (spec §4.7, §5).
type boundsChecker struct {
	bounds       storage.GraphBounds
	nodesVisited int
	edgesVisited int
	startTime    time.Time
}

func newBoundsChecker(bounds storage.GraphBounds) *boundsChecker {
	bounds.Normalize()
	return &boundsChecker{bounds: bounds, startTime: time.Now()}
}

// canContinue checks context cancellation and every bound at the given
// depth, returning storage.ErrGraphBoundsExceeded (wrapped) when a
// resource bound is hit.
func (b *boundsChecker) canContinue(ctx context.Context, depth int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if b.nodesVisited >= b.bounds.MaxNodes {
		return fmt.Errorf("%w: max nodes (%d) exceeded", storage.ErrGraphBoundsExceeded, b.bounds.MaxNodes)
	}
	if b.edgesVisited >= b.bounds.MaxEdges {
		return fmt.Errorf("%w: max edges (%d) exceeded", storage.ErrGraphBoundsExceeded, b.bounds.MaxEdges)
	}
	if depth > b.bounds.MaxHops {
		return fmt.Errorf("%w: max hops (%d) exceeded at depth %d", storage.ErrGraphBoundsExceeded, b.bounds.MaxHops, depth)
	}
	if time.Since(b.startTime) >= b.bounds.Timeout {
		return fmt.Errorf("%w: timeout (%v) exceeded", storage.ErrGraphBoundsExceeded, b.bounds.Timeout)
	}
	return nil
}

func (b *boundsChecker) recordNode() { b.nodesVisited++ }
func (b *boundsChecker) recordEdge() { b.edgesVisited++ }

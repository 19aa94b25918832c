// Package decay applies importance decay and archival to memories that
// haven't been accessed recently (spec §4.6).
package decay

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/pkg/types"
)

// Defaults matching spec §4.6 exactly.
const (
	DefaultMinAgeDays            = 7
	DefaultDecayRate             = 0.95
	DefaultMinImportance         = 0.1
	DefaultWriteThreshold        = 0.001
	DefaultArchiveThreshold      = 0.2
	DefaultArchiveMaxAccessCount = 3
	DefaultArchiveMinAgeDays     = 90
	DefaultAccessBoostFactor     = 1.1
)

// Config holds the tunable decay/archival parameters.
type Config struct {
	MinAgeDays            int
	DecayRate             float64
	MinImportance         float64
	WriteThreshold        float64
	ArchiveThreshold      float64
	ArchiveMaxAccessCount int
	ArchiveMinAgeDays     int
	AccessBoostFactor     float64
}

// WithDefaults fills zero-valued fields with the package defaults.
func (c Config) WithDefaults() Config {
	if c.MinAgeDays <= 0 {
		c.MinAgeDays = DefaultMinAgeDays
	}
	if c.DecayRate <= 0 {
		c.DecayRate = DefaultDecayRate
	}
	if c.MinImportance <= 0 {
		c.MinImportance = DefaultMinImportance
	}
	if c.WriteThreshold <= 0 {
		c.WriteThreshold = DefaultWriteThreshold
	}
	if c.ArchiveThreshold <= 0 {
		c.ArchiveThreshold = DefaultArchiveThreshold
	}
	if c.ArchiveMaxAccessCount <= 0 {
		c.ArchiveMaxAccessCount = DefaultArchiveMaxAccessCount
	}
	if c.ArchiveMinAgeDays <= 0 {
		c.ArchiveMinAgeDays = DefaultArchiveMinAgeDays
	}
	if c.AccessBoostFactor <= 0 {
		c.AccessBoostFactor = DefaultAccessBoostFactor
	}
	return c
}

// daysSince returns the whole days elapsed between t and now, clamped to
// be non-negative.
func daysSince(t time.Time, now time.Time) float64 {
	d := now.Sub(t).Hours() / 24.0
	if d < 0 {
		d = 0
	}
	return math.Floor(d)
}

// NewImportance applies the exponential decay formula from spec §4.6:
//
//	new_importance = max(min_importance, importance * decay_rate^days_since_access)
func NewImportance(importance float64, lastAccessedAt, now time.Time, cfg Config) float64 {
	days := daysSince(lastAccessedAt, now)
	decayed := importance * math.Pow(cfg.DecayRate, days)
	if decayed < cfg.MinImportance {
		decayed = cfg.MinImportance
	}
	return decayed
}

// ShouldWrite reports whether the new importance differs enough from the
// old one to justify a write (spec §4.6 "Write only if |new-old| > 0.001").
func ShouldWrite(oldImportance, newImportance float64, cfg Config) bool {
	return math.Abs(newImportance-oldImportance) > cfg.WriteThreshold
}

// ShouldArchive reports whether mem meets every archival criterion (spec
// §4.6): low importance, little access, old enough, and not pinned.
func ShouldArchive(mem *types.Memory, now time.Time, cfg Config) bool {
	if mem.Pinned {
		return false
	}
	if mem.Importance > cfg.ArchiveThreshold {
		return false
	}
	if mem.AccessCount > cfg.ArchiveMaxAccessCount {
		return false
	}
	age := daysSince(mem.CreatedAt, now)
	return age >= float64(cfg.ArchiveMinAgeDays)
}

// AccessBoost applies the access-boost formula (spec §4.6), skipped for
// pinned memories.
func AccessBoost(mem *types.Memory, cfg Config) float64 {
	if mem.Pinned {
		return mem.Importance
	}
	boosted := mem.Importance * cfg.AccessBoostFactor
	if boosted > 1.0 {
		boosted = 1.0
	}
	return boosted
}

// PassResult accumulates counts across a decay pass (spec §4.6 "Recurring
// pass ... accumulate counts").
type PassResult struct {
	WorkspacesProcessed int
	MemoriesDecayed     int
	MemoriesArchived    int
	Errors              int
}

// RunPass iterates every workspace, decaying and archiving eligible
// memories, and returns the accumulated counts. Individual memory failures
// are logged and counted without aborting the pass.
func RunPass(ctx context.Context, store storage.Backend, cfg Config, logger *slog.Logger) (PassResult, error) {
	cfg = cfg.WithDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()

	workspaceIDs, err := store.ListAllWorkspaceIDs(ctx)
	if err != nil {
		return PassResult{}, fmt.Errorf("decay: listing workspaces failed: %w", err)
	}

	var result PassResult
	for _, workspaceID := range workspaceIDs {
		result.WorkspacesProcessed++

		decayCandidates, err := store.GetMemoriesForDecay(ctx, workspaceID, cfg.MinAgeDays, true)
		if err != nil {
			logger.Error("decay: listing decay candidates failed", "workspace_id", workspaceID, "error", err)
			result.Errors++
		} else {
			for _, mem := range decayCandidates {
				newImportance := NewImportance(mem.Importance, mem.LastAccessedAt, now, cfg)
				if !ShouldWrite(mem.Importance, newImportance, cfg) {
					continue
				}
				_, err := store.UpdateMemory(ctx, workspaceID, mem.ID, storage.MemoryUpdate{Importance: &newImportance})
				if err != nil {
					logger.Error("decay: writing decayed importance failed", "memory_id", mem.ID, "error", err)
					result.Errors++
					continue
				}
				result.MemoriesDecayed++
			}
		}

		archivalCandidates, err := store.GetArchivalCandidates(ctx, workspaceID, cfg.ArchiveThreshold, cfg.ArchiveMaxAccessCount, cfg.ArchiveMinAgeDays)
		if err != nil {
			logger.Error("decay: listing archival candidates failed", "workspace_id", workspaceID, "error", err)
			result.Errors++
			continue
		}
		for _, mem := range archivalCandidates {
			if !ShouldArchive(mem, now, cfg) {
				continue
			}
			status := types.StatusArchived
			_, err := store.UpdateMemory(ctx, workspaceID, mem.ID, storage.MemoryUpdate{Status: &status})
			if err != nil {
				logger.Error("decay: archiving memory failed", "memory_id", mem.ID, "error", err)
				result.Errors++
				continue
			}
			result.MemoriesArchived++
		}
	}

	return result, nil
}

// Package memory is the central orchestrator: ingestion (remember,
// ingest_fact), the post-store pipeline, and the recall pipeline (spec
// §4.3-§4.5). It composes internal/dedup, internal/ontology,
// internal/association, internal/tiering, internal/contradiction,
// internal/extraction, internal/reranker, internal/decay, and
// internal/providers without introducing any new storage or provider
// concerns of its own.
package memory

import (
	"log/slog"

	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/contradiction"
	"github.com/memlayer/memcore/internal/dedup"
	"github.com/memlayer/memcore/internal/extraction"
	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/reranker"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/internal/tiering"
)

// Default tuning parameters. Spec §4.4/§4.5 name most of these explicitly;
// AutoAssocTopN has no stated default in spec prose ("top-N nearest
// neighbors") so this package picks 3, matching the teacher's default
// relationship fan-out in its own auto-link pass.
const (
	DefaultAutoAssocThreshold        = 0.85
	DefaultAutoAssocTopN             = 3
	DefaultOverfetchMultiplier       = 3
	DefaultHybridOverfetchMultiplier = 2 // hybrid's "reduced over-fetch" (spec §4.5) vs rag mode's 3x
	DefaultRecencyHalfLifeHours      = 168.0
	DefaultRecencyWeight            = 0.2
	DefaultGraphExpansionDepth       = 1
	DefaultGraphExpansionStrength    = 0.3
	DefaultHybridRAGThreshold        = 0.7
)

// Config holds every tunable parameter the orchestrator needs. Zero values
// fall back to the package defaults via WithDefaults.
type Config struct {
	AutoAssocThreshold     float64
	AutoAssocTopN          int
	DecomposeEnabled       bool
	DecomposeMinLength     int
	OverfetchMultiplier    int
	HybridOverfetchMultiplier int
	RecencyHalfLifeHours   float64
	RecencyWeight          float64
	GraphExpansionDepth    int
	GraphExpansionStrength float64
	HybridRAGThreshold     float64
	RerankerStrategy       reranker.Strategy
}

// WithDefaults fills unset fields with package defaults. DecomposeEnabled
// has no "unset" sentinel (a bool zero value is a legitimate false), so
// callers who want fact decomposition must set it explicitly.
func (c Config) WithDefaults() Config {
	if c.AutoAssocThreshold <= 0 {
		c.AutoAssocThreshold = DefaultAutoAssocThreshold
	}
	if c.AutoAssocTopN <= 0 {
		c.AutoAssocTopN = DefaultAutoAssocTopN
	}
	if c.DecomposeMinLength <= 0 {
		c.DecomposeMinLength = 20
	}
	if c.OverfetchMultiplier <= 0 {
		c.OverfetchMultiplier = DefaultOverfetchMultiplier
	}
	if c.HybridOverfetchMultiplier <= 0 {
		c.HybridOverfetchMultiplier = DefaultHybridOverfetchMultiplier
	}
	if c.RecencyHalfLifeHours <= 0 {
		c.RecencyHalfLifeHours = DefaultRecencyHalfLifeHours
	}
	if c.RecencyWeight <= 0 {
		c.RecencyWeight = DefaultRecencyWeight
	}
	if c.GraphExpansionDepth <= 0 {
		c.GraphExpansionDepth = DefaultGraphExpansionDepth
	}
	if c.GraphExpansionStrength <= 0 {
		c.GraphExpansionStrength = DefaultGraphExpansionStrength
	}
	if c.HybridRAGThreshold <= 0 {
		c.HybridRAGThreshold = DefaultHybridRAGThreshold
	}
	if c.RerankerStrategy == "" {
		c.RerankerStrategy = reranker.StrategyNone
	}
	return c
}

// Scheduler is the minimal task-dispatch dependency the orchestrator needs,
// kept narrow so this package never imports internal/scheduler directly
// (mirrors internal/ontology.Completer's narrow-dependency pattern). A nil
// Scheduler, or a ScheduleTask call that returns an error, means every
// background step runs inline instead (spec §7 TaskDispatchFailure: "fall
// back to inline execution").
type Scheduler interface {
	ScheduleTask(taskType string, payload map[string]interface{}) (string, error)
}

// Service is the memory core orchestrator.
type Service struct {
	store         storage.Backend
	embedder      providers.EmbeddingProvider
	llm           *providers.LLMRegistry
	dedup         *dedup.Service
	assoc         *association.Service
	tiering       *tiering.Service
	contradiction *contradiction.Service
	extraction    *extraction.Service
	reranker      reranker.Reranker
	scheduler     Scheduler
	cfg           Config
	logger        *slog.Logger
}

// Deps bundles every collaborator Service needs. Fields besides Store are
// optional: a nil EmbeddingProvider makes every ingested memory
// non-semantic (no embedding, no similarity-based dedup/search); a nil
// Scheduler forces every background step inline; a nil Reranker leaves
// recall candidates in their initial similarity order.
type Deps struct {
	Store         storage.Backend
	Embedder      providers.EmbeddingProvider
	LLM           *providers.LLMRegistry
	Dedup         *dedup.Service
	Association   *association.Service
	Tiering       *tiering.Service
	Contradiction *contradiction.Service
	Extraction    *extraction.Service
	Reranker      reranker.Reranker
	Scheduler     Scheduler
	Logger        *slog.Logger
}

// New constructs a Service from deps and cfg.
func New(deps Deps, cfg Config) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:         deps.Store,
		embedder:      deps.Embedder,
		llm:           deps.LLM,
		dedup:         deps.Dedup,
		assoc:         deps.Association,
		tiering:       deps.Tiering,
		contradiction: deps.Contradiction,
		extraction:    deps.Extraction,
		reranker:      deps.Reranker,
		scheduler:     deps.Scheduler,
		cfg:           cfg.WithDefaults(),
		logger:        logger,
	}
}

// Command memcore-worker wires the memory core to a concrete storage
// backend and provider set and runs its background task scheduler: fact
// decomposition, auto-association enrichment, tier generation, and the
// periodic decay pass (spec §4.11).
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memlayer/memcore/internal/association"
	"github.com/memlayer/memcore/internal/config"
	"github.com/memlayer/memcore/internal/contradiction"
	"github.com/memlayer/memcore/internal/decay"
	"github.com/memlayer/memcore/internal/dedup"
	"github.com/memlayer/memcore/internal/extraction"
	"github.com/memlayer/memcore/internal/memory"
	"github.com/memlayer/memcore/internal/ontology"
	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/reranker"
	"github.com/memlayer/memcore/internal/scheduler"
	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/internal/storage/postgres"
	"github.com/memlayer/memcore/internal/storage/sqlite"
	"github.com/memlayer/memcore/internal/tiering"
)

var (
	dsnOverride = flag.String("dsn", "", "storage DSN (overrides MEMCORE_STORAGE_DSN)")
	configPath  = flag.String("config", "", "path to YAML config file (optional, uses env vars by default)")
)

func main() {
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.LoadConfigFile(*configPath)
	if err != nil {
		log.Fatalf("memcore-worker: failed to load configuration: %v", err)
	}
	if *dsnOverride != "" {
		cfg.Storage.DSN = *dsnOverride
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatalf("memcore-worker: failed to open storage backend: %v", err)
	}

	embedder := providers.NewNoopEmbedder(cfg.Providers.EmbeddingDim)
	llm := providers.NewLLMRegistry(&providers.NoopLLM{Response: "{}"})

	ont := ontology.New(providers.OntologyCompleter{Registry: llm}, logger)
	assoc := association.New(store, ont)
	dedupSvc := dedup.New(store, cfg.Dedup.ToDedupConfig(), logger)
	tieringSvc := tiering.New(llm, store, logger)
	extractionSvc := extraction.New(llm, logger)
	contradictionSvc := contradiction.New(llm, store, assoc, cfg.Contradiction.ToContradictionConfig(), logger)

	sched := scheduler.New(cfg.Scheduler.ToSchedulerConfig(), logger)

	memSvc := memory.New(memory.Deps{
		Store:         store,
		Embedder:      embedder,
		LLM:           llm,
		Dedup:         dedupSvc,
		Association:   assoc,
		Tiering:       tieringSvc,
		Contradiction: contradictionSvc,
		Extraction:    extractionSvc,
		Reranker:      pickReranker(cfg.Providers.RerankerStrategy, embedder, logger),
		Scheduler:     sched,
		Logger:        logger,
	}, cfg.Memory.ToMemoryConfig(reranker.Strategy(cfg.Providers.RerankerStrategy)))

	decayCfg := cfg.Decay.ToDecayConfig()
	registerHandlers(sched, memSvc, tieringSvc, store, decayCfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)

	interval := time.Duration(cfg.Decay.PassIntervalHours) * time.Hour
	sched.ScheduleRecurring("decay_pass", interval, nil)

	logger.Info("memcore-worker: started", "storage_engine", cfg.Storage.Engine)
	<-ctx.Done()

	logger.Info("memcore-worker: shutting down")
	sched.Stop()
}

// registerHandlers wires every task type dispatchOrRun and ScheduleTask
// callers in internal/memory refer to, plus the recurring decay pass.
func registerHandlers(sched *scheduler.Service, memSvc *memory.Service, tieringSvc *tiering.Service, store storage.Backend, decayCfg decay.Config, logger *slog.Logger) {
	sched.RegisterHandler("decompose_facts", func(ctx context.Context, payload map[string]interface{}) error {
		workspaceID, memoryID, ok := taskTarget(payload)
		if !ok {
			return nil
		}
		return memSvc.DecomposeFacts(ctx, workspaceID, memoryID)
	})

	sched.RegisterHandler("auto_enrich", func(ctx context.Context, payload map[string]interface{}) error {
		workspaceID, memoryID, ok := taskTarget(payload)
		if !ok {
			return nil
		}
		return memSvc.HandleAutoEnrich(ctx, workspaceID, memoryID)
	})

	sched.RegisterHandler("generate_tiers", func(ctx context.Context, payload map[string]interface{}) error {
		workspaceID, memoryID, ok := taskTarget(payload)
		if !ok {
			return nil
		}
		return tieringSvc.GenerateTiers(ctx, workspaceID, memoryID, false)
	})

	sched.RegisterHandler("decay_pass", func(ctx context.Context, payload map[string]interface{}) error {
		result, err := decay.RunPass(ctx, store, decayCfg, logger)
		if err != nil {
			return err
		}
		logger.Info("memcore-worker: decay pass complete",
			"workspaces", result.WorkspacesProcessed,
			"decayed", result.MemoriesDecayed,
			"archived", result.MemoriesArchived,
			"errors", result.Errors)
		return nil
	})
}

func taskTarget(payload map[string]interface{}) (workspaceID, memoryID string, ok bool) {
	workspaceID, _ = payload["workspace_id"].(string)
	memoryID, _ = payload["memory_id"].(string)
	return workspaceID, memoryID, workspaceID != "" && memoryID != ""
}

func pickReranker(strategy string, embedder providers.EmbeddingProvider, logger *slog.Logger) reranker.Reranker {
	switch reranker.Strategy(strategy) {
	case reranker.StrategyRRF:
		return reranker.NewRRFReranker(embedder, 60, 1, logger)
	case reranker.StrategyNone, "":
		return reranker.NoneReranker{}
	default:
		return reranker.NoneReranker{}
	}
}

func openStore(cfg config.StorageConfig) (storage.Backend, error) {
	switch cfg.Engine {
	case "postgres":
		return postgres.NewMemoryStore(cfg.DSN)
	default:
		return sqlite.NewMemoryStore(cfg.DSN)
	}
}


// Package tiering generates the abstract/overview summary tiers a memory
// carries alongside its full content (spec §4.9).
package tiering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/memlayer/memcore/internal/providers"
	"github.com/memlayer/memcore/internal/storage"
)

const (
	abstractSystemPrompt = "You are a concise summarization assistant. Produce a single short " +
		"sentence capturing the key factual point of the provided text. " +
		"Be direct and specific, no filler, no speculation, no editorializing. " +
		"Preserve important details like names, numbers, and technical specifics. " +
		"Return ONLY the summary, nothing else."

	overviewSystemPrompt = "You are a concise summarization assistant. Produce a 2-3 sentence " +
		"overview of the provided text. Stick strictly to the facts stated, " +
		"no filler, no speculation, no editorializing. " +
		"Preserve important details like names, numbers, and technical specifics. " +
		"Return ONLY the overview, nothing else."

	// temperatureFactor matches the original service's tier-generation calls.
	temperatureFactor = 0.7

	// Fallback truncation lengths when the LLM call fails (spec §4.9).
	abstractFallbackLength = 100
	overviewFallbackLength = 500
)

// Service generates tiered summaries via the LLM registry's
// "tier_generation" profile, falling back to truncated content on failure.
type Service struct {
	llm    *providers.LLMRegistry
	store  storage.Backend
	logger *slog.Logger
}

// New constructs a tiering Service.
func New(llm *providers.LLMRegistry, store storage.Backend, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, store: store, logger: logger}
}

// GenerateAbstract produces a one-sentence tier-1 summary of content.
func (s *Service) GenerateAbstract(ctx context.Context, content string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	resp, err := s.llm.Complete(ctx, providers.CompletionRequest{
		Prompt:            abstractSystemPrompt + "\n\nSummarize this:\n\n" + content,
		MaxTokens:         maxTokens,
		TemperatureFactor: temperatureFactor,
	}, "tier_generation")
	if err != nil {
		s.logger.Warn("tiering: abstract generation failed, falling back to truncation", "error", err)
		return truncate(content, abstractFallbackLength)
	}
	return resp.Content
}

// GenerateOverview produces a 2-3 sentence tier-2 summary of content.
func (s *Service) GenerateOverview(ctx context.Context, content string, maxTokens int) string {
	if maxTokens <= 0 {
		maxTokens = 500
	}
	resp, err := s.llm.Complete(ctx, providers.CompletionRequest{
		Prompt:            overviewSystemPrompt + "\n\nProvide an overview of this:\n\n" + content,
		MaxTokens:         maxTokens,
		TemperatureFactor: temperatureFactor,
	}, "tier_generation")
	if err != nil {
		s.logger.Warn("tiering: overview generation failed, falling back to truncation", "error", err)
		return truncate(content, overviewFallbackLength)
	}
	return resp.Content
}

// GenerateTiersForContent produces (abstract, overview) without persisting
// anything. Overview is generated first; abstract is derived from the
// overview, since a shorter input yields a better short summary.
func (s *Service) GenerateTiersForContent(ctx context.Context, content string) (abstract, overview string) {
	overview = s.GenerateOverview(ctx, content, 0)
	abstract = s.GenerateAbstract(ctx, overview, 0)
	return abstract, overview
}

// GenerateTiers loads the memory, generates and persists its tiers unless
// they already exist and force is false.
func (s *Service) GenerateTiers(ctx context.Context, workspaceID, memoryID string, force bool) error {
	memory, err := s.store.GetMemory(ctx, workspaceID, memoryID, false)
	if err != nil {
		return fmt.Errorf("tiering: loading memory failed: %w", err)
	}

	if !force && memory.Abstract != "" && memory.Overview != "" {
		s.logger.Debug("tiering: tiers already exist, skipping", "memory_id", memoryID)
		return nil
	}

	overview := memory.Overview
	if overview == "" || force {
		overview = s.GenerateOverview(ctx, memory.Content, 0)
	}

	abstract := memory.Abstract
	if abstract == "" || force {
		abstract = s.GenerateAbstract(ctx, overview, 0)
	}

	_, err = s.store.UpdateMemory(ctx, workspaceID, memoryID, storage.MemoryUpdate{
		Abstract: &abstract,
		Overview: &overview,
	})
	if err != nil {
		return fmt.Errorf("tiering: writing tiers failed: %w", err)
	}
	s.logger.Info("tiering: generated tiers", "memory_id", memoryID)
	return nil
}

func truncate(content string, length int) string {
	if len(content) <= length {
		return content
	}
	return content[:length] + "..."
}

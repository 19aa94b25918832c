// Package extraction turns free-form text into category-tagged memory
// candidates and decomposes a single memory's content into atomic facts
// (spec §4.8).
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/memlayer/memcore/internal/providers"
)

// EXTRACTION_SYSTEM_PROMPT instructs the LLM to pull category-tagged
// memory candidates out of a session context.
const EXTRACTION_SYSTEM_PROMPT = `You are a memory extraction assistant. Read the conversation context below ` +
	`and extract discrete, durable facts worth remembering long-term. Ignore small talk and anything ` +
	`purely transient.

Classify each extracted fact into exactly one of these categories:
- profile: stable facts about who the user is (role, employer, skills)
- preferences: likes, dislikes, and working-style preferences
- entities: named projects, organizations, tools, or systems mentioned
- events: things that happened at a specific point in time
- cases: concrete situations, problems, or requests handled
- patterns: recurring behaviors or habits observed across interactions

Return ONLY a JSON array of objects, each with "content" (string), "category" (one of the above), ` +
	`"importance" (0.0-1.0), and optionally "tags" (array of strings). Return an empty array if nothing ` +
	`is worth remembering.`

const decompositionSystemPrompt = `Break the following memory content into a JSON array of atomic facts. ` +
	`Each fact must stand alone and be understandable without the others. Do not add facts that ` +
	`are not stated in the content. Return ONLY a JSON array of objects, each with a "content" field. ` +
	`If the content is already a single atomic fact, return an array with exactly one matching element.`

const extractionProfile = "extraction"

const simpleExtractionMaxContentLength = 1000

// Fact is a single category-tagged memory candidate, whether produced by
// full-context extraction or content decomposition.
type Fact struct {
	Content    string
	Category   Category
	Importance float64
	Tags       []string
}

// Options configures an Extract call.
type Options struct {
	// Categories restricts extraction to this subset. Nil means all
	// known categories are allowed.
	Categories []Category
}

// Service extracts memory candidates from text via the LLM registry's
// "extraction" profile, falling back to a trivial single-fact extraction
// when no LLM is configured or the call fails.
type Service struct {
	llm    *providers.LLMRegistry
	logger *slog.Logger
}

// New constructs an extraction Service. llm may be nil, in which case
// Extract always uses its fallback path and DecomposeToFacts returns an
// error.
func New(llm *providers.LLMRegistry, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, logger: logger}
}

// Extract pulls category-tagged facts out of context using the LLM, or
// falls back to a single auto-extracted memory if the LLM is unavailable
// or returns nothing parseable.
func (s *Service) Extract(ctx context.Context, extractionContext string, opts Options) ([]Fact, error) {
	categories := opts.Categories
	if len(categories) == 0 {
		categories = AllCategories
	}

	if s.llm == nil {
		return s.simpleExtraction(extractionContext, categories), nil
	}

	resp, err := s.llm.Complete(ctx, providers.CompletionRequest{
		Prompt: EXTRACTION_SYSTEM_PROMPT + "\n\nContext:\n\n" + extractionContext,
	}, extractionProfile)
	if err != nil {
		s.logger.Warn("extraction: llm call failed, falling back to simple extraction", "error", err)
		return s.simpleExtraction(extractionContext, categories), nil
	}

	facts := parseLLMResponse(resp.Content, categories)
	if len(facts) == 0 {
		return s.simpleExtraction(extractionContext, categories), nil
	}
	return facts, nil
}

// simpleExtraction is the no-LLM fallback: a single CASES-category memory
// carrying the (possibly truncated) raw context, tagged "auto-extracted".
// Blank or whitespace-only context yields no facts at all.
func (s *Service) simpleExtraction(extractionContext string, categories []Category) []Fact {
	trimmed := strings.TrimSpace(extractionContext)
	if trimmed == "" {
		return nil
	}
	if !categoryAllowed(categories, CategoryCases) {
		return nil
	}

	content := extractionContext
	if len(content) > simpleExtractionMaxContentLength {
		content = content[:simpleExtractionMaxContentLength]
	}

	return []Fact{{
		Content:    content,
		Category:   CategoryCases,
		Importance: defaultImportance,
		Tags:       []string{"auto-extracted"},
	}}
}

func categoryAllowed(categories []Category, c Category) bool {
	for _, cat := range categories {
		if cat == c {
			return true
		}
	}
	return false
}

// DecomposeToFacts asks the LLM to break content into atomic facts (spec
// §4.8 step 2). The returned contents are exactly the facts the caller
// should consider ingesting; no category filtering is applied since
// decomposition facts are categorized later by the caller if needed.
func (s *Service) DecomposeToFacts(ctx context.Context, content string) ([]string, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("extraction: no LLM configured for decomposition")
	}

	resp, err := s.llm.Complete(ctx, providers.CompletionRequest{
		Prompt: decompositionSystemPrompt + "\n\nContent:\n\n" + content,
	}, extractionProfile)
	if err != nil {
		return nil, fmt.Errorf("extraction: decomposition llm call failed: %w", err)
	}

	candidates, err := parsePartialJSONArray(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("extraction: decomposition response unparseable: %w", err)
	}

	facts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c.Content != "" {
			facts = append(facts, c.Content)
		}
	}
	return facts, nil
}

// BuildExtractionContext composes session content with flattened working
// memory key/value pairs, the way a caller assembling an extraction
// request should.
func BuildExtractionContext(sessionContent string, workingMemory map[string]string) string {
	if len(workingMemory) == 0 {
		return sessionContent
	}

	var b strings.Builder
	b.WriteString(sessionContent)
	b.WriteString("\n\nWorking Memory:\n")
	for k, v := range workingMemory {
		fmt.Fprintf(&b, "%s: %s\n", k, v)
	}
	return b.String()
}

package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/memlayer/memcore/internal/providers"
	"github.com/stretchr/testify/require"
)

func TestParsePartialJSONArrayTrailingCommaBeforeBracket(t *testing.T) {
	raw := `[{"content": "fact one"}, {"content": "fact two"},]`
	result, err := parsePartialJSONArray(raw)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "fact one", result[0].Content)
}

func TestParsePartialJSONArrayTrailingCommaBeforeBrace(t *testing.T) {
	raw := `[{"content": "fact one", "category": "profile",}]`
	result, err := parsePartialJSONArray(raw)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "fact one", result[0].Content)
}

func TestParsePartialJSONArrayTruncatedMidObject(t *testing.T) {
	raw := `[{"content": "fact one", "category": "profile"}, {"content": "fact tw`
	result, err := parsePartialJSONArray(raw)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "fact one", result[0].Content)
}

func TestParsePartialJSONArrayTruncatedMidString(t *testing.T) {
	raw := `[{"content": "User prefers Python", "category": "profile"}, {"content": "User likes testing with pyt`
	result, err := parsePartialJSONArray(raw)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "User prefers Python", result[0].Content)
}

func TestParsePartialJSONArrayValidPassthrough(t *testing.T) {
	raw := `[{"content": "fact one"}, {"content": "fact two"}]`
	result, err := parsePartialJSONArray(raw)
	require.NoError(t, err)
	require.Len(t, result, 2)
}

func TestParsePartialJSONArrayUnrecoverable(t *testing.T) {
	_, err := parsePartialJSONArray("this is not json at all")
	require.Error(t, err)
}

func TestParseLLMResponseValidJSON(t *testing.T) {
	response := `[
		{"content": "User is a Python developer at TechCorp", "category": "profile", "importance": 0.9, "tags": ["developer", "python"]},
		{"content": "User prefers pytest over unittest", "category": "preferences", "importance": 0.7, "tags": ["testing"]}
	]`
	result := parseLLMResponse(response, AllCategories)
	require.Len(t, result, 2)
	require.Equal(t, "User is a Python developer at TechCorp", result[0].Content)
	require.Equal(t, CategoryProfile, result[0].Category)
	require.Equal(t, 0.9, result[0].Importance)
	require.Equal(t, CategoryPreferences, result[1].Category)
}

func TestParseLLMResponseMarkdownCodeBlock(t *testing.T) {
	response := "```json\n[{\"content\": \"Project Aurora is a microservices migration\", \"category\": \"entities\", \"importance\": 0.8}]\n```"
	result := parseLLMResponse(response, AllCategories)
	require.Len(t, result, 1)
	require.Equal(t, CategoryEntities, result[0].Category)
}

func TestParseLLMResponseFiltersByCategory(t *testing.T) {
	response := `[
		{"content": "Memory 1", "category": "profile", "importance": 0.8},
		{"content": "Memory 2", "category": "events", "importance": 0.7},
		{"content": "Memory 3", "category": "cases", "importance": 0.9}
	]`
	result := parseLLMResponse(response, []Category{CategoryProfile, CategoryCases})
	require.Len(t, result, 2)
	require.Equal(t, CategoryProfile, result[0].Category)
	require.Equal(t, CategoryCases, result[1].Category)
}

func TestParseLLMResponseDefaultsMissingImportance(t *testing.T) {
	response := `[{"content": "Some memory", "category": "profile"}]`
	result := parseLLMResponse(response, AllCategories)
	require.Len(t, result, 1)
	require.Equal(t, defaultImportance, result[0].Importance)
}

func TestParseLLMResponseClampsImportance(t *testing.T) {
	response := `[
		{"content": "Memory 1", "category": "profile", "importance": 1.5},
		{"content": "Memory 2", "category": "profile", "importance": -0.5}
	]`
	result := parseLLMResponse(response, AllCategories)
	require.Equal(t, 1.0, result[0].Importance)
	require.Equal(t, 0.0, result[1].Importance)
}

func TestParseLLMResponseInvalidJSONReturnsEmpty(t *testing.T) {
	result := parseLLMResponse("This is not JSON", AllCategories)
	require.Empty(t, result)
}

func TestParseLLMResponseNonArrayJSONReturnsEmpty(t *testing.T) {
	result := parseLLMResponse(`{"content": "not an array"}`, AllCategories)
	require.Empty(t, result)
}

func TestParseLLMResponseSkipsInvalidItems(t *testing.T) {
	response := `[
		{"content": "Valid", "category": "profile", "importance": 0.8},
		{"invalid": "Missing content and category"},
		{"content": "Also valid", "category": "events", "importance": 0.7}
	]`
	result := parseLLMResponse(response, AllCategories)
	require.Len(t, result, 2)
}

func TestParseLLMResponseSkipsUnknownCategory(t *testing.T) {
	response := `[
		{"content": "Valid", "category": "profile", "importance": 0.8},
		{"content": "Unknown", "category": "unknown_category", "importance": 0.7}
	]`
	result := parseLLMResponse(response, AllCategories)
	require.Len(t, result, 1)
	require.Equal(t, CategoryProfile, result[0].Category)
}

func TestSimpleExtractionReturnsSingleFact(t *testing.T) {
	svc := New(nil, nil)
	result := svc.simpleExtraction("User discussed Python development preferences.", AllCategories)
	require.Len(t, result, 1)
	require.Equal(t, CategoryCases, result[0].Category)
	require.Equal(t, defaultImportance, result[0].Importance)
	require.Contains(t, result[0].Tags, "auto-extracted")
}

func TestSimpleExtractionLimitsContentLength(t *testing.T) {
	svc := New(nil, nil)
	result := svc.simpleExtraction(strings.Repeat("x", 2000), AllCategories)
	require.Len(t, result, 1)
	require.Len(t, result[0].Content, simpleExtractionMaxContentLength)
}

func TestSimpleExtractionHandlesEmptyContext(t *testing.T) {
	svc := New(nil, nil)
	result := svc.simpleExtraction("   ", AllCategories)
	require.Empty(t, result)
}

func TestExtractFallsBackWithoutLLM(t *testing.T) {
	svc := New(nil, nil)
	facts, err := svc.Extract(context.Background(), "some context here", Options{})
	require.NoError(t, err)
	require.Len(t, facts, 1)
}

type fixedLLM struct {
	response string
	err      error
}

func (f fixedLLM) DefaultTemperature() float64 { return 0.7 }
func (f fixedLLM) Complete(ctx context.Context, req providers.CompletionRequest) (providers.CompletionResponse, error) {
	if f.err != nil {
		return providers.CompletionResponse{}, f.err
	}
	return providers.CompletionResponse{Content: f.response}, nil
}
func (f fixedLLM) CompleteStream(ctx context.Context, req providers.CompletionRequest) (<-chan providers.StreamChunk, error) {
	return nil, errors.New("not implemented")
}

func TestExtractUsesLLMResponse(t *testing.T) {
	reg := providers.NewLLMRegistry(fixedLLM{response: `[{"content": "fact", "category": "profile", "importance": 0.8}]`})
	svc := New(reg, nil)
	facts, err := svc.Extract(context.Background(), "context", Options{})
	require.NoError(t, err)
	require.Len(t, facts, 1)
	require.Equal(t, CategoryProfile, facts[0].Category)
}

func TestDecomposeToFactsReturnsAtomicContents(t *testing.T) {
	reg := providers.NewLLMRegistry(fixedLLM{response: `[{"content": "fact one"}, {"content": "fact two"}]`})
	svc := New(reg, nil)
	facts, err := svc.DecomposeToFacts(context.Background(), "fact one. fact two.")
	require.NoError(t, err)
	require.Equal(t, []string{"fact one", "fact two"}, facts)
}

func TestDecomposeToFactsErrorsWithoutLLM(t *testing.T) {
	svc := New(nil, nil)
	_, err := svc.DecomposeToFacts(context.Background(), "content")
	require.Error(t, err)
}

func TestAllCategoriesHaveMapping(t *testing.T) {
	for _, c := range AllCategories {
		memType, subtype, ok := MemoryTypeFor(c)
		require.True(t, ok)
		require.NotEmpty(t, memType)
		require.NotEmpty(t, subtype)
	}
}

func TestClassifyContentReturnsUsableType(t *testing.T) {
	memType, _ := ClassifyContent("User prefers dark mode over light mode.")
	require.NotEmpty(t, memType)
}

func TestSystemPromptContainsAllCategories(t *testing.T) {
	lower := strings.ToLower(EXTRACTION_SYSTEM_PROMPT)
	for _, word := range []string{"profile", "preferences", "entities", "events", "cases", "patterns"} {
		require.Contains(t, lower, word)
	}
	require.Contains(t, lower, "json")
	require.Contains(t, lower, "array")
}

func TestBuildExtractionContextWithSessionContentOnly(t *testing.T) {
	result := BuildExtractionContext("User talked about Python.", nil)
	require.Equal(t, "User talked about Python.", result)
}

func TestBuildExtractionContextWithWorkingMemory(t *testing.T) {
	result := BuildExtractionContext("User talked about Python.", map[string]string{
		"current_task": "debugging",
		"framework":    "FastAPI",
	})
	require.Contains(t, result, "User talked about Python.")
	require.Contains(t, result, "Working Memory:")
	require.Contains(t, result, "current_task: debugging")
	require.Contains(t, result, "framework: FastAPI")
}

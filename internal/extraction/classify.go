package extraction

import "strings"

// heuristicCategory picks a plausible category for free text when no LLM
// classification is available, by matching a handful of cue words per
// category. This is intentionally simple: classify_content exists for
// callers that need *a* category fast, not a high-precision classifier.
func heuristicCategory(text string) Category {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, "prefers", "preference", "likes", "dislikes", "favorite"):
		return CategoryPreferences
	case containsAny(lower, "is a", "works at", "works as", "lives in", "name is"):
		return CategoryProfile
	case containsAny(lower, "project", "company", "organization", "team"):
		return CategoryEntities
	case containsAny(lower, "happened", "occurred", "meeting on", "on monday", "yesterday", "scheduled"):
		return CategoryEvents
	case containsAny(lower, "always", "whenever", "every time", "tends to", "pattern"):
		return CategoryPatterns
	default:
		return CategoryCases
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

package extraction

import "github.com/memlayer/memcore/pkg/types"

// Category is one of the extraction service's independent taxonomy labels,
// distinct from the memory type/subtype a fact ultimately gets stored under
// (spec §4.8).
type Category string

const (
	CategoryProfile     Category = "profile"
	CategoryPreferences Category = "preferences"
	CategoryEntities    Category = "entities"
	CategoryEvents      Category = "events"
	CategoryCases       Category = "cases"
	CategoryPatterns    Category = "patterns"
)

// AllCategories lists every known extraction category, in a stable order
// matching the prompt's enumeration.
var AllCategories = []Category{
	CategoryProfile,
	CategoryPreferences,
	CategoryEntities,
	CategoryEvents,
	CategoryCases,
	CategoryPatterns,
}

func isKnownCategory(c Category) bool {
	for _, known := range AllCategories {
		if known == c {
			return true
		}
	}
	return false
}

// categoryMapping maps each extraction category to the (memory_type,
// subtype) pair a fact in that category is stored under.
var categoryMapping = map[Category]struct {
	Type    types.MemoryType
	Subtype string
}{
	CategoryProfile:     {types.TypeSemantic, "profile"},
	CategoryPreferences: {types.TypeSemantic, "preference"},
	CategoryEntities:    {types.TypeSemantic, "entity"},
	CategoryEvents:      {types.TypeEpisodic, "event"},
	CategoryCases:       {types.TypeEpisodic, "case"},
	CategoryPatterns:    {types.TypeProcedural, "pattern"},
}

// MemoryTypeFor returns the (memory_type, subtype) pair a given category
// maps to. ok is false for an unknown category.
func MemoryTypeFor(c Category) (memType types.MemoryType, subtype string, ok bool) {
	m, found := categoryMapping[c]
	if !found {
		return "", "", false
	}
	return m.Type, m.Subtype, true
}

// ClassifyContent returns the single (type, subtype) a piece of text should
// be classified as, using simple keyword heuristics as a default
// classifier. It always returns a usable answer: text that matches no cue
// word falls into the cases category, (TypeEpisodic, "case").
func ClassifyContent(text string) (memType types.MemoryType, subtype string) {
	category := heuristicCategory(text)
	t, s, ok := MemoryTypeFor(category)
	if !ok {
		return types.TypeSemantic, ""
	}
	return t, s
}

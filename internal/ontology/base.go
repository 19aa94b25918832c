// Package ontology holds the closed relationship-type vocabulary that every
// Association edge is validated against (spec §3, §4.10).
package ontology

import "github.com/memlayer/memcore/pkg/types"

// Categories recognized by the base ontology.
const (
	CategoryCausal     = "causal"
	CategorySolution   = "solution"
	CategoryContext    = "context"
	CategoryLearning   = "learning"
	CategorySimilarity = "similarity"
	CategoryWorkflow   = "workflow"
	CategoryQuality    = "quality"
	CategoryReference  = "reference"
	CategoryOwnership  = "ownership"
	CategoryPreference = "preference"
	CategoryGeneral    = "general"
)

func entry(desc, category string, symmetric, transitive bool, inverse string) types.OntologyEntry {
	return types.OntologyEntry{
		Description: desc,
		Category:    category,
		Symmetric:   symmetric,
		Transitive:  transitive,
		Inverse:     inverse,
	}
}

// BaseOntology is the hard-coded registry of relationship types spec §3
// describes as "~65 relationship types across 11 categories". Adding new
// types requires a custom ontology; this core only ships the base set
// (spec §4.10 "Holds the base relationship registry").
var BaseOntology = map[string]types.OntologyEntry{
	// causal
	"causes":         entry("A directly brings about B", CategoryCausal, false, false, "caused_by"),
	"caused_by":      entry("A is a direct result of B", CategoryCausal, false, false, "causes"),
	"triggers":       entry("A is the immediate trigger for B", CategoryCausal, false, false, "triggered_by"),
	"triggered_by":   entry("A is triggered by B", CategoryCausal, false, false, "triggers"),
	"prevents":       entry("A stops B from occurring", CategoryCausal, false, false, "prevented_by"),
	"prevented_by":   entry("A is prevented from occurring by B", CategoryCausal, false, false, "prevents"),
	"leads_to":       entry("A sets off a chain of events ending in B", CategoryCausal, false, false, ""),

	// solution
	"solves":       entry("A resolves problem B", CategorySolution, false, false, "solved_by"),
	"solved_by":    entry("A is resolved by solution B", CategorySolution, false, false, "solves"),
	"addresses":    entry("A partially or fully addresses concern B", CategorySolution, false, false, "addressed_by"),
	"addressed_by": entry("A is addressed by B", CategorySolution, false, false, "addresses"),
	"mitigates":    entry("A reduces the severity of B", CategorySolution, false, false, "mitigated_by"),
	"mitigated_by": entry("A is mitigated by B", CategorySolution, false, false, "mitigates"),

	// context
	"part_of":    entry("A is a constituent part of B", CategoryContext, false, true, "has_part"),
	"has_part":   entry("A has B as a constituent part", CategoryContext, false, true, "part_of"),
	"belongs_to": entry("A is a member of collection B", CategoryContext, false, false, "has_member"),
	"has_member": entry("A has member B", CategoryContext, false, false, "belongs_to"),
	"located_in": entry("A is situated within B", CategoryContext, false, false, "location_of"),
	"location_of": entry("A is the location containing B", CategoryContext, false, false, "located_in"),

	// learning
	"learned_from":   entry("A was learned by observing B", CategoryLearning, false, false, "taught"),
	"taught":         entry("A taught lesson B", CategoryLearning, false, false, "learned_from"),
	"demonstrates":   entry("A shows B in practice", CategoryLearning, false, false, "demonstrated_by"),
	"demonstrated_by": entry("A is demonstrated by example B", CategoryLearning, false, false, "demonstrates"),
	"exemplifies":    entry("A is a typical instance of B", CategoryLearning, false, false, "exemplified_by"),
	"exemplified_by": entry("A is exemplified by instance B", CategoryLearning, false, false, "exemplifies"),

	// similarity
	"similar_to":     entry("A and B share substantial characteristics", CategorySimilarity, true, false, "similar_to"),
	"analogous_to":   entry("A is structurally analogous to B", CategorySimilarity, true, false, "analogous_to"),
	"contrasts_with": entry("A highlights a difference from B", CategorySimilarity, true, false, "contrasts_with"),
	"differs_from":   entry("A differs from B in some respect", CategorySimilarity, true, false, "differs_from"),
	"equivalent_to":  entry("A and B are interchangeable", CategorySimilarity, true, true, "equivalent_to"),

	// workflow
	"precedes":    entry("A happens immediately before B", CategoryWorkflow, false, true, "follows"),
	"follows":     entry("A happens immediately after B", CategoryWorkflow, false, true, "precedes"),
	"depends_on":  entry("A cannot proceed until B completes", CategoryWorkflow, false, true, "required_by"),
	"required_by": entry("A is a prerequisite required by B", CategoryWorkflow, false, true, "depends_on"),
	"blocks":      entry("A prevents B from proceeding", CategoryWorkflow, false, false, "blocked_by"),
	"blocked_by":  entry("A is prevented from proceeding by B", CategoryWorkflow, false, false, "blocks"),

	// quality
	"validates":      entry("A confirms B is correct", CategoryQuality, false, false, "validated_by"),
	"validated_by":   entry("A is confirmed correct by B", CategoryQuality, false, false, "validates"),
	"invalidates":    entry("A shows B to be incorrect", CategoryQuality, false, false, "invalidated_by"),
	"invalidated_by": entry("A is shown incorrect by B", CategoryQuality, false, false, "invalidates"),
	"confirms":       entry("A corroborates B", CategoryQuality, false, false, "confirmed_by"),
	"confirmed_by":   entry("A is corroborated by B", CategoryQuality, false, false, "confirms"),

	// reference
	"references":    entry("A cites or points to B", CategoryReference, false, false, "referenced_by"),
	"referenced_by": entry("A is cited or pointed to by B", CategoryReference, false, false, "references"),
	"mentions":      entry("A refers to B in passing", CategoryReference, false, false, "mentioned_by"),
	"mentioned_by":  entry("A is referred to in passing by B", CategoryReference, false, false, "mentions"),
	"built_upon":    entry("A extends or is based on B", CategoryReference, false, false, "built_upon_by"),
	"built_upon_by": entry("A is extended or based upon by B", CategoryReference, false, false, "built_upon"),

	// ownership
	"owns":          entry("A has ownership of B", CategoryOwnership, false, false, "owned_by"),
	"owned_by":      entry("A is owned by B", CategoryOwnership, false, false, "owns"),
	"created_by":    entry("A was created by B", CategoryOwnership, false, false, "creator_of"),
	"creator_of":    entry("A is the creator of B", CategoryOwnership, false, false, "created_by"),
	"maintained_by": entry("A is maintained by B", CategoryOwnership, false, false, "maintainer_of"),
	"maintainer_of": entry("A is the maintainer of B", CategoryOwnership, false, false, "maintained_by"),

	// preference
	"replaces":    entry("A takes the place of B", CategoryPreference, false, false, "replaced_by"),
	"replaced_by": entry("A is replaced by B", CategoryPreference, false, false, "replaces"),
	"supersedes":  entry("A renders B obsolete", CategoryPreference, false, true, "superseded_by"),
	"superseded_by": entry("A is rendered obsolete by B", CategoryPreference, false, true, "supersedes"),
	"deprecates":  entry("A marks B as deprecated", CategoryPreference, false, false, "deprecated_by"),
	"deprecated_by": entry("A is marked deprecated by B", CategoryPreference, false, false, "deprecates"),

	// general
	"related_to":      entry("A has a general, unspecified relation to B", CategoryGeneral, true, false, "related_to"),
	"associated_with": entry("A is loosely associated with B", CategoryGeneral, true, false, "associated_with"),
	"contradicts":     entry("A and B cannot both be true", CategoryGeneral, true, false, "contradicts"),
	"duplicates":      entry("A is a duplicate of B", CategoryGeneral, true, true, "duplicates"),
	"derived_from":    entry("A was derived or decomposed from B", CategoryGeneral, false, false, "source_of"),
	"source_of":       entry("A is the source that B was derived from", CategoryGeneral, false, false, "derived_from"),
	"co_occurs_with":  entry("A tends to appear alongside B", CategoryGeneral, true, false, "co_occurs_with"),
}

// RelationshipCategories is the closed set of category names base ontology
// entries are drawn from (spec §3).
var RelationshipCategories = []string{
	CategoryCausal, CategorySolution, CategoryContext, CategoryLearning,
	CategorySimilarity, CategoryWorkflow, CategoryQuality, CategoryReference,
	CategoryOwnership, CategoryPreference, CategoryGeneral,
}

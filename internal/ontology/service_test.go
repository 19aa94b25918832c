package ontology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
}

func (s stubCompleter) Complete(ctx context.Context, profile, prompt string) (string, error) {
	return s.response, s.err
}

func TestValidateKnownAndUnknownTypes(t *testing.T) {
	svc := New(nil, nil)

	require.NoError(t, svc.Validate("causes"))

	err := svc.Validate("not_a_real_type")
	require.Error(t, err)
	require.Contains(t, err.Error(), "causes")
}

func TestGetReturnsEntryWithType(t *testing.T) {
	svc := New(nil, nil)

	entry, err := svc.Get("solves")
	require.NoError(t, err)
	require.Equal(t, "solves", entry.Type)
	require.Equal(t, CategorySolution, entry.Category)
	require.Equal(t, "solved_by", entry.Inverse)
}

func TestByCategoryRejectsUnknownCategory(t *testing.T) {
	svc := New(nil, nil)

	_, err := svc.ByCategory("not_a_category")
	require.Error(t, err)

	types, err := svc.ByCategory(CategoryCausal)
	require.NoError(t, err)
	require.Contains(t, types, "causes")
	require.Contains(t, types, "caused_by")
}

func TestClassifyRelationshipFallsBackWithoutLLM(t *testing.T) {
	svc := New(nil, nil)
	got := svc.ClassifyRelationship(context.Background(), "a", "b")
	require.Equal(t, DefaultRelationship, got)
}

func TestClassifyRelationshipNormalizesAndValidates(t *testing.T) {
	svc := New(stubCompleter{response: `"Causes."`}, nil)
	got := svc.ClassifyRelationship(context.Background(), "rain", "flooding")
	require.Equal(t, "causes", got)
}

func TestClassifyRelationshipPrefixMatchesTruncatedResponse(t *testing.T) {
	svc := New(stubCompleter{response: "built_upon_"}, nil)
	got := svc.ClassifyRelationship(context.Background(), "a", "b")
	require.Equal(t, "built_upon_by", got)
}

func TestClassifyRelationshipFallsBackOnUnknownResponse(t *testing.T) {
	svc := New(stubCompleter{response: "not_a_real_relationship"}, nil)
	got := svc.ClassifyRelationship(context.Background(), "a", "b")
	require.Equal(t, DefaultRelationship, got)
}

func TestClassifyRelationshipFallsBackOnError(t *testing.T) {
	svc := New(stubCompleter{err: context.DeadlineExceeded}, nil)
	got := svc.ClassifyRelationship(context.Background(), "a", "b")
	require.Equal(t, DefaultRelationship, got)
}

func TestBaseOntologyEveryInverseResolves(t *testing.T) {
	for relType, e := range BaseOntology {
		if e.Inverse == "" {
			continue
		}
		if _, ok := BaseOntology[e.Inverse]; !ok {
			t.Errorf("%s declares inverse %q which is not itself a registered type", relType, e.Inverse)
		}
	}
}

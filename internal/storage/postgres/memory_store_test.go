package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/memlayer/memcore/internal/storage"
	"github.com/memlayer/memcore/internal/storage/postgres"
	"github.com/memlayer/memcore/pkg/types"
)

// postgresTestDSN returns the DSN for the test database. Tests are skipped
// when POSTGRES_TEST_DSN is not set, since this backend has no embedded mode.
func postgresTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}
	return dsn
}

func newTestStore(t *testing.T) *postgres.MemoryStore {
	t.Helper()
	dsn := postgresTestDSN(t)
	store, err := postgres.NewMemoryStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newMemory(workspaceID, content string) *types.Memory {
	now := time.Now().UTC()
	return &types.Memory{
		ID:             "mem_" + uuid.NewString(),
		WorkspaceID:    workspaceID,
		Content:        content,
		ContentHash:    content,
		Type:           types.TypeSemantic,
		Importance:     0.5,
		Status:         types.StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastAccessedAt: now,
	}
}

func TestPostgresCreateAndGetMemory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := newMemory("ws1", "Python is great "+uuid.NewString())
	require.NoError(t, store.CreateMemory(ctx, m))

	got, err := store.GetMemory(ctx, "ws1", m.ID, false)
	require.NoError(t, err)
	require.Equal(t, m.Content, got.Content)
}

func TestPostgresCreateMemoryUniqueContentHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	content := "duplicate content " + uuid.NewString()

	m1 := newMemory("ws1", content)
	require.NoError(t, store.CreateMemory(ctx, m1))

	m2 := newMemory("ws1", content)
	err := store.CreateMemory(ctx, m2)
	require.ErrorIs(t, err, storage.ErrUniqueConstraint)
}

func TestPostgresDeleteMemorySoftAndHard(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	m := newMemory("ws1", "to delete "+uuid.NewString())
	require.NoError(t, store.CreateMemory(ctx, m))

	require.NoError(t, store.DeleteMemory(ctx, "ws1", m.ID, false))
	_, err := store.GetMemory(ctx, "ws1", m.ID, false)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.DeleteMemory(ctx, "ws1", m.ID, true))
}

func TestPostgresSearchMemoriesRanksBySimilarity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	close := newMemory("ws1", "close match "+uuid.NewString())
	close.Embedding = []float64{1, 0, 0}
	far := newMemory("ws1", "far match "+uuid.NewString())
	far.Embedding = []float64{0, 1, 0}

	require.NoError(t, store.CreateMemory(ctx, close))
	require.NoError(t, store.CreateMemory(ctx, far))

	results, err := store.SearchMemories(ctx, "ws1", storage.SearchOptions{
		QueryEmbedding: []float64{1, 0, 0},
		Limit:          10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	require.Equal(t, close.ID, results[0].Memory.ID)
}

func TestPostgresAssociationUniqueConstraint(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newMemory("ws1", "A "+uuid.NewString())
	b := newMemory("ws1", "B "+uuid.NewString())
	require.NoError(t, store.CreateMemory(ctx, a))
	require.NoError(t, store.CreateMemory(ctx, b))

	assoc := &types.Association{
		ID: "assoc_" + uuid.NewString(), WorkspaceID: "ws1",
		SourceID: a.ID, TargetID: b.ID, Relationship: "leads_to", Strength: 1.0,
	}
	require.NoError(t, store.CreateAssociation(ctx, assoc))

	dup := *assoc
	dup.ID = "assoc_" + uuid.NewString()
	err := store.CreateAssociation(ctx, &dup)
	require.ErrorIs(t, err, storage.ErrUniqueConstraint)
}

func TestPostgresGetAssociationsDirectionFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := newMemory("ws1", "A "+uuid.NewString())
	b := newMemory("ws1", "B "+uuid.NewString())
	require.NoError(t, store.CreateMemory(ctx, a))
	require.NoError(t, store.CreateMemory(ctx, b))
	require.NoError(t, store.CreateAssociation(ctx, &types.Association{
		ID: "assoc_" + uuid.NewString(), WorkspaceID: "ws1", SourceID: a.ID, TargetID: b.ID, Relationship: "leads_to", Strength: 1.0,
	}))

	out, err := store.GetAssociations(ctx, "ws1", a.ID, storage.AssociationFilters{Direction: types.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, out, 1)

	none, err := store.GetAssociations(ctx, "ws1", b.ID, storage.AssociationFilters{Direction: types.DirectionOutgoing})
	require.NoError(t, err)
	require.Len(t, none, 0)
}

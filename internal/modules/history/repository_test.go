package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varqo/varqo/internal/database"
)

var memDBCounter int

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	memDBCounter++
	db, err := database.New(database.Config{
		Path: fmt.Sprintf("file:history_test_%d?mode=memory&cache=shared", memDBCounter),
		Name: "history-test",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())
	return NewRepository(db, zerolog.Nop())
}

func TestSaveAndListRecent(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := repo.Save(Evaluation{
			ID:            fmt.Sprintf("eval-%d", i),
			ObjectiveHash: "abc123",
			Backend:       "statevector",
			Samples:       100 * i,
			Value:         float64(i) * 0.5,
			Bindings:      map[string]float64{"a": float64(i)},
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	got, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// Newest first.
	assert.Equal(t, "eval-2", got[0].ID)
	assert.Equal(t, "eval-0", got[2].ID)
	assert.Equal(t, map[string]float64{"a": 2}, got[0].Bindings)
	assert.Equal(t, "statevector", got[0].Backend)
	assert.Equal(t, 1.0, got[0].Value)
}

func TestListRecentHonorsLimit(t *testing.T) {
	repo := newTestRepository(t)
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(Evaluation{
			ID:            fmt.Sprintf("eval-%d", i),
			ObjectiveHash: "h",
			Backend:       "statevector",
			CreatedAt:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := repo.ListRecent(2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, "eval-4", got[0].ID)
}

func TestSaveWithoutBindings(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(Evaluation{
		ID:            "constant",
		ObjectiveHash: "h",
		Backend:       "unitary",
		CreatedAt:     time.Now().UTC(),
	}))

	got, err := repo.ListRecent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Bindings)
}

func TestPruneOlderThan(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now().UTC()

	require.NoError(t, repo.Save(Evaluation{
		ID: "old", ObjectiveHash: "h", Backend: "statevector",
		CreatedAt: now.AddDate(0, 0, -120),
	}))
	require.NoError(t, repo.Save(Evaluation{
		ID: "fresh", ObjectiveHash: "h", Backend: "statevector",
		CreatedAt: now,
	}))

	removed, err := repo.PruneOlderThan(now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	got, err := repo.ListRecent(10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "fresh", got[0].ID)
}

func TestServiceRecordAssignsIdentity(t *testing.T) {
	repo := newTestRepository(t)
	svc := NewService(repo, 90, zerolog.Nop())

	rec, err := svc.Record("deadbeef", "statevector", 0, 0.25, map[string]float64{"a": 1})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := svc.Recent(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, rec.ID, got[0].ID)
}

func TestServicePruneDisabled(t *testing.T) {
	repo := newTestRepository(t)
	svc := NewService(repo, 0, zerolog.Nop())

	require.NoError(t, repo.Save(Evaluation{
		ID: "ancient", ObjectiveHash: "h", Backend: "statevector",
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
	}))

	require.NoError(t, svc.Prune())

	got, err := repo.ListRecent(10)
	require.NoError(t, err)
	assert.Len(t, got, 1, "retention <= 0 must keep everything")
}

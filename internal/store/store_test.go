package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/headline-goat/abengine/internal/store"
)

func backends(t *testing.T) map[string]store.Store {
	t.Helper()

	sqlite, err := store.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	badgerStore, err := store.OpenBadger("")
	require.NoError(t, err)

	all := map[string]store.Store{
		"memory": store.NewMemoryStore(),
		"sqlite": sqlite,
		"badger": badgerStore,
	}
	t.Cleanup(func() {
		for _, s := range all {
			s.Close()
		}
	})
	return all
}

func TestCreateAndGet(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			rec, err := s.Create(ctx, "exp-1", []byte(`{"a":1}`))
			require.NoError(t, err)
			assert.Equal(t, uint64(1), rec.Version)

			got, err := s.Get(ctx, "exp-1")
			require.NoError(t, err)
			assert.Equal(t, uint64(1), got.Version)
			assert.JSONEq(t, `{"a":1}`, string(got.Data))

			_, err = s.Create(ctx, "exp-1", []byte(`{}`))
			assert.ErrorIs(t, err, store.ErrExists)

			_, err = s.Get(ctx, "missing")
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestCompareAndSwap(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := s.Create(ctx, "exp-1", []byte(`{"n":0}`))
			require.NoError(t, err)

			ev := store.ConversionEvent{ExperimentID: "exp-1", VariantID: "control", Value: 1, Timestamp: time.Now()}
			rec, err := s.CompareAndSwap(ctx, "exp-1", 1, []byte(`{"n":1}`), ev)
			require.NoError(t, err)
			assert.Equal(t, uint64(2), rec.Version)

			// Stale version must not overwrite or append.
			_, err = s.CompareAndSwap(ctx, "exp-1", 1, []byte(`{"n":99}`), ev)
			assert.ErrorIs(t, err, store.ErrConflict)

			got, err := s.Get(ctx, "exp-1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"n":1}`, string(got.Data))

			events, err := s.Events(ctx, "exp-1")
			require.NoError(t, err)
			assert.Len(t, events, 1)

			_, err = s.CompareAndSwap(ctx, "missing", 1, []byte(`{}`))
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestDeleteAndList(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, key := range []string{"a", "b", "c"} {
				_, err := s.Create(ctx, key, []byte(`{}`))
				require.NoError(t, err)
			}

			require.NoError(t, s.Delete(ctx, "b"))
			assert.ErrorIs(t, s.Delete(ctx, "b"), store.ErrNotFound)

			records, err := s.List(ctx)
			require.NoError(t, err)
			keys := make([]string, 0, len(records))
			for _, r := range records {
				keys = append(keys, r.Key)
			}
			assert.ElementsMatch(t, []string{"a", "c"}, keys)
		})
	}
}

func TestEventsNewestFirst(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			require.NoError(t, s.Append(ctx, store.ConversionEvent{ExperimentID: "a", VariantID: "control", Value: 1, Timestamp: base}))
			require.NoError(t, s.Append(ctx, store.ConversionEvent{ExperimentID: "b", VariantID: "variant_0", Value: 2, Timestamp: base.Add(time.Second)}))
			require.NoError(t, s.Append(ctx, store.ConversionEvent{ExperimentID: "a", VariantID: "variant_0", Value: 3, Timestamp: base.Add(2 * time.Second)}))

			all, err := s.Events(ctx, "")
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, 3.0, all[0].Value)
			assert.Equal(t, 1.0, all[2].Value)

			onlyA, err := s.Events(ctx, "a")
			require.NoError(t, err)
			require.Len(t, onlyA, 2)
			assert.Equal(t, "variant_0", onlyA[0].VariantID)
			assert.True(t, onlyA[0].Timestamp.Equal(base.Add(2*time.Second)))
		})
	}
}

func TestExpiredContextIsUnavailable(t *testing.T) {
	s := store.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Get(ctx, "anything")
	assert.ErrorIs(t, err, store.ErrUnavailable)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := store.Open("postgres", "")
	assert.Error(t, err)
}

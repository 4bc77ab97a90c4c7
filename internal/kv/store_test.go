package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behavior every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		v, ok, err := s.Get(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("set get remove", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "a", "1"))
		v, ok, err := s.Get(ctx, "a")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1", v)

		require.NoError(t, s.Set(ctx, "a", "2"))
		v, _, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, "2", v)

		require.NoError(t, s.Remove(ctx, "a"))
		_, ok, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("remove missing is no-op", func(t *testing.T) {
		assert.NoError(t, s.Remove(ctx, "never-set"))
	})

	t.Run("utf8 round trip", func(t *testing.T) {
		value := `{"name":"Zoë Ångström","note":"家具"}`
		require.NoError(t, s.Set(ctx, "utf8", value))
		v, _, err := s.Get(ctx, "utf8")
		require.NoError(t, err)
		assert.Equal(t, value, v)
	})

	t.Run("update commits all writes", func(t *testing.T) {
		err := s.Update(ctx, func(tx Txn) error {
			if err := tx.Set(ctx, "x", "1"); err != nil {
				return err
			}
			return tx.Set(ctx, "y", "2")
		})
		require.NoError(t, err)

		for key, want := range map[string]string{"x": "1", "y": "2"} {
			v, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, want, v)
		}
	})

	t.Run("update sees own writes", func(t *testing.T) {
		err := s.Update(ctx, func(tx Txn) error {
			if err := tx.Set(ctx, "own", "mine"); err != nil {
				return err
			}
			v, ok, err := tx.Get(ctx, "own")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "mine", v)

			if err := tx.Remove(ctx, "own"); err != nil {
				return err
			}
			_, ok, err = tx.Get(ctx, "own")
			require.NoError(t, err)
			assert.False(t, ok)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("update rolls back on error", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "keep", "before"))
		boom := errors.New("boom")

		err := s.Update(ctx, func(tx Txn) error {
			if err := tx.Set(ctx, "keep", "after"); err != nil {
				return err
			}
			if err := tx.Set(ctx, "fresh", "value"); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		v, _, err := s.Get(ctx, "keep")
		require.NoError(t, err)
		assert.Equal(t, "before", v)
		_, ok, err := s.Get(ctx, "fresh")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("view reads committed state", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "seen", "yes"))
		err := s.View(ctx, func(r Reader) error {
			v, ok, err := r.Get(ctx, "seen")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "yes", v)
			return nil
		})
		require.NoError(t, err)
	})
}

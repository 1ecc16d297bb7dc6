// Package storagetest holds the shared conformance suite for storage.Slots
// implementations.
package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lectern/storage"
)

// Run exercises the Slots contract against a fresh store per subtest.
func Run(t *testing.T, newSlots func(t *testing.T) storage.Slots) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		s := newSlots(t)
		require.NoError(t, s.Put(storage.SlotAccessToken, "tok-1"))
		got, err := s.Get(storage.SlotAccessToken)
		require.NoError(t, err)
		assert.Equal(t, "tok-1", got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := newSlots(t)
		_, err := s.Get("never-written")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newSlots(t)
		require.NoError(t, s.Put(storage.SlotUser, "v1"))
		require.NoError(t, s.Put(storage.SlotUser, "v2"))
		got, err := s.Get(storage.SlotUser)
		require.NoError(t, err)
		assert.Equal(t, "v2", got)
	})

	t.Run("Delete", func(t *testing.T) {
		s := newSlots(t)
		require.NoError(t, s.Put(storage.SlotRefreshToken, "r"))
		require.NoError(t, s.Delete(storage.SlotRefreshToken))
		_, err := s.Get(storage.SlotRefreshToken)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		s := newSlots(t)
		assert.NoError(t, s.Delete("never-existed"))
	})

	t.Run("BatchCommits", func(t *testing.T) {
		s := newSlots(t)
		err := s.Batch(func(tx storage.BatchTx) error {
			if err := tx.Put(storage.SlotAccessToken, "a"); err != nil {
				return err
			}
			return tx.Put(storage.SlotUser, "u")
		})
		require.NoError(t, err)
		a, err := s.Get(storage.SlotAccessToken)
		require.NoError(t, err)
		u, err := s.Get(storage.SlotUser)
		require.NoError(t, err)
		assert.Equal(t, "a", a)
		assert.Equal(t, "u", u)
	})

	t.Run("BatchRollsBack", func(t *testing.T) {
		s := newSlots(t)
		require.NoError(t, s.Put(storage.SlotAccessToken, "before"))
		boom := errors.New("boom")
		err := s.Batch(func(tx storage.BatchTx) error {
			if err := tx.Put(storage.SlotAccessToken, "after"); err != nil {
				return err
			}
			if err := tx.Delete(storage.SlotAccessToken); err != nil {
				return err
			}
			if err := tx.Put(storage.SlotUser, "u"); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)
		got, err := s.Get(storage.SlotAccessToken)
		require.NoError(t, err)
		assert.Equal(t, "before", got)
		_, err = s.Get(storage.SlotUser)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	})

	t.Run("BatchDeleteAll", func(t *testing.T) {
		s := newSlots(t)
		require.NoError(t, s.Put(storage.SlotAccessToken, "a"))
		require.NoError(t, s.Put(storage.SlotRefreshToken, "r"))
		require.NoError(t, s.Put(storage.SlotUser, "u"))
		err := s.Batch(func(tx storage.BatchTx) error {
			for _, name := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
				if err := tx.Delete(name); err != nil {
					return err
				}
			}
			return nil
		})
		require.NoError(t, err)
		for _, name := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
			_, err := s.Get(name)
			assert.True(t, errors.Is(err, storage.ErrNotFound), "slot %s should be gone", name)
		}
	})
}

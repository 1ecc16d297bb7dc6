package bbolt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/lectern/storage"
	"github.com/jmcleod/lectern/storage/storagetest"
)

func newTestDB(t *testing.T) *bbolt.DB {
	t.Helper()
	f, err := os.CreateTemp("", "lectern-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		os.Remove(path)
		t.Fatalf("could not open db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(path)
	})
	return db
}

func TestBBoltStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Slots {
		s, err := NewRepository(newTestDB(t))
		require.NoError(t, err)
		return s
	})
}

func TestBBoltPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put(storage.SlotAccessToken, "persisted"))
	require.NoError(t, s.Close())

	s2, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(storage.SlotAccessToken)
	require.NoError(t, err)
	require.Equal(t, "persisted", got)
}

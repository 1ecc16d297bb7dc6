package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/storage"
	"github.com/jmcleod/lectern/storage/memory"
)

func admin() *client.User {
	return &client.User{Username: "admin", Role: "admin"}
}

func TestSaveAndLoad(t *testing.T) {
	slots := memory.NewRepository()
	s := NewStore(slots)

	require.NoError(t, s.Save(Session{AccessToken: "a1", RefreshToken: "r1", User: admin()}))
	assert.Equal(t, "a1", s.AccessToken())
	assert.Equal(t, "r1", s.RefreshToken())

	// A fresh store over the same slots sees the persisted session.
	s2 := NewStore(slots)
	got, ok, err := s2.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a1", got.AccessToken)
	assert.Equal(t, "r1", got.RefreshToken)
	assert.Equal(t, "admin", got.User.Username)
	assert.Equal(t, "a1", s2.AccessToken())
}

func TestLoadEmpty(t *testing.T) {
	s := NewStore(memory.NewRepository())
	_, ok, err := s.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadPartialClearsSlots(t *testing.T) {
	cases := map[string]map[string]string{
		"token without user": {storage.SlotAccessToken: "a", storage.SlotRefreshToken: "r"},
		"user without token": {storage.SlotUser: `{"username":"admin","role":"admin"}`},
		"unreadable user":    {storage.SlotAccessToken: "a", storage.SlotUser: "{not json"},
	}
	for name, seed := range cases {
		t.Run(name, func(t *testing.T) {
			slots := memory.NewRepository()
			for k, v := range seed {
				require.NoError(t, slots.Put(k, v))
			}
			s := NewStore(slots)
			_, ok, err := s.Load()
			require.NoError(t, err)
			assert.False(t, ok)
			for _, slot := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
				_, err := slots.Get(slot)
				assert.True(t, errors.Is(err, storage.ErrNotFound), "slot %s should be cleared", slot)
			}
		})
	}
}

func TestSaveRejectsPartial(t *testing.T) {
	s := NewStore(memory.NewRepository())
	assert.Error(t, s.Save(Session{AccessToken: "a"}))
	assert.Error(t, s.Save(Session{User: admin()}))
}

func TestSaveWithoutRefreshDropsStaleRefresh(t *testing.T) {
	slots := memory.NewRepository()
	s := NewStore(slots)
	require.NoError(t, s.Save(Session{AccessToken: "a1", RefreshToken: "r1", User: admin()}))
	require.NoError(t, s.Save(Session{AccessToken: "a2", User: admin()}))

	_, err := slots.Get(storage.SlotRefreshToken)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	assert.Empty(t, s.RefreshToken())
}

func TestUpdateTokens(t *testing.T) {
	slots := memory.NewRepository()
	s := NewStore(slots)
	require.NoError(t, s.Save(Session{AccessToken: "a1", RefreshToken: "r1", User: admin()}))

	require.NoError(t, s.UpdateTokens("a2", "r2"))
	assert.Equal(t, "a2", s.AccessToken())
	assert.Equal(t, "r2", s.RefreshToken())
	v, _ := slots.Get(storage.SlotRefreshToken)
	assert.Equal(t, "r2", v)

	require.NoError(t, s.UpdateTokens("a3", ""))
	assert.Equal(t, "r2", s.RefreshToken())
	assert.Error(t, s.UpdateTokens("", "r"))
}

func TestClear(t *testing.T) {
	slots := memory.NewRepository()
	s := NewStore(slots)
	require.NoError(t, s.Save(Session{AccessToken: "a1", RefreshToken: "r1", User: admin()}))

	require.NoError(t, s.Clear())
	assert.Empty(t, s.AccessToken())
	assert.False(t, s.Current().Valid())
	for _, slot := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
		_, err := slots.Get(slot)
		assert.True(t, errors.Is(err, storage.ErrNotFound))
	}
}

func TestCurrentReturnsCopy(t *testing.T) {
	s := NewStore(memory.NewRepository())
	require.NoError(t, s.Save(Session{AccessToken: "a", User: admin()}))
	cur := s.Current()
	cur.User.Role = "reader"
	assert.Equal(t, "admin", s.Current().User.Role)
}

func TestSetUser(t *testing.T) {
	slots := memory.NewRepository()
	s := NewStore(slots)
	require.NoError(t, s.Save(Session{AccessToken: "a", User: admin()}))
	require.NoError(t, s.SetUser(client.User{Username: "admin", Role: "editor"}))
	assert.Equal(t, "editor", s.Current().User.Role)

	got, ok, err := NewStore(slots).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "editor", got.User.Role)
}

func TestWritesAfterClearAreRefused(t *testing.T) {
	slots := memory.NewRepository()
	s := NewStore(slots)
	require.NoError(t, s.Save(Session{AccessToken: "a1", RefreshToken: "r1", User: admin()}))
	require.NoError(t, s.Clear())

	require.ErrorIs(t, s.UpdateTokens("a2", "r2"), ErrNoSession)
	require.ErrorIs(t, s.SetUser(*admin()), ErrNoSession)

	assert.Empty(t, s.AccessToken())
	for _, slot := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
		_, err := slots.Get(slot)
		assert.ErrorIs(t, err, storage.ErrNotFound, slot)
	}
}

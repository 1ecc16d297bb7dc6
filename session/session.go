// Package session persists the authenticated user's tokens and identity in
// durable storage.Slots. Only the auth package writes through Store; every
// other component reads.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jmcleod/lectern/client"
	"github.com/jmcleod/lectern/storage"
)

// Session is the persisted authentication record. AccessToken and User are
// either both set or both empty.
type Session struct {
	AccessToken  string
	RefreshToken string
	User         *client.User
}

// Valid reports whether s satisfies the no-partial-session invariant and is
// non-empty.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.User != nil
}

// ErrNoSession is returned by writes that need an existing session.
var ErrNoSession = errors.New("no session")

// Store reads and writes the session slots and keeps an in-memory snapshot
// so that token lookups on every request do not touch disk.
type Store struct {
	slots storage.Slots

	// writeMu serializes writers so a check of the snapshot and the
	// storage write that follows it cannot interleave with Clear.
	writeMu sync.Mutex

	mu      sync.RWMutex
	current Session
}

var _ client.TokenSource = (*Store)(nil)

// NewStore creates a session store over slots. Call Load to populate the
// snapshot from storage.
func NewStore(slots storage.Slots) *Store {
	return &Store{slots: slots}
}

func getOptional(slots storage.Slots, name string) (string, error) {
	v, err := slots.Get(name)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	return v, err
}

// Load reads the persisted session. ok is false when no complete session is
// stored; a partial record (token without user or the reverse, or an
// unreadable user) is cleared before returning.
func (s *Store) Load() (Session, bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	access, err := getOptional(s.slots, storage.SlotAccessToken)
	if err != nil {
		return Session{}, false, fmt.Errorf("reading access token: %w", err)
	}
	refresh, err := getOptional(s.slots, storage.SlotRefreshToken)
	if err != nil {
		return Session{}, false, fmt.Errorf("reading refresh token: %w", err)
	}
	rawUser, err := getOptional(s.slots, storage.SlotUser)
	if err != nil {
		return Session{}, false, fmt.Errorf("reading user: %w", err)
	}

	var user *client.User
	if rawUser != "" {
		var u client.User
		if json.Unmarshal([]byte(rawUser), &u) == nil {
			user = &u
		}
	}

	sess := Session{AccessToken: access, RefreshToken: refresh, User: user}
	if !sess.Valid() {
		if access != "" || refresh != "" || rawUser != "" {
			if err := s.clearLocked(); err != nil {
				return Session{}, false, err
			}
		}
		return Session{}, false, nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, true, nil
}

// Save persists sess in one batch. An empty RefreshToken removes any stale
// one left from an earlier session.
func (s *Store) Save(sess Session) error {
	if !sess.Valid() {
		return fmt.Errorf("save session: access token and user are both required")
	}
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	err = s.slots.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(storage.SlotAccessToken, sess.AccessToken); err != nil {
			return err
		}
		if sess.RefreshToken != "" {
			if err := tx.Put(storage.SlotRefreshToken, sess.RefreshToken); err != nil {
				return err
			}
		} else if err := tx.Delete(storage.SlotRefreshToken); err != nil {
			return err
		}
		return tx.Put(storage.SlotUser, string(userJSON))
	})
	if err != nil {
		return fmt.Errorf("persisting session: %w", err)
	}

	u := *sess.User
	sess.User = &u
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}

// UpdateTokens replaces the token pair of the current session. An empty
// refresh keeps the existing refresh token. It returns ErrNoSession, and
// writes nothing, once the session has been cleared.
func (s *Store) UpdateTokens(access, refresh string) error {
	if access == "" {
		return fmt.Errorf("update tokens: access token is required")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.Current().Valid() {
		return fmt.Errorf("update tokens: %w", ErrNoSession)
	}
	err := s.slots.Batch(func(tx storage.BatchTx) error {
		if err := tx.Put(storage.SlotAccessToken, access); err != nil {
			return err
		}
		if refresh != "" {
			return tx.Put(storage.SlotRefreshToken, refresh)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("persisting tokens: %w", err)
	}
	s.mu.Lock()
	s.current.AccessToken = access
	if refresh != "" {
		s.current.RefreshToken = refresh
	}
	s.mu.Unlock()
	return nil
}

// SetUser replaces the stored identity, used when verification returns a
// fresher user record than the one persisted at login.
func (s *Store) SetUser(u client.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if !s.Current().Valid() {
		return fmt.Errorf("set user: %w", ErrNoSession)
	}
	if err := s.slots.Put(storage.SlotUser, string(data)); err != nil {
		return fmt.Errorf("persisting user: %w", err)
	}
	s.mu.Lock()
	s.current.User = &u
	s.mu.Unlock()
	return nil
}

// Clear removes all three slots together and resets the snapshot. The
// snapshot is reset even when storage fails, so the process never keeps
// using a session it tried to discard.
func (s *Store) Clear() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.clearLocked()
}

func (s *Store) clearLocked() error {
	s.mu.Lock()
	s.current = Session{}
	s.mu.Unlock()

	err := s.slots.Batch(func(tx storage.BatchTx) error {
		for _, name := range []string{storage.SlotAccessToken, storage.SlotRefreshToken, storage.SlotUser} {
			if err := tx.Delete(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// Current returns a copy of the in-memory session snapshot.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur := s.current
	if cur.User != nil {
		u := *cur.User
		cur.User = &u
	}
	return cur
}

// AccessToken implements client.TokenSource.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.RefreshToken
}

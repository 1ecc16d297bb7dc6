package storage

import (
	"encoding/base64"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/lectern/internal/util"
)

const (
	sealedAADPrefix = "lectern:slot:"
	sealKeyInfo     = "lectern:slot-seal:v1"
)

// Sealed wraps a Slots implementation and encrypts every value at rest with
// AES-256-GCM. The slot name is bound as AAD so values cannot be swapped
// between slots. The key lives in a memguard Enclave between uses.
type Sealed struct {
	inner Slots
	key   *memguard.Enclave
}

var _ Slots = (*Sealed)(nil)

// NewSealed derives the sealing key from secret with HKDF and returns the
// decorated store.
func NewSealed(inner Slots, secret []byte) (*Sealed, error) {
	key, err := util.DeriveKey(secret, nil, []byte(sealKeyInfo))
	if err != nil {
		return nil, fmt.Errorf("deriving seal key: %w", err)
	}
	// NewEnclave wipes key.
	return &Sealed{inner: inner, key: memguard.NewEnclave(key)}, nil
}

func (s *Sealed) withKey(fn func(key []byte) error) error {
	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("opening seal key: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

func (s *Sealed) seal(name, value string) (string, error) {
	var out string
	err := s.withKey(func(key []byte) error {
		sealed, err := util.Seal([]byte(value), key, []byte(sealedAADPrefix+name))
		if err != nil {
			return err
		}
		out = base64.StdEncoding.EncodeToString(sealed)
		return nil
	})
	return out, err
}

func (s *Sealed) open(name, stored string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return "", fmt.Errorf("decoding sealed slot %s: %w", name, err)
	}
	var out string
	err = s.withKey(func(key []byte) error {
		plain, err := util.Open(raw, key, []byte(sealedAADPrefix+name))
		if err != nil {
			return err
		}
		out = string(plain)
		util.WipeBytes(plain)
		return nil
	})
	return out, err
}

func (s *Sealed) Get(name string) (string, error) {
	stored, err := s.inner.Get(name)
	if err != nil {
		return "", err
	}
	return s.open(name, stored)
}

func (s *Sealed) Put(name, value string) error {
	sealed, err := s.seal(name, value)
	if err != nil {
		return err
	}
	return s.inner.Put(name, sealed)
}

func (s *Sealed) Delete(name string) error {
	return s.inner.Delete(name)
}

func (s *Sealed) Batch(fn func(tx BatchTx) error) error {
	return s.inner.Batch(func(tx BatchTx) error {
		return fn(&sealedBatchTx{store: s, tx: tx})
	})
}

type sealedBatchTx struct {
	store *Sealed
	tx    BatchTx
}

func (t *sealedBatchTx) Put(name, value string) error {
	sealed, err := t.store.seal(name, value)
	if err != nil {
		return err
	}
	return t.tx.Put(name, sealed)
}

func (t *sealedBatchTx) Delete(name string) error {
	return t.tx.Delete(name)
}

package memory

import (
	"testing"

	"github.com/jmcleod/lectern/storage"
	"github.com/jmcleod/lectern/storage/storagetest"
)

func TestMemoryRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Slots {
		return NewRepository()
	})
}

func TestSealedMemoryRepository(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Slots {
		s, err := storage.NewSealed(NewRepository(), []byte("test-seal-secret"))
		if err != nil {
			t.Fatalf("NewSealed failed: %v", err)
		}
		return s
	})
}

func TestSealedValuesAreNotPlaintext(t *testing.T) {
	inner := NewRepository()
	s, err := storage.NewSealed(inner, []byte("test-seal-secret"))
	if err != nil {
		t.Fatalf("NewSealed failed: %v", err)
	}
	if err := s.Put(storage.SlotRefreshToken, "refresh-123"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	raw, err := inner.Get(storage.SlotRefreshToken)
	if err != nil {
		t.Fatalf("inner Get failed: %v", err)
	}
	if raw == "refresh-123" {
		t.Fatal("expected sealed value at rest")
	}

	// A value moved to another slot must fail to open.
	if err := inner.Put(storage.SlotAccessToken, raw); err != nil {
		t.Fatalf("inner Put failed: %v", err)
	}
	if _, err := s.Get(storage.SlotAccessToken); err == nil {
		t.Fatal("expected AAD mismatch when opening a swapped slot")
	}

	// A different secret cannot read the value.
	other, _ := storage.NewSealed(inner, []byte("other-secret"))
	if _, err := other.Get(storage.SlotRefreshToken); err == nil {
		t.Fatal("expected failure with a different seal secret")
	}
}

// Package storage provides durable string slots for client-side session state.
package storage

import "errors"

// ErrNotFound is returned when a slot has never been written or was deleted.
var ErrNotFound = errors.New("slot not found")

// Slot names used for the persisted session record.
const (
	SlotAccessToken  = "access_token"
	SlotRefreshToken = "refresh_token"
	SlotUser         = "user"
)

// BatchTx provides Put and Delete within an atomic transaction.
type BatchTx interface {
	Put(name, value string) error
	Delete(name string) error
}

// Slots is a small named key/value store. Batch applies all writes of fn or
// none of them.
type Slots interface {
	Get(name string) (string, error)
	Put(name, value string) error
	Delete(name string) error
	Batch(fn func(tx BatchTx) error) error
}

// Package storage defines the transactional key-value abstraction the
// game controller uses to persist the current tip and the per-block
// undo chain, plus the in-memory reference backend. Durable backends
// live in the leveldbstore and sqlitestore subpackages and satisfy the
// same Storage interface.
package storage

/*
 * Licensed under LGPL-3.0.
 *
 * You can get a copy of the LGPL-3.0 License at
 *
 * https://www.gnu.org/licenses/lgpl-3.0.en.html
 *
 * @wcgcyx - https://github.com/wcgcyx
 */

import (
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
)

// Storage is the capability set every backend (memory, leveldbstore,
// sqlitestore) implements identically. All mutators are only valid
// between BeginTransaction and CommitTransaction/RollbackTransaction.
type Storage interface {
	// BeginTransaction opens a new write transaction. It is an error
	// to call it while one is already open.
	BeginTransaction() error
	// CommitTransaction durably applies every write made since the
	// matching BeginTransaction.
	CommitTransaction() error
	// RollbackTransaction discards every write made since the
	// matching BeginTransaction.
	RollbackTransaction() error
	// InTransaction reports whether a transaction is currently open.
	InTransaction() bool

	// GetCurrentBlockHash returns the hash of the authoritative tip,
	// or the zero hash if storage has never been initialised.
	GetCurrentBlockHash() (hash.BlockHash, error)
	// GetCurrentGameState returns the state paired with the current tip.
	GetCurrentGameState() (rule.GameState, error)
	// SetCurrentGameState atomically updates both the current hash and
	// the current state. Must be called within an open transaction.
	SetCurrentGameState(h hash.BlockHash, state rule.GameState) error

	// GetUndoData returns the undo data stored for h, and whether it
	// was present.
	GetUndoData(h hash.BlockHash) (rule.UndoData, bool, error)
	// AddUndoData records the undo data produced by the forward step
	// at h/height. Re-adding identical (h, height, undo) is a no-op;
	// re-adding with different bytes is an error. Must be called
	// within an open transaction.
	AddUndoData(h hash.BlockHash, height uint64, undo rule.UndoData) error
	// ReleaseUndoData deletes the undo record for h. Must be called
	// within an open transaction.
	ReleaseUndoData(h hash.BlockHash) error
	// PruneUndoData removes every undo record whose stored height is
	// <= heightCutoff, except the record for the current tip, which is
	// never removed by this call. Must be called within an open
	// transaction.
	PruneUndoData(heightCutoff uint64) error

	// Clear wipes all persisted state, current tip included. Must be
	// called within an open transaction.
	Clear() error

	// Close releases any resources (file handles, connections) held by
	// the backend. Durable backends must leave the on-disk state
	// exactly as of the last commit.
	Close() error
}

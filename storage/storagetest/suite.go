// Package storagetest provides a compliance test suite run against
// every Storage backend (memory, leveldbstore, sqlitestore) from a
// single definition, so the three backends are held to byte-for-byte
// identical behaviour.
package storagetest

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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/storage"
)

// h builds a deterministic, distinct BlockHash for test case n.
func h(n uint64) hash.BlockHash {
	var raw [hash.Size]byte
	binary.BigEndian.PutUint64(raw[hash.Size-8:], n)
	bh, err := hash.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return bh
}

// RunComplianceSuite runs the shared Storage behaviour contract
// against a freshly constructed backend returned by factory.
func RunComplianceSuite(t *testing.T, factory func() storage.Storage) {
	t.Helper()

	t.Run("mutators_require_open_transaction", func(t *testing.T) {
		s := factory()
		defer s.Close()
		err := s.SetCurrentGameState(h(1), []byte("x"))
		assert.Error(t, err)
	})

	t.Run("set_and_get_current_state", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.SetCurrentGameState(h(1), []byte("hello")))
		require.NoError(t, s.CommitTransaction())

		got, err := s.GetCurrentBlockHash()
		require.NoError(t, err)
		assert.Equal(t, h(1), got)

		state, err := s.GetCurrentGameState()
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), []byte(state))
	})

	t.Run("rollback_discards_pending_writes", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.SetCurrentGameState(h(1), []byte("first")))
		require.NoError(t, s.CommitTransaction())

		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.SetCurrentGameState(h(2), []byte("second")))
		require.NoError(t, s.RollbackTransaction())

		got, err := s.GetCurrentBlockHash()
		require.NoError(t, err)
		assert.Equal(t, h(1), got)
	})

	t.Run("reads_within_transaction_see_pending_writes", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.SetCurrentGameState(h(1), []byte("pending")))
		got, err := s.GetCurrentBlockHash()
		require.NoError(t, err)
		assert.Equal(t, h(1), got)
		require.NoError(t, s.RollbackTransaction())
	})

	t.Run("undo_round_trip", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.AddUndoData(h(1), 10, []byte("undo-1")))
		require.NoError(t, s.CommitTransaction())

		undo, ok, err := s.GetUndoData(h(1))
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("undo-1"), []byte(undo))

		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.ReleaseUndoData(h(1)))
		require.NoError(t, s.CommitTransaction())

		_, ok, err = s.GetUndoData(h(1))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("add_undo_idempotent_for_identical_bytes", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.AddUndoData(h(1), 10, []byte("same")))
		require.NoError(t, s.AddUndoData(h(1), 10, []byte("same")))
		require.NoError(t, s.CommitTransaction())
	})

	t.Run("add_undo_rejects_conflicting_bytes", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.AddUndoData(h(1), 10, []byte("first")))
		err := s.AddUndoData(h(1), 10, []byte("different"))
		assert.Error(t, err)
		require.NoError(t, s.RollbackTransaction())
	})

	t.Run("prune_removes_old_but_keeps_current_tip", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.AddUndoData(h(1), 10, []byte("u1")))
		require.NoError(t, s.AddUndoData(h(2), 20, []byte("u2")))
		require.NoError(t, s.SetCurrentGameState(h(1), []byte("tip-state")))
		require.NoError(t, s.CommitTransaction())

		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.PruneUndoData(20))
		require.NoError(t, s.CommitTransaction())

		_, ok, err := s.GetUndoData(h(1))
		require.NoError(t, err)
		assert.True(t, ok, "undo for current tip must survive pruning")

		_, ok, err = s.GetUndoData(h(2))
		require.NoError(t, err)
		assert.False(t, ok, "undo at or below cutoff must be pruned")
	})

	t.Run("clear_resets_everything", func(t *testing.T) {
		s := factory()
		defer s.Close()
		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.SetCurrentGameState(h(1), []byte("x")))
		require.NoError(t, s.AddUndoData(h(1), 10, []byte("u")))
		require.NoError(t, s.CommitTransaction())

		require.NoError(t, s.BeginTransaction())
		require.NoError(t, s.Clear())
		require.NoError(t, s.CommitTransaction())

		got, err := s.GetCurrentBlockHash()
		require.NoError(t, err)
		assert.True(t, got.IsZero())

		_, ok, err := s.GetUndoData(h(1))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

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
	"bytes"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/xerr"
)

// Logger
var log = logging.Logger("storage")

type undoRecord struct {
	height uint64
	data   rule.UndoData
}

// memoryImpl is the in-memory reference Storage backend. It layers a
// pending-write overlay over the committed maps during a transaction,
// discarded wholesale on rollback, so the same behaviour the durable
// backends offer via their native write-ahead logs is observable here
// too.
type memoryImpl struct {
	mu sync.Mutex

	currentHash  hash.BlockHash
	currentState rule.GameState
	undo         map[hash.BlockHash]undoRecord

	inTxn       bool
	pendingHash  *hash.BlockHash
	pendingState rule.GameState
	pendingUndo  map[hash.BlockHash]*undoRecord // nil value entry means deleted
}

// NewMemoryStorage creates a new in-memory Storage backend.
func NewMemoryStorage() Storage {
	return &memoryImpl{
		undo: make(map[hash.BlockHash]undoRecord),
	}
}

func (s *memoryImpl) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTxn {
		return xerr.New(xerr.KindMisuse, "transaction already open")
	}
	s.inTxn = true
	s.pendingHash = nil
	s.pendingState = nil
	s.pendingUndo = make(map[hash.BlockHash]*undoRecord)
	return nil
}

func (s *memoryImpl) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTxn
}

func (s *memoryImpl) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTxn {
		return xerr.New(xerr.KindMisuse, "no transaction open")
	}
	if s.pendingHash != nil {
		s.currentHash = *s.pendingHash
		s.currentState = s.pendingState
	}
	for h, rec := range s.pendingUndo {
		if rec == nil {
			delete(s.undo, h)
		} else {
			s.undo[h] = *rec
		}
	}
	s.inTxn = false
	s.pendingHash = nil
	s.pendingState = nil
	s.pendingUndo = nil
	return nil
}

func (s *memoryImpl) RollbackTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inTxn {
		return xerr.New(xerr.KindMisuse, "no transaction open")
	}
	s.inTxn = false
	s.pendingHash = nil
	s.pendingState = nil
	s.pendingUndo = nil
	return nil
}

func (s *memoryImpl) requireTxn() error {
	if !s.inTxn {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	return nil
}

func (s *memoryImpl) GetCurrentBlockHash() (hash.BlockHash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTxn && s.pendingHash != nil {
		return *s.pendingHash, nil
	}
	return s.currentHash, nil
}

func (s *memoryImpl) GetCurrentGameState() (rule.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTxn && s.pendingHash != nil {
		return s.pendingState, nil
	}
	return s.currentState, nil
}

func (s *memoryImpl) SetCurrentGameState(h hash.BlockHash, state rule.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTxn(); err != nil {
		return err
	}
	s.pendingHash = &h
	s.pendingState = state
	return nil
}

func (s *memoryImpl) GetUndoData(h hash.BlockHash) (rule.UndoData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inTxn {
		if rec, ok := s.pendingUndo[h]; ok {
			if rec == nil {
				return nil, false, nil
			}
			return rec.data, true, nil
		}
	}
	rec, ok := s.undo[h]
	if !ok {
		return nil, false, nil
	}
	return rec.data, true, nil
}

func (s *memoryImpl) AddUndoData(h hash.BlockHash, height uint64, undo rule.UndoData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTxn(); err != nil {
		return err
	}
	existing, ok := s.lockedLookupUndo(h)
	if ok {
		if existing.height == height && bytes.Equal(existing.data, undo) {
			return nil
		}
		return xerr.New(xerr.KindFatalInvariant, fmt.Sprintf("undo data for %v already exists with different contents", h))
	}
	s.pendingUndo[h] = &undoRecord{height: height, data: undo}
	return nil
}

// lockedLookupUndo must be called with s.mu held.
func (s *memoryImpl) lockedLookupUndo(h hash.BlockHash) (undoRecord, bool) {
	if rec, ok := s.pendingUndo[h]; ok {
		if rec == nil {
			return undoRecord{}, false
		}
		return *rec, true
	}
	rec, ok := s.undo[h]
	return rec, ok
}

func (s *memoryImpl) ReleaseUndoData(h hash.BlockHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTxn(); err != nil {
		return err
	}
	s.pendingUndo[h] = nil
	return nil
}

func (s *memoryImpl) PruneUndoData(heightCutoff uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTxn(); err != nil {
		return err
	}
	currentHash := s.currentHash
	if s.pendingHash != nil {
		currentHash = *s.pendingHash
	}
	merged := make(map[hash.BlockHash]undoRecord, len(s.undo))
	for h, rec := range s.undo {
		merged[h] = rec
	}
	for h, rec := range s.pendingUndo {
		if rec == nil {
			delete(merged, h)
		} else {
			merged[h] = *rec
		}
	}
	for h, rec := range merged {
		if h == currentHash {
			continue
		}
		if rec.height <= heightCutoff {
			s.pendingUndo[h] = nil
		}
	}
	return nil
}

func (s *memoryImpl) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireTxn(); err != nil {
		return err
	}
	zero := hash.Zero
	s.pendingHash = &zero
	s.pendingState = nil
	for h := range s.undo {
		s.pendingUndo[h] = nil
	}
	return nil
}

func (s *memoryImpl) Close() error {
	return nil
}

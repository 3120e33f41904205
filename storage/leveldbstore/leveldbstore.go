package leveldbstore

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
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log"
	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/xerr"
)

var log = logging.Logger("leveldbstore")

// storeImpl is a durable Storage backend holding a single LevelDB
// database. Only one write transaction may be open at a time, matching
// goleveldb's own single-writer model.
type storeImpl struct {
	mu  sync.Mutex
	db  *leveldb.DB
	txn *leveldb.Transaction
}

// New opens (creating if absent) a LevelDB-backed Storage at path.
func New(path string) (storage.Storage, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("open leveldb at %q", path), err)
	}
	return &storeImpl{db: db}, nil
}

func (s *storeImpl) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn != nil {
		return xerr.New(xerr.KindMisuse, "transaction already open")
	}
	txn, err := s.db.OpenTransaction()
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "open leveldb transaction", err)
	}
	s.txn = txn
	return nil
}

func (s *storeImpl) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txn != nil
}

func (s *storeImpl) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn == nil {
		return xerr.New(xerr.KindMisuse, "no transaction open")
	}
	err := s.txn.Commit()
	s.txn = nil
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "commit leveldb transaction", err)
	}
	return nil
}

func (s *storeImpl) RollbackTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn == nil {
		return xerr.New(xerr.KindMisuse, "no transaction open")
	}
	s.txn.Discard()
	s.txn = nil
	return nil
}

func (s *storeImpl) get(key []byte) ([]byte, error) {
	var (
		v   []byte
		err error
	)
	if s.txn != nil {
		v, err = s.txn.Get(key, nil)
	} else {
		v, err = s.db.Get(key, nil)
	}
	if err != nil {
		if err == lerrors.ErrNotFound {
			return nil, nil
		}
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "leveldb get", err)
	}
	return v, nil
}

func (s *storeImpl) put(key, value []byte) error {
	if s.txn == nil {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	if err := s.txn.Put(key, value, nil); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "leveldb put", err)
	}
	return nil
}

func (s *storeImpl) del(key []byte) error {
	if s.txn == nil {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	if err := s.txn.Delete(key, nil); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "leveldb delete", err)
	}
	return nil
}

func (s *storeImpl) GetCurrentBlockHash() (hash.BlockHash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(currentHashKey)
	if err != nil {
		return hash.Zero, err
	}
	if v == nil {
		return hash.Zero, nil
	}
	return hash.FromBytes(v)
}

func (s *storeImpl) GetCurrentGameState() (rule.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(currentStateKey)
	if err != nil {
		return nil, err
	}
	return rule.GameState(v), nil
}

func (s *storeImpl) SetCurrentGameState(h hash.BlockHash, state rule.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.put(currentHashKey, h.Bytes()); err != nil {
		return err
	}
	return s.put(currentStateKey, state)
}

func (s *storeImpl) GetUndoData(h hash.BlockHash) (rule.UndoData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := s.get(undoKey(h))
	if err != nil {
		return nil, false, err
	}
	if v == nil {
		return nil, false, nil
	}
	_, data, err := decodeUndoValue(v)
	if err != nil {
		return nil, false, xerr.Wrap(xerr.KindStorageCorruption, "decode undo value", err)
	}
	return rule.UndoData(data), true, nil
}

func (s *storeImpl) AddUndoData(h hash.BlockHash, height uint64, undo rule.UndoData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, err := s.get(undoKey(h))
	if err != nil {
		return err
	}
	if existing != nil {
		existingHeight, existingData, err := decodeUndoValue(existing)
		if err != nil {
			return xerr.Wrap(xerr.KindStorageCorruption, "decode undo value", err)
		}
		if existingHeight == height && string(existingData) == string(undo) {
			return nil
		}
		return xerr.New(xerr.KindFatalInvariant, fmt.Sprintf("undo data for %v already exists with different contents", h))
	}
	return s.put(undoKey(h), encodeUndoValue(height, undo))
}

func (s *storeImpl) ReleaseUndoData(h hash.BlockHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.del(undoKey(h))
}

func (s *storeImpl) PruneUndoData(heightCutoff uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn == nil {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	currentRaw, err := s.get(currentHashKey)
	if err != nil {
		return err
	}
	var currentHash hash.BlockHash
	if currentRaw != nil {
		currentHash, err = hash.FromBytes(currentRaw)
		if err != nil {
			return xerr.Wrap(xerr.KindStorageCorruption, "decode current hash", err)
		}
	}

	it := s.txn.NewIterator(util.BytesPrefix(undoPrefix), nil)
	defer it.Release()
	var toDelete [][]byte
	for it.Next() {
		key := append([]byte{}, it.Key()...)
		h, err := hashFromUndoKey(key)
		if err != nil {
			return xerr.Wrap(xerr.KindStorageCorruption, "decode undo key", err)
		}
		if h == currentHash {
			continue
		}
		height, _, err := decodeUndoValue(it.Value())
		if err != nil {
			return xerr.Wrap(xerr.KindStorageCorruption, "decode undo value", err)
		}
		if height <= heightCutoff {
			toDelete = append(toDelete, key)
		}
	}
	if err := it.Error(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "iterate undo records", err)
	}
	for _, key := range toDelete {
		if err := s.del(key); err != nil {
			return err
		}
	}
	return nil
}

func (s *storeImpl) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn == nil {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	it := s.txn.NewIterator(nil, nil)
	defer it.Release()
	var keys [][]byte
	for it.Next() {
		keys = append(keys, append([]byte{}, it.Key()...))
	}
	if err := it.Error(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "iterate keys for clear", err)
	}
	for _, k := range keys {
		if err := s.del(k); err != nil {
			return err
		}
	}
	return nil
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.txn != nil {
		s.txn.Discard()
		s.txn = nil
	}
	if err := s.db.Close(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "close leveldb", err)
	}
	return nil
}

// Package sqlitestore is a durable Storage backend on top of
// database/sql and mattn/go-sqlite3, writing through a single
// serialized connection in WAL mode.
package sqlitestore

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
	"database/sql"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log"
	_ "github.com/mattn/go-sqlite3"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/xerr"
)

var log = logging.Logger("sqlitestore")

const schema = `
CREATE TABLE IF NOT EXISTS current (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	hash BLOB NOT NULL,
	state BLOB
);
CREATE TABLE IF NOT EXISTS undo (
	hash BLOB PRIMARY KEY,
	height INTEGER NOT NULL,
	data BLOB
);
`

// storeImpl is a durable Storage backend backed by a single sqlite3
// file opened with one serialized writer connection, matching the
// database/sql-over-WAL pattern used for the relational game adapter.
type storeImpl struct {
	mu sync.Mutex
	db *sql.DB
	tx *sql.Tx
}

// New opens (creating and migrating if absent) a sqlite3-backed
// Storage at path.
func New(path string) (storage.Storage, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("open sqlite3 at %q", path), err)
	}
	// A single connection serializes every write, mirroring the
	// single-writer invariant the controller already assumes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "apply sqlitestore schema", err)
	}
	return &storeImpl{db: db}, nil
}

func (s *storeImpl) BeginTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		return xerr.New(xerr.KindMisuse, "transaction already open")
	}
	tx, err := s.db.Begin()
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "begin sqlite transaction", err)
	}
	s.tx = tx
	return nil
}

func (s *storeImpl) InTransaction() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

func (s *storeImpl) CommitTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return xerr.New(xerr.KindMisuse, "no transaction open")
	}
	err := s.tx.Commit()
	s.tx = nil
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "commit sqlite transaction", err)
	}
	return nil
}

func (s *storeImpl) RollbackTransaction() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return xerr.New(xerr.KindMisuse, "no transaction open")
	}
	err := s.tx.Rollback()
	s.tx = nil
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "rollback sqlite transaction", err)
	}
	return nil
}

// queryRow runs against the open transaction if there is one,
// otherwise against the base handle for plain reads.
func (s *storeImpl) queryRow(query string, args ...interface{}) *sql.Row {
	if s.tx != nil {
		return s.tx.QueryRow(query, args...)
	}
	return s.db.QueryRow(query, args...)
}

func (s *storeImpl) query(query string, args ...interface{}) (*sql.Rows, error) {
	if s.tx != nil {
		return s.tx.Query(query, args...)
	}
	return s.db.Query(query, args...)
}

func (s *storeImpl) exec(query string, args ...interface{}) error {
	if s.tx == nil {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	_, err := s.tx.Exec(query, args...)
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "sqlitestore exec", err)
	}
	return nil
}

func (s *storeImpl) GetCurrentBlockHash() (hash.BlockHash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw []byte
	err := s.queryRow(`SELECT hash FROM current WHERE id = 0`).Scan(&raw)
	if err == sql.ErrNoRows {
		return hash.Zero, nil
	}
	if err != nil {
		return hash.Zero, xerr.Wrap(xerr.KindStorageCorruption, "read current hash", err)
	}
	return hash.FromBytes(raw)
}

func (s *storeImpl) GetCurrentGameState() (rule.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw []byte
	err := s.queryRow(`SELECT state FROM current WHERE id = 0`).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "read current state", err)
	}
	return rule.GameState(raw), nil
}

func (s *storeImpl) SetCurrentGameState(h hash.BlockHash, state rule.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(
		`INSERT INTO current (id, hash, state) VALUES (0, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET hash = excluded.hash, state = excluded.state`,
		h.Bytes(), []byte(state),
	)
}

func (s *storeImpl) GetUndoData(h hash.BlockHash) (rule.UndoData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var data []byte
	err := s.queryRow(`SELECT data FROM undo WHERE hash = ?`, h.Bytes()).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, xerr.Wrap(xerr.KindStorageCorruption, "read undo data", err)
	}
	return rule.UndoData(data), true, nil
}

func (s *storeImpl) AddUndoData(h hash.BlockHash, height uint64, undo rule.UndoData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existingHeight int64
	var existingData []byte
	err := s.queryRow(`SELECT height, data FROM undo WHERE hash = ?`, h.Bytes()).Scan(&existingHeight, &existingData)
	if err == nil {
		if uint64(existingHeight) == height && string(existingData) == string(undo) {
			return nil
		}
		return xerr.New(xerr.KindFatalInvariant, fmt.Sprintf("undo data for %v already exists with different contents", h))
	}
	if err != sql.ErrNoRows {
		return xerr.Wrap(xerr.KindStorageCorruption, "check existing undo data", err)
	}
	return s.exec(`INSERT INTO undo (hash, height, data) VALUES (?, ?, ?)`, h.Bytes(), int64(height), []byte(undo))
}

func (s *storeImpl) ReleaseUndoData(h hash.BlockHash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec(`DELETE FROM undo WHERE hash = ?`, h.Bytes())
}

func (s *storeImpl) PruneUndoData(heightCutoff uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		return xerr.New(xerr.KindMisuse, "mutator called outside an open transaction")
	}
	var currentRaw []byte
	err := s.queryRow(`SELECT hash FROM current WHERE id = 0`).Scan(&currentRaw)
	if err != nil && err != sql.ErrNoRows {
		return xerr.Wrap(xerr.KindStorageCorruption, "read current hash for prune", err)
	}
	return s.exec(`DELETE FROM undo WHERE height <= ? AND hash != ?`, int64(heightCutoff), currentRaw)
}

func (s *storeImpl) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exec(`DELETE FROM current`); err != nil {
		return err
	}
	return s.exec(`DELETE FROM undo`)
}

func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx != nil {
		s.tx.Rollback()
		s.tx = nil
	}
	if err := s.db.Close(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "close sqlitestore", err)
	}
	return nil
}

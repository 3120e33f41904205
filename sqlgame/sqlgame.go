// Package sqlgame adapts a SQL-backed game implementation to the
// rule.Rule interface. Instead of opaque GameState bytes, the real
// state lives in ordinary SQL tables; the adapter tracks the inverse
// of every write with undo-log triggers so a detach can be replayed
// backwards without invoking user code again.
package sqlgame

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
	"encoding/json"
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/xerr"
)

var log = logging.Logger("sqlgame")

// sentinelState is the fixed GameState value returned to the
// controller for every SQL-backed game: the real content lives in the
// SQL tables, not in this byte string, so its only job is to let the
// controller notice "something changed" without inspecting it.
const sentinelState = "xayagame-sql-state:v1"

// genesisSavepoint tags undo-log rows written by InitialiseState. It
// is never issued to a real forward step (those start at 0 and only
// increase), so genesis seeding can never be mistaken for a block's
// undo range.
const genesisSavepoint = -1

// Game is the user-supplied capability set the adapter drives. All
// methods receive the open *sql.Tx for the current savepoint.
type Game interface {
	// SetupSchema creates the game's own tables. Idempotent: called
	// every time the adapter opens the database, so it must contain
	// no row-seeding statements (use CREATE TABLE IF NOT EXISTS and
	// nothing that would violate a constraint on a second run).
	SetupSchema(tx *sql.Tx) error
	// InitialiseState seeds the rows present before any move is
	// applied. Called exactly once, the first time the adapter opens
	// a database with no persisted tip yet; never called again on a
	// later restart against the same database.
	InitialiseState(tx *sql.Tx) error
	// UpdateState applies blk's moves/admin commands to the game's
	// tables. Any changes made here are captured by the undo-log
	// triggers automatically.
	UpdateState(tx *sql.Tx, blk rule.BlockData) error
	// ToJson renders the current game state (read through tx) as JSON.
	ToJson(tx *sql.Tx) (json.RawMessage, error)
	// Tables lists the user tables that participate in undo tracking,
	// in the order SetupSchema created them.
	Tables() []string
}

const schema = `
CREATE TABLE IF NOT EXISTS xayagame_meta (
	id INTEGER PRIMARY KEY CHECK (id = 0),
	tip_hash BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS xayagame_ids (
	name TEXT PRIMARY KEY,
	next_value INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS xayagame_undo_log (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	savepoint_id INTEGER NOT NULL,
	stmt TEXT NOT NULL
);
`

// Adapter implements rule.Rule against a Game backed by a sqlite3
// database.
type Adapter struct {
	db          *sql.DB
	game        Game
	genesis     uint64
	genesisHash hash.BlockHash
	initialJson json.RawMessage

	currentTip hash.BlockHash

	nextSavepoint    int
	currentSavepoint int
}

// Open opens (creating and migrating if absent) the database at path
// and wires it to game.
func Open(path string, game Game, genesisHeight uint64, genesisHash hash.BlockHash) (*Adapter, error) {
	a := &Adapter{game: game, genesis: genesisHeight, genesisHash: genesisHash}
	driverName := registerSavepointAwareDriver(&a.currentSavepoint)

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("open sqlgame database %q", path), err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "apply sqlgame schema", err)
	}
	a.db = db

	tx, err := db.Begin()
	if err != nil {
		db.Close()
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "begin schema setup transaction", err)
	}
	if err := game.SetupSchema(tx); err != nil {
		tx.Rollback()
		db.Close()
		return nil, xerr.Wrap(xerr.KindFatalInvariant, "SetupSchema failed", err)
	}
	if err := a.installTriggers(tx, game.Tables()); err != nil {
		tx.Rollback()
		db.Close()
		return nil, err
	}

	var tipRaw []byte
	err = tx.QueryRow(`SELECT tip_hash FROM xayagame_meta WHERE id = 0`).Scan(&tipRaw)
	switch {
	case err == nil:
		tip, err := hash.FromBytes(tipRaw)
		if err != nil {
			tx.Rollback()
			db.Close()
			return nil, xerr.Wrap(xerr.KindStorageCorruption, "decode persisted tip hash", err)
		}
		a.currentTip = tip
	case err == sql.ErrNoRows:
		// Fresh database: no forward step has ever run, so this is
		// genesis. Seed initial rows once, outside any real
		// savepoint so the undo-log rows it triggers never get
		// confused with a later forward step's own undo range.
		a.currentSavepoint = genesisSavepoint
		if err := game.InitialiseState(tx); err != nil {
			tx.Rollback()
			db.Close()
			return nil, xerr.Wrap(xerr.KindFatalInvariant, "InitialiseState failed", err)
		}
		if _, err := tx.Exec(`DELETE FROM xayagame_undo_log WHERE savepoint_id = ?`, genesisSavepoint); err != nil {
			tx.Rollback()
			db.Close()
			return nil, xerr.Wrap(xerr.KindStorageCorruption, "clear genesis seed undo log", err)
		}
		if err := a.setTip(tx, a.genesisHash); err != nil {
			tx.Rollback()
			db.Close()
			return nil, err
		}
		a.currentTip = a.genesisHash
	default:
		tx.Rollback()
		db.Close()
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "read persisted tip hash", err)
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "commit schema setup", err)
	}
	return a, nil
}

// Close closes the underlying database handle.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// DB exposes the raw handle for tests that need to inspect tables
// directly.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

// Package sqlchat is a SQL-backed sqlgame.Game used by the relational
// adapter's property tests. Each move is a player name; attaching it
// allocates the next id from two independently-named allocators and
// records the pair in two tables, exercising the id-allocator's
// forward/backward replay and restart-persistence properties.
package sqlchat

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

	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/sqlgame"
)

// FirstTable and SecondTable are the two user tables Game maintains,
// each keyed by player name and fed by a differently-seeded allocator.
const (
	FirstTable  = "first"
	SecondTable = "second"

	firstAllocator  = "first_ids"
	secondAllocator = "second_ids"
)

// Game is a sqlgame.Game wiring two id allocators to two tables.
type Game struct {
	// Initial lists the rows present before any move is applied,
	// seeded by InitialiseState.
	Initial map[string]struct{ First, Second int64 }
	// FirstStart and SecondStart reserve the given allocators up to
	// (but not including) these values before any move runs.
	FirstStart, SecondStart int64
}

var _ sqlgame.Game = (*Game)(nil)

func (g *Game) Tables() []string {
	return []string{FirstTable, SecondTable}
}

func (g *Game) SetupSchema(tx *sql.Tx) error {
	if _, err := tx.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`, FirstTable)); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (name TEXT PRIMARY KEY, value INTEGER NOT NULL)`, SecondTable)); err != nil {
		return err
	}
	return nil
}

// InitialiseState seeds the rows and allocator floors present before
// any move is applied. Called once, only at genesis.
func (g *Game) InitialiseState(tx *sql.Tx) error {
	if g.FirstStart > 0 {
		if err := sqlgame.ReserveUpTo(tx, firstAllocator, g.FirstStart-1); err != nil {
			return err
		}
	}
	if g.SecondStart > 0 {
		if err := sqlgame.ReserveUpTo(tx, secondAllocator, g.SecondStart-1); err != nil {
			return err
		}
	}
	for name, ids := range g.Initial {
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (name, value) VALUES (?, ?)`, FirstTable), name, ids.First); err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (name, value) VALUES (?, ?)`, SecondTable), name, ids.Second); err != nil {
			return err
		}
	}
	return nil
}

// UpdateState decodes blk.Moves as a JSON array of player names and,
// for each, allocates the next id from both allocators and inserts a
// row into both tables.
func (g *Game) UpdateState(tx *sql.Tx, blk rule.BlockData) error {
	var names []string
	if err := json.Unmarshal(blk.Moves, &names); err != nil {
		return fmt.Errorf("sqlchat: decode moves: %w", err)
	}
	for _, name := range names {
		first, err := sqlgame.GetNext(tx, firstAllocator)
		if err != nil {
			return err
		}
		second, err := sqlgame.GetNext(tx, secondAllocator)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (name, value) VALUES (?, ?)`, FirstTable), name, first); err != nil {
			return err
		}
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s (name, value) VALUES (?, ?)`, SecondTable), name, second); err != nil {
			return err
		}
	}
	return nil
}

func (g *Game) ToJson(tx *sql.Tx) (json.RawMessage, error) {
	first, err := readTable(tx, FirstTable)
	if err != nil {
		return nil, err
	}
	second, err := readTable(tx, SecondTable)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		First  map[string]int64 `json:"first"`
		Second map[string]int64 `json:"second"`
	}{first, second})
}

func readTable(tx *sql.Tx, table string) (map[string]int64, error) {
	rows, err := tx.Query(fmt.Sprintf(`SELECT name, value FROM %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var name string
		var value int64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

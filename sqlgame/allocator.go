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

	"github.com/wcgcyx/xayagame/xerr"
)

// GetNext returns the next unused id for name and advances the
// allocator by one. It must be called within the *sql.Tx passed to
// Game.UpdateState so the increment rolls back with everything else
// on a RuleFailure, and replays identically on a backward/forward
// re-chain.
func GetNext(tx *sql.Tx, name string) (int64, error) {
	var next int64
	err := tx.QueryRow(`SELECT next_value FROM xayagame_ids WHERE name = ?`, name).Scan(&next)
	if err == sql.ErrNoRows {
		next = 0
	} else if err != nil {
		return 0, xerr.Wrap(xerr.KindStorageCorruption, "read id allocator", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO xayagame_ids (name, next_value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET next_value = excluded.next_value`,
		name, next+1,
	); err != nil {
		return 0, xerr.Wrap(xerr.KindStorageCorruption, "advance id allocator", err)
	}
	return next, nil
}

// ReserveUpTo raises name's next id to max(current, n+1); smaller
// values are a no-op.
func ReserveUpTo(tx *sql.Tx, name string, n int64) error {
	var next int64
	err := tx.QueryRow(`SELECT next_value FROM xayagame_ids WHERE name = ?`, name).Scan(&next)
	if err != nil && err != sql.ErrNoRows {
		return xerr.Wrap(xerr.KindStorageCorruption, "read id allocator", err)
	}
	if n+1 <= next {
		return nil
	}
	if _, err := tx.Exec(
		`INSERT INTO xayagame_ids (name, next_value) VALUES (?, ?)
		 ON CONFLICT (name) DO UPDATE SET next_value = excluded.next_value`,
		name, n+1,
	); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "reserve id allocator range", err)
	}
	return nil
}

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
	"strings"

	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/xerr"
)

// Initial implements rule.Rule. It never touches the database; the
// caller is expected to pair it with a Storage instance (e.g.
// sqlitestore pointed at the same file) that persists the sentinel
// state and tip hash across restarts.
func (a *Adapter) Initial(chain hash.ChainId) (uint64, hash.BlockHash, rule.GameState, error) {
	return a.genesis, a.genesisHash, rule.GameState(sentinelState), nil
}

// ProcessForward implements rule.Rule's forward step: it opens a
// savepoint, lets the triggers installed at Open time record the
// inverse of every write Game.UpdateState makes, then extracts those
// inverse statements as the UndoData returned to the controller.
func (a *Adapter) ProcessForward(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData) (rule.GameState, rule.UndoData, error) {
	sp := a.nextSavepoint
	a.nextSavepoint++
	a.currentSavepoint = sp

	tx, err := a.db.Begin()
	if err != nil {
		return nil, nil, xerr.Wrap(xerr.KindStorageCorruption, "begin forward-step transaction", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("SAVEPOINT sp%d", sp)); err != nil {
		tx.Rollback()
		return nil, nil, xerr.Wrap(xerr.KindStorageCorruption, "open savepoint", err)
	}

	if err := a.game.UpdateState(tx, blk); err != nil {
		tx.Exec(fmt.Sprintf("ROLLBACK TO sp%d", sp))
		tx.Exec(fmt.Sprintf("RELEASE sp%d", sp))
		tx.Commit()
		return nil, nil, xerr.Wrap(xerr.KindRuleFailure, "UpdateState failed", err)
	}

	undo, err := a.extractUndo(tx, sp)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if _, err := tx.Exec(fmt.Sprintf("RELEASE sp%d", sp)); err != nil {
		tx.Rollback()
		return nil, nil, xerr.Wrap(xerr.KindStorageCorruption, "release savepoint", err)
	}
	if err := a.setTip(tx, blk.Hash); err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, xerr.Wrap(xerr.KindStorageCorruption, "commit forward step", err)
	}
	a.currentTip = blk.Hash
	return rule.GameState(sentinelState), undo, nil
}

// ProcessBackwards implements rule.Rule's backward step: it replays
// the inverse statements captured at forward time, in reverse order,
// without calling user code again.
func (a *Adapter) ProcessBackwards(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData, undo rule.UndoData) (rule.GameState, error) {
	var stmts []string
	if err := json.Unmarshal(undo, &stmts); err != nil {
		return nil, xerr.Wrap(xerr.KindFatalInvariant, "undo data is not a valid statement list", err)
	}

	tx, err := a.db.Begin()
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "begin backward-step transaction", err)
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			tx.Rollback()
			return nil, xerr.Wrap(xerr.KindStorageCorruption, "replay undo statement", err)
		}
	}
	if err := a.setTip(tx, blk.Parent); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "commit backward step", err)
	}
	a.currentTip = blk.Parent
	return rule.GameState(sentinelState), nil
}

// GameStateToJson implements rule.Rule's read path: "initial" and
// "block <hex>" are literal request forms that must match the
// adapter's internally-tracked tip before user ToJson code runs.
func (a *Adapter) GameStateToJson(state rule.GameState) (json.RawMessage, error) {
	s := string(state)
	switch {
	case s == sentinelState:
		return a.renderCurrent()
	case s == "initial":
		if a.currentTip != a.genesisHash {
			return nil, xerr.New(xerr.KindFatalInvariant, fmt.Sprintf("current tip %v does not match the game's initial block %v", a.currentTip, a.genesisHash))
		}
		return a.renderCurrent()
	case strings.HasPrefix(s, "block "):
		claimed, err := hash.FromHex(strings.TrimPrefix(s, "block "))
		if err != nil {
			return nil, xerr.Wrap(xerr.KindFatalInvariant, "malformed block state request", err)
		}
		if claimed != a.currentTip {
			return nil, xerr.New(xerr.KindFatalInvariant, fmt.Sprintf("requested block %v does not match the current tip %v", claimed, a.currentTip))
		}
		return a.renderCurrent()
	default:
		return nil, xerr.New(xerr.KindFatalInvariant, "Unexpected game state value")
	}
}

func (a *Adapter) renderCurrent() (json.RawMessage, error) {
	tx, err := a.db.Begin()
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "begin read transaction", err)
	}
	defer tx.Rollback()
	return a.game.ToJson(tx)
}

func (a *Adapter) setTip(tx *sql.Tx, h hash.BlockHash) error {
	_, err := tx.Exec(
		`INSERT INTO xayagame_meta (id, tip_hash) VALUES (0, ?)
		 ON CONFLICT (id) DO UPDATE SET tip_hash = excluded.tip_hash`,
		h.Bytes(),
	)
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "persist tip hash", err)
	}
	return nil
}

// extractUndo reads every undo-log row recorded under savepoint sp,
// in reverse insertion order (last write undone first), and removes
// them once captured.
func (a *Adapter) extractUndo(tx *sql.Tx, sp int) (rule.UndoData, error) {
	rows, err := tx.Query(`SELECT seq, stmt FROM xayagame_undo_log WHERE savepoint_id = ? ORDER BY seq DESC`, sp)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "read undo log", err)
	}
	var stmts []string
	var seqs []int64
	for rows.Next() {
		var seq int64
		var stmt string
		if err := rows.Scan(&seq, &stmt); err != nil {
			rows.Close()
			return nil, xerr.Wrap(xerr.KindStorageCorruption, "scan undo log row", err)
		}
		stmts = append(stmts, stmt)
		seqs = append(seqs, seq)
	}
	rows.Close()

	for _, seq := range seqs {
		if _, err := tx.Exec(`DELETE FROM xayagame_undo_log WHERE seq = ?`, seq); err != nil {
			return nil, xerr.Wrap(xerr.KindStorageCorruption, "clear undo log", err)
		}
	}

	raw, err := json.Marshal(stmts)
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, "serialize undo data", err)
	}
	return rule.UndoData(raw), nil
}

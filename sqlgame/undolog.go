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
	"fmt"

	"github.com/wcgcyx/xayagame/xerr"
)

// installTriggers wires AFTER INSERT/UPDATE/DELETE triggers on every
// table in tables (plus xayagame_ids, which participates in the same
// undo tracking) so each write appends the SQL statement that would
// undo it to xayagame_undo_log. This substitutes for the SQLite
// session extension, which the driver used here does not expose (see
// the design notes for why).
func (a *Adapter) installTriggers(tx *sql.Tx, tables []string) error {
	for _, table := range append(tables, "xayagame_ids") {
		if err := installTriggersForTable(tx, table); err != nil {
			return err
		}
	}
	return nil
}

func installTriggersForTable(tx *sql.Tx, table string) error {
	cols, err := tableColumns(tx, table)
	if err != nil {
		return err
	}
	pk, err := tablePrimaryKey(tx, table)
	if err != nil {
		return err
	}

	insertStmt := fmt.Sprintf(
		`CREATE TRIGGER IF NOT EXISTS xayagame_undo_%s_ins AFTER INSERT ON %s BEGIN
			INSERT INTO xayagame_undo_log (savepoint_id, stmt) VALUES (
				xayagame_current_savepoint(),
				'DELETE FROM %s WHERE %s = ' || quote(NEW.%s)
			);
		END;`, table, table, table, pk, pk)
	if _, err := tx.Exec(insertStmt); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("install insert trigger for %s", table), err)
	}

	setClause := ""
	for i, c := range cols {
		if i > 0 {
			setClause += " || ', ' || "
		}
		setClause += fmt.Sprintf("'%s = ' || quote(OLD.%s)", c, c)
	}
	updateStmt := fmt.Sprintf(
		`CREATE TRIGGER IF NOT EXISTS xayagame_undo_%s_upd AFTER UPDATE ON %s BEGIN
			INSERT INTO xayagame_undo_log (savepoint_id, stmt) VALUES (
				xayagame_current_savepoint(),
				'UPDATE %s SET ' || (%s) || ' WHERE %s = ' || quote(OLD.%s)
			);
		END;`, table, table, table, setClause, pk, pk)
	if _, err := tx.Exec(updateStmt); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("install update trigger for %s", table), err)
	}

	insertBack := "INSERT INTO " + table + " (" + joinCols(cols) + ") VALUES (" + quoteOldCols(cols) + ")"
	deleteStmt := fmt.Sprintf(
		`CREATE TRIGGER IF NOT EXISTS xayagame_undo_%s_del AFTER DELETE ON %s BEGIN
			INSERT INTO xayagame_undo_log (savepoint_id, stmt) VALUES (
				xayagame_current_savepoint(),
				'%s'
			);
		END;`, table, table, insertBack)
	if _, err := tx.Exec(deleteStmt); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("install delete trigger for %s", table), err)
	}
	return nil
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func quoteOldCols(cols []string) string {
	out := ""
	for i := range cols {
		if i > 0 {
			out += ", "
		}
		out += "' || quote(OLD." + cols[i] + ") || '"
	}
	return out
}

func tableColumns(tx *sql.Tx, table string) ([]string, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("inspect columns of %s", table), err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, xerr.Wrap(xerr.KindStorageCorruption, "scan table_info row", err)
		}
		cols = append(cols, name)
	}
	return cols, nil
}

func tablePrimaryKey(tx *sql.Tx, table string) (string, error) {
	rows, err := tx.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return "", xerr.Wrap(xerr.KindStorageCorruption, fmt.Sprintf("inspect primary key of %s", table), err)
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return "", xerr.Wrap(xerr.KindStorageCorruption, "scan table_info row", err)
		}
		if pk == 1 {
			return name, nil
		}
	}
	return "", xerr.New(xerr.KindFatalInvariant, fmt.Sprintf("table %s has no single-column primary key", table))
}

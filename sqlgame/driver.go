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
	"sync/atomic"

	sqlite3 "github.com/mattn/go-sqlite3"
)

var driverCounter atomic.Int64

// registerSavepointAwareDriver registers a uniquely-named sqlite3
// driver whose connections expose a xayagame_current_savepoint() SQL
// function reading *savepoint. Every Adapter gets its own driver name
// because database/sql.Register panics on a duplicate name and the
// function must close over this particular adapter's counter.
func registerSavepointAwareDriver(savepoint *int) string {
	name := fmt.Sprintf("sqlite3-xayagame-%d", driverCounter.Add(1))
	sql.Register(name, &sqlite3.SQLiteDriver{
		ConnectHook: func(c *sqlite3.SQLiteConn) error {
			return c.RegisterFunc("xayagame_current_savepoint", func() int64 {
				return int64(*savepoint)
			}, false)
		},
	})
	return name
}

// Package txbatch amortizes storage commit cost during catch-up by
// wrapping several consecutive writer-thread mutations in a single
// storage transaction.
package txbatch

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
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/xerr"
)

var log = logging.Logger("txbatch")

// Manager wraps N consecutive storage mutations in a single storage
// transaction. It is owned exclusively by the writer thread; callers
// must not invoke it concurrently.
type Manager struct {
	store   storage.Storage
	maxSize int
	maxWait time.Duration

	open      bool
	count     int
	openSince time.Time
}

// New creates a batch Manager over store. maxSize is the number of
// accepted events after which MaybeCommit commits regardless of
// elapsed time; maxWait is the elapsed-time bound after which
// MaybeCommit commits regardless of count. Either may be zero to
// disable that trigger (not both, or the batch would never close).
func New(store storage.Storage, maxSize int, maxWait time.Duration) *Manager {
	return &Manager{store: store, maxSize: maxSize, maxWait: maxWait}
}

// BatchBegin starts a batch, which MaybeCommit closes once maxSize or
// maxWait is reached. It
// is a no-op if a batch is already open, so call sites do not need to
// special-case "first event of the batch" versus "Nth event".
func (m *Manager) BatchBegin() error {
	if m.open {
		return nil
	}
	if err := m.store.BeginTransaction(); err != nil {
		return err
	}
	m.open = true
	m.count = 0
	m.openSince = time.Now()
	return nil
}

// Accept records that one more event was applied successfully inside
// the currently open transaction.
func (m *Manager) Accept() {
	if !m.open {
		return
	}
	m.count++
}

// MaybeCommit commits the open batch if it has filled or its timeout
// has elapsed. It is a no-op if no batch is open or neither trigger
// has fired.
func (m *Manager) MaybeCommit() error {
	if !m.open {
		return nil
	}
	full := m.maxSize > 0 && m.count >= m.maxSize
	expired := m.maxWait > 0 && time.Since(m.openSince) >= m.maxWait
	if !full && !expired {
		return nil
	}
	return m.Commit()
}

// Commit commits the open batch unconditionally.
func (m *Manager) Commit() error {
	if !m.open {
		return nil
	}
	if err := m.store.CommitTransaction(); err != nil {
		return err
	}
	m.open = false
	m.count = 0
	return nil
}

// Rollback discards every mutation made since BatchBegin. Called when
// the rule fails on any event within the batch, so the atomicity
// promised across several blocks is preserved.
func (m *Manager) Rollback() error {
	if !m.open {
		return nil
	}
	if err := m.store.RollbackTransaction(); err != nil {
		return err
	}
	m.open = false
	m.count = 0
	return nil
}

// IsOpen reports whether a batch transaction is currently open.
func (m *Manager) IsOpen() bool {
	return m.open
}

// Drain finishes whatever batch is open: it commits if ok is true,
// otherwise it rolls back. Used by the controller's Stop and Disconnect to
// leave storage in a defined state on every exit path.
func (m *Manager) Drain(ok bool) error {
	if !m.open {
		return nil
	}
	if ok {
		return m.Commit()
	}
	if err := m.Rollback(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "rollback batch during drain", err)
	}
	return nil
}

package controller

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
	"sync"
	"sync/atomic"
	"time"

	logging "github.com/ipfs/go-log"
	"github.com/wcgcyx/xayagame/eventsub"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/txbatch"
	"github.com/wcgcyx/xayagame/xerr"
)

var log = logging.Logger("controller")

// maxConsecutiveRuleFailures bounds how many forward steps in a row may
// fail the rule before the controller escalates to fatal. The count is
// reset only by a successful forward step; it does not track which
// event failed, so failures of different events count together.
const maxConsecutiveRuleFailures = 5

// Controller is the single writer-thread owner of storage and the
// rule object. Every mutating method below must only be called from
// the writer goroutine; concurrent callers use Snapshot/WaitForChange,
// which take the read lock instead.
type Controller struct {
	chain hash.ChainId
	r     rule.Rule
	store storage.Storage
	hc    *storage.HeightCache
	batch *txbatch.Manager

	pruneDepth int // negative = pruning disabled, 0 = aggressive, N = keep N

	mu sync.RWMutex

	state State

	genesisHeight uint64
	genesisHash   hash.BlockHash

	currentHeight uint64
	activeReqToken string

	// pending buffers spontaneous (token-less) events that arrive
	// while CATCHING_UP on a specific reqtoken; they are re-evaluated
	// once the controller returns to UP_TO_DATE.
	pending []eventsub.Event

	consecutiveFailures int

	changeMu sync.Mutex
	changeCh chan struct{}

	stopped atomic.Bool
}

// Option configures optional Controller behaviour at construction.
type Option func(*Controller)

// WithPruning sets the pruning depth (see storage.HeightCache /
// §4.D): negative disables pruning, 0 prunes aggressively, N retains
// the last N blocks of undo history.
func WithPruning(depth int) Option {
	return func(c *Controller) { c.pruneDepth = depth }
}

// WithBatch replaces the default single-event batch manager with one
// tuned for catch-up throughput.
func WithBatch(b *txbatch.Manager) Option {
	return func(c *Controller) { c.batch = b }
}

// New creates a Controller bound to chain, r and store. The height
// cache may be nil, in which case it is simply not maintained; pruning
// does not consult it either way, and relies on PruneUndoData's own
// "keep current tip" rule.
func New(chain hash.ChainId, r rule.Rule, store storage.Storage, hc *storage.HeightCache, opts ...Option) *Controller {
	c := &Controller{
		chain:      chain,
		r:          r,
		store:      store,
		hc:         hc,
		pruneDepth: -1,
		state:      StateUnknown,
		changeCh:   make(chan struct{}),
	}
	c.batch = txbatch.New(store, 1, 0)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the controller's current state. Safe for concurrent
// callers; the value returned may be one transition stale.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Controller) setState(s State) {
	if s != c.state {
		log.Infof("controller: %s -> %s", c.state, s)
	}
	c.state = s
}

// Bootstrap determines the initial state from whatever storage
// already holds (a resumed process) or from the rule's declared
// genesis (a fresh one), and is called once before any event is
// delivered.
func (c *Controller) Bootstrap() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	height, genesisHash, _, err := c.r.Initial(c.chain)
	if err != nil {
		return xerr.Wrap(xerr.KindFatalInvariant, "rule.Initial failed", err)
	}
	c.genesisHeight = height
	c.genesisHash = genesisHash

	tip, err := c.store.GetCurrentBlockHash()
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "read current block hash", err)
	}
	if tip.IsZero() {
		c.setState(StatePregenesis)
		return nil
	}
	c.currentHeight = height
	c.setState(StateOutOfSync)
	return nil
}

// HandleEvent dispatches a decoded event according to the controller's
// current state, per §4.G's transition table.
func (c *Controller) HandleEvent(ev eventsub.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return xerr.New(xerr.KindMisuse, "controller: event delivered after Stop")
	}

	if c.state == StateCatchingUp && c.activeReqToken != "" && ev.ReqToken != c.activeReqToken {
		if ev.ReqToken == "" {
			log.Debugf("controller: buffering spontaneous event while catching up on %q", c.activeReqToken)
			c.pending = append(c.pending, ev)
			return nil
		}
		log.Debugf("controller: discarding event with reqtoken %q while catching up on %q", ev.ReqToken, c.activeReqToken)
		return nil
	}

	if err := c.dispatch(ev); err != nil {
		return err
	}
	return c.drainPending()
}

func (c *Controller) dispatch(ev eventsub.Event) error {
	switch ev.Kind {
	case eventsub.KindAttach:
		return c.handleAttach(ev.Block)
	case eventsub.KindDetach:
		return c.handleDetach(ev.Block)
	default:
		return xerr.New(xerr.KindMalformedEvent, "unknown event kind")
	}
}

// drainPending re-evaluates events buffered while CATCHING_UP, once
// the controller has returned to UP_TO_DATE. It stops as soon as
// reprocessing moves the controller away from UP_TO_DATE again; the
// remainder stays queued for the next return.
func (c *Controller) drainPending() error {
	for c.state == StateUpToDate && len(c.pending) > 0 {
		ev := c.pending[0]
		c.pending = c.pending[1:]
		if err := c.dispatch(ev); err != nil {
			return err
		}
	}
	return nil
}

func (c *Controller) handleAttach(blk rule.BlockData) error {
	if c.state == StatePregenesis {
		if blk.Height < c.genesisHeight {
			return nil
		}
		if err := c.initializeGenesis(); err != nil {
			return err
		}
		c.setState(StateOutOfSync)
	}

	tip, err := c.store.GetCurrentBlockHash()
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "read current block hash", err)
	}

	if blk.Parent != tip {
		log.Warnf("controller: attach parent %v does not match tip %v, resyncing", blk.Parent, tip)
		c.setState(StateCatchingUp)
		c.activeReqToken = blk.ReqToken
		return nil
	}

	if err := c.forwardStep(blk); err != nil {
		return err
	}
	if c.state == StateCatchingUp || c.state == StateOutOfSync {
		c.setState(StateUpToDate)
		c.activeReqToken = ""
	}
	return nil
}

func (c *Controller) handleDetach(blk rule.BlockData) error {
	tip, err := c.store.GetCurrentBlockHash()
	if err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "read current block hash", err)
	}
	if blk.Hash != tip {
		log.Warnf("controller: detach %v does not match tip %v, ignoring", blk.Hash, tip)
		return nil
	}
	return c.backwardStep(blk)
}

func (c *Controller) initializeGenesis() error {
	_, genesisHash, initialState, err := c.r.Initial(c.chain)
	if err != nil {
		return xerr.Wrap(xerr.KindFatalInvariant, "rule.Initial failed", err)
	}
	if err := c.store.BeginTransaction(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "begin genesis transaction", err)
	}
	if err := c.store.SetCurrentGameState(genesisHash, initialState); err != nil {
		c.store.RollbackTransaction()
		return xerr.Wrap(xerr.KindStorageCorruption, "persist genesis state", err)
	}
	if err := c.store.CommitTransaction(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "commit genesis transaction", err)
	}
	c.currentHeight = c.genesisHeight
	c.signalChange()
	return nil
}

// forwardStep implements §4.G's forward-step semantics.
func (c *Controller) forwardStep(blk rule.BlockData) error {
	if err := c.batch.BatchBegin(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "begin forward-step batch", err)
	}

	oldState, err := c.store.GetCurrentGameState()
	if err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "read current game state", err)
	}

	newState, undo, err := c.r.ProcessForward(c.chain, oldState, blk)
	if err != nil {
		c.batch.Rollback()
		c.consecutiveFailures++
		if c.consecutiveFailures >= maxConsecutiveRuleFailures {
			return xerr.Wrap(xerr.KindFatalInvariant, "rule failed on too many consecutive forward steps", err)
		}
		return xerr.Wrap(xerr.KindRuleFailure, "rule.ProcessForward failed", err)
	}
	c.consecutiveFailures = 0

	if err := c.store.AddUndoData(blk.Hash, blk.Height, undo); err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "record undo data", err)
	}
	if err := c.store.SetCurrentGameState(blk.Hash, newState); err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "advance current game state", err)
	}
	if c.hc != nil {
		c.hc.Record(blk.Hash, blk.Height)
	}
	c.currentHeight = blk.Height
	c.batch.Accept()

	if c.pruneDepth >= 0 && c.currentHeight > uint64(c.pruneDepth) {
		cutoff := c.currentHeight - uint64(c.pruneDepth)
		if err := c.store.PruneUndoData(cutoff); err != nil {
			c.batch.Rollback()
			return xerr.Wrap(xerr.KindStorageCorruption, "prune undo data", err)
		}
	}

	if err := c.batch.MaybeCommit(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "commit forward-step batch", err)
	}
	c.signalChange()
	return nil
}

// backwardStep implements §4.G's backward-step semantics.
func (c *Controller) backwardStep(blk rule.BlockData) error {
	if err := c.batch.BatchBegin(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "begin backward-step batch", err)
	}

	oldState, err := c.store.GetCurrentGameState()
	if err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "read current game state", err)
	}
	undo, ok, err := c.store.GetUndoData(blk.Hash)
	if err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "read undo data", err)
	}
	if !ok {
		c.batch.Rollback()
		return xerr.New(xerr.KindFatalInvariant, "undo data required to detach is missing, full resync required")
	}

	blk.Undo = undo
	newState, err := c.r.ProcessBackwards(c.chain, oldState, blk, undo)
	if err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindRuleFailure, "rule.ProcessBackwards failed", err)
	}

	if err := c.store.SetCurrentGameState(blk.Parent, newState); err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "retreat current game state", err)
	}
	if err := c.store.ReleaseUndoData(blk.Hash); err != nil {
		c.batch.Rollback()
		return xerr.Wrap(xerr.KindStorageCorruption, "release undo data", err)
	}
	if c.hc != nil {
		c.hc.Forget(blk.Hash)
	}
	if c.currentHeight > 0 {
		c.currentHeight--
	}
	c.batch.Accept()
	if err := c.batch.MaybeCommit(); err != nil {
		return xerr.Wrap(xerr.KindStorageCorruption, "commit backward-step batch", err)
	}
	c.signalChange()
	return nil
}

// Stop finishes any open batch (committing if the last step succeeded,
// rolling back otherwise) and transitions to STOPPED. Idempotent.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped.Swap(true) {
		return nil
	}
	err := c.batch.Drain(true)
	c.setState(StateStopped)
	c.signalChange()
	return err
}

// Disconnect transitions the controller to DISCONNECTED, e.g. when the
// event subscriber reports a stall. Any open batch is committed as-is
// so far-applied progress is not lost.
func (c *Controller) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateStopped {
		return nil
	}
	err := c.batch.Drain(true)
	c.setState(StateDisconnected)
	c.signalChange()
	return err
}

// Reconnect transitions out of DISCONNECTED back to UNKNOWN so the
// next Bootstrap call re-derives the correct state.
func (c *Controller) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected {
		c.setState(StateUnknown)
	}
}

// Snapshot returns the state, current tip hash, game state and height
// as of the last completed transition, including writes of a batch
// that is not yet committed. It takes the read lock, so it waits for
// an in-flight forward/backward step to finish.
func (c *Controller) Snapshot() (State, hash.BlockHash, rule.GameState, uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tip, err := c.store.GetCurrentBlockHash()
	if err != nil {
		return c.state, hash.Zero, nil, 0, xerr.Wrap(xerr.KindStorageCorruption, "read current block hash", err)
	}
	state, err := c.store.GetCurrentGameState()
	if err != nil {
		return c.state, hash.Zero, nil, 0, xerr.Wrap(xerr.KindStorageCorruption, "read current game state", err)
	}
	return c.state, tip, state, c.currentHeight, nil
}

func (c *Controller) signalChange() {
	c.changeMu.Lock()
	close(c.changeCh)
	c.changeCh = make(chan struct{})
	c.changeMu.Unlock()
}

// WaitForChange blocks until the current tip differs from prevHash or
// timeout elapses, whichever comes first, then returns the tip at
// that point. It never blocks longer than timeout.
func (c *Controller) WaitForChange(prevHash hash.BlockHash, timeout time.Duration) (hash.BlockHash, error) {
	tip, err := c.currentHash()
	if err != nil {
		return hash.Zero, err
	}
	if tip != prevHash {
		return tip, nil
	}

	c.changeMu.Lock()
	ch := c.changeCh
	c.changeMu.Unlock()

	select {
	case <-ch:
	case <-time.After(timeout):
	}
	return c.currentHash()
}

func (c *Controller) currentHash() (hash.BlockHash, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.store.GetCurrentBlockHash()
}

// Package rule defines the boundary between the core state machine and
// user-supplied game logic. The core never interprets GameState or
// UndoData; it only asks the Rule to produce and consume them.
package rule

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
	"encoding/json"

	"github.com/wcgcyx/xayagame/hash"
)

// GameState is an opaque byte string whose schema is known only to the
// Rule implementation. The core never parses it.
type GameState []byte

// UndoData is an opaque byte string produced by a forward step and
// consumed by the matching backward step. It may be empty, never nil
// vs empty distinguishing semantics are relied upon by the core.
type UndoData []byte

// BlockData describes a single attach or detach notification.
type BlockData struct {
	// Parent is the hash of the block this one builds on (attach) or
	// the block this detach returns to.
	Parent hash.BlockHash
	// Hash is this block's own hash.
	Hash hash.BlockHash
	// Height is this block's height.
	Height uint64
	// ReqToken correlates this event with a specific backlog request,
	// if any.
	ReqToken string
	// Moves is the opaque JSON move list carried by the block.
	Moves json.RawMessage
	// AdminCommands is an optional list of admin commands, only ever
	// populated on attach.
	AdminCommands json.RawMessage
	// Undo is only populated on detach: the undo data that was
	// returned by the matching attach's ProcessForward call.
	Undo UndoData
}

// Rule is the single internal capability the controller depends on.
// Both an object-shaped implementation and a function-pointer/callback
// façade (see Callbacks, in this package) satisfy it identically.
type Rule interface {
	// Initial returns the genesis height, genesis block hash and
	// initial GameState for the given chain. The controller calls it
	// in Bootstrap and again when it first reaches the genesis height.
	Initial(chain hash.ChainId) (height uint64, genesisHash hash.BlockHash, state GameState, err error)

	// ProcessForward computes the new GameState resulting from
	// applying blk on top of oldState, plus the UndoData needed to
	// reverse the operation. A non-nil error means the transaction
	// performing the forward step must be rolled back and oldState is
	// considered unchanged.
	ProcessForward(chain hash.ChainId, oldState GameState, blk BlockData) (newState GameState, undo UndoData, err error)

	// ProcessBackwards reverses a previously applied forward step,
	// given the UndoData that was produced for it. It is never
	// expected to fail under correct operation; the controller reports
	// an error here as a RuleFailure and rolls the step back.
	ProcessBackwards(chain hash.ChainId, oldState GameState, blk BlockData, undo UndoData) (newState GameState, err error)

	// GameStateToJson renders a GameState as JSON for the outward RPC
	// surface. The core never calls this except in response to a read
	// request.
	GameStateToJson(state GameState) (json.RawMessage, error)
}

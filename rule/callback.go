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
	"fmt"

	"github.com/wcgcyx/xayagame/hash"
)

// Callbacks is the function-pointer façade for Rule. Embedders who
// prefer free functions over a struct satisfying Rule directly can
// populate this and wrap it with NewCallbackRule. GameStateToJson may
// be left nil, in which case the state is rendered as a JSON string of
// its raw bytes.
type Callbacks struct {
	Initial           func(chain hash.ChainId) (uint64, hash.BlockHash, GameState, error)
	ProcessForward    func(chain hash.ChainId, oldState GameState, blk BlockData) (GameState, UndoData, error)
	ProcessBackwards  func(chain hash.ChainId, oldState GameState, blk BlockData, undo UndoData) (GameState, error)
	GameStateToJson   func(state GameState) (json.RawMessage, error)
}

// callbackRule adapts a Callbacks struct to the Rule interface.
type callbackRule struct {
	cb Callbacks
}

// NewCallbackRule wraps cb as a Rule. Initial, ProcessForward and
// ProcessBackwards must be non-nil.
func NewCallbackRule(cb Callbacks) (Rule, error) {
	if cb.Initial == nil || cb.ProcessForward == nil || cb.ProcessBackwards == nil {
		return nil, fmt.Errorf("rule: Initial, ProcessForward and ProcessBackwards callbacks are required")
	}
	return &callbackRule{cb: cb}, nil
}

func (r *callbackRule) Initial(chain hash.ChainId) (uint64, hash.BlockHash, GameState, error) {
	return r.cb.Initial(chain)
}

func (r *callbackRule) ProcessForward(chain hash.ChainId, oldState GameState, blk BlockData) (GameState, UndoData, error) {
	return r.cb.ProcessForward(chain, oldState, blk)
}

func (r *callbackRule) ProcessBackwards(chain hash.ChainId, oldState GameState, blk BlockData, undo UndoData) (GameState, error) {
	return r.cb.ProcessBackwards(chain, oldState, blk, undo)
}

func (r *callbackRule) GameStateToJson(state GameState) (json.RawMessage, error) {
	if r.cb.GameStateToJson != nil {
		return r.cb.GameStateToJson(state)
	}
	bs, err := json.Marshal(string(state))
	if err != nil {
		return nil, err
	}
	return bs, nil
}

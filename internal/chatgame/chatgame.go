// Package chatgame is a minimal in-process rule.Rule implementation
// used by the property tests: state is a map of player name to their
// latest message, moves overwrite the entry keyed by name.
package chatgame

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
	"github.com/wcgcyx/xayagame/rule"
)

// State is the chat game's on-disk representation: player name to
// their latest message.
type State map[string]string

func (s State) clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type move struct {
	Name string   `json:"name"`
	Move []string `json:"move"`
}

// Game is a rule.Rule with one knob the property tests flip directly:
// FailNextForward makes the next ProcessForward call return an error
// without mutating anything, exercising the atomicity-under-failure
// property.
type Game struct {
	GenesisHeight  uint64
	GenesisHash    hash.BlockHash
	InitialState   State
	FailNextForward bool
}

// New creates a chat Game seeded with initial at the given genesis
// height and hash.
func New(genesisHeight uint64, genesisHash hash.BlockHash, initial State) *Game {
	return &Game{GenesisHeight: genesisHeight, GenesisHash: genesisHash, InitialState: initial}
}

func (g *Game) Initial(chain hash.ChainId) (uint64, hash.BlockHash, rule.GameState, error) {
	raw, err := json.Marshal(g.InitialState)
	if err != nil {
		return 0, hash.Zero, nil, err
	}
	return g.GenesisHeight, g.GenesisHash, rule.GameState(raw), nil
}

func (g *Game) ProcessForward(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData) (rule.GameState, rule.UndoData, error) {
	if g.FailNextForward {
		g.FailNextForward = false
		return nil, nil, fmt.Errorf("chatgame: induced forward failure")
	}
	var cur State
	if err := json.Unmarshal(oldState, &cur); err != nil {
		return nil, nil, fmt.Errorf("chatgame: decode state: %w", err)
	}
	var moves []move
	if err := json.Unmarshal(blk.Moves, &moves); err != nil {
		return nil, nil, fmt.Errorf("chatgame: decode moves: %w", err)
	}

	undoRaw, err := json.Marshal(cur)
	if err != nil {
		return nil, nil, err
	}

	next := cur.clone()
	for _, mv := range moves {
		if len(mv.Move) == 0 {
			continue
		}
		next[mv.Name] = mv.Move[len(mv.Move)-1]
	}
	newRaw, err := json.Marshal(next)
	if err != nil {
		return nil, nil, err
	}
	return rule.GameState(newRaw), rule.UndoData(undoRaw), nil
}

func (g *Game) ProcessBackwards(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData, undo rule.UndoData) (rule.GameState, error) {
	return rule.GameState(undo), nil
}

func (g *Game) GameStateToJson(state rule.GameState) (json.RawMessage, error) {
	return json.RawMessage(state), nil
}

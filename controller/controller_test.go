package controller_test

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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/controller"
	"github.com/wcgcyx/xayagame/eventsub"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
	"github.com/wcgcyx/xayagame/storage"
)

// moveSet is the chat game's on-disk state shape used by the property
// scenarios: a map of player name to their latest move text.
type moveSet map[string]string

func (m moveSet) clone() moveSet {
	out := make(moveSet, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type moveInstr struct {
	Name string   `json:"name"`
	Move []string `json:"move"`
}

var failNext bool

func newChatRule(genesisHeight uint64, genesisHash hash.BlockHash, initial moveSet) rule.Rule {
	r, err := rule.NewCallbackRule(rule.Callbacks{
		Initial: func(chain hash.ChainId) (uint64, hash.BlockHash, rule.GameState, error) {
			raw, err := json.Marshal(initial)
			if err != nil {
				return 0, hash.Zero, nil, err
			}
			return genesisHeight, genesisHash, rule.GameState(raw), nil
		},
		ProcessForward: func(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData) (rule.GameState, rule.UndoData, error) {
			if failNext {
				failNext = false
				return nil, nil, fmt.Errorf("induced rule failure")
			}
			var cur moveSet
			if err := json.Unmarshal(oldState, &cur); err != nil {
				return nil, nil, err
			}
			var moves []moveInstr
			if err := json.Unmarshal(blk.Moves, &moves); err != nil {
				return nil, nil, err
			}
			undoState := cur.clone()
			undoRaw, err := json.Marshal(undoState)
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
		},
		ProcessBackwards: func(chain hash.ChainId, oldState rule.GameState, blk rule.BlockData, undo rule.UndoData) (rule.GameState, error) {
			return rule.GameState(undo), nil
		},
	})
	if err != nil {
		panic(err)
	}
	return r
}

func testHash(n uint64) hash.BlockHash {
	s := fmt.Sprintf("%x", n)
	for len(s) < hash.Size*2 {
		s = "0" + s
	}
	h, err := hash.FromHex(s)
	if err != nil {
		panic(err)
	}
	return h
}

func attachEvent(parent, h hash.BlockHash, height uint64, moves string, reqtoken string) eventsub.Event {
	return eventsub.Event{
		Kind: eventsub.KindAttach,
		Block: rule.BlockData{
			Parent:   parent,
			Hash:     h,
			Height:   height,
			ReqToken: reqtoken,
			Moves:    json.RawMessage(moves),
		},
		ReqToken: reqtoken,
	}
}

func detachEvent(parent, h hash.BlockHash, height uint64) eventsub.Event {
	return eventsub.Event{
		Kind: eventsub.KindDetach,
		Block: rule.BlockData{
			Parent: parent,
			Hash:   h,
			Height: height,
		},
	}
}

// TestS1ForwardThenRollback mirrors the forward-then-detach-twice
// property scenario.
func TestS1ForwardThenRollback(t *testing.T) {
	genesis := testHash(10)
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := newChatRule(10, genesis, moveSet{"domob": "hello world", "foo": "bar"})
	c := controller.New(hash.ChainTest, r, store, nil)
	require.NoError(t, c.Bootstrap())

	h11 := testHash(11)
	require.NoError(t, c.HandleEvent(attachEvent(genesis, h11, 11, `[{"name":"domob","move":["new"]},{"name":"a","move":["x","y"]}]`, "")))

	_, tip, state, _, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, h11, tip)
	var got moveSet
	require.NoError(t, json.Unmarshal(state, &got))
	assert.Equal(t, moveSet{"domob": "new", "foo": "bar", "a": "y"}, got)

	h12 := testHash(12)
	require.NoError(t, c.HandleEvent(attachEvent(h11, h12, 12, `[{"name":"a","move":["z"]}]`, "")))
	_, _, state, _, err = c.Snapshot()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(state, &got))
	assert.Equal(t, moveSet{"domob": "new", "foo": "bar", "a": "z"}, got)

	require.NoError(t, c.HandleEvent(detachEvent(h11, h12, 12)))
	require.NoError(t, c.HandleEvent(detachEvent(genesis, h11, 11)))

	_, tip, state, _, err = c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, genesis, tip)
	require.NoError(t, json.Unmarshal(state, &got))
	assert.Equal(t, moveSet{"domob": "hello world", "foo": "bar"}, got)
}

// TestS2RuleFailureLeavesStateUnchanged mirrors the induced-failure
// property scenario.
func TestS2RuleFailureLeavesStateUnchanged(t *testing.T) {
	genesis := testHash(10)
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := newChatRule(10, genesis, moveSet{"domob": "hello world", "foo": "bar"})
	c := controller.New(hash.ChainTest, r, store, nil)
	require.NoError(t, c.Bootstrap())

	h11 := testHash(11)
	require.NoError(t, c.HandleEvent(attachEvent(genesis, h11, 11, `[{"name":"domob","move":["new"]}]`, "")))
	require.Equal(t, controller.StateUpToDate, c.State())

	failNext = true
	h12 := testHash(12)
	err := c.HandleEvent(attachEvent(h11, h12, 12, `[{"name":"domob","move":["x"]}]`, ""))
	assert.Error(t, err)

	_, tip, state, _, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, h11, tip)
	var got moveSet
	require.NoError(t, json.Unmarshal(state, &got))
	assert.Equal(t, moveSet{"domob": "new", "foo": "bar"}, got)
	assert.Equal(t, controller.StateUpToDate, c.State())
}

// TestS6ParentMismatchDiscardsEvent mirrors the reorg-discard property
// scenario.
func TestS6ParentMismatchDiscardsEvent(t *testing.T) {
	genesis := testHash(10)
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := newChatRule(10, genesis, moveSet{"domob": "hello world"})
	c := controller.New(hash.ChainTest, r, store, nil)
	require.NoError(t, c.Bootstrap())

	wrongParent := testHash(99)
	require.NoError(t, c.HandleEvent(attachEvent(wrongParent, testHash(100), 100, `[]`, "")))

	_, tip, _, _, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, genesis, tip)
	assert.Equal(t, controller.StateCatchingUp, c.State())
}

func TestWaitForChangeReturnsOnTransition(t *testing.T) {
	genesis := testHash(10)
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := newChatRule(10, genesis, moveSet{"domob": "hi"})
	c := controller.New(hash.ChainTest, r, store, nil)
	require.NoError(t, c.Bootstrap())

	h11 := testHash(11)
	require.NoError(t, c.HandleEvent(attachEvent(genesis, h11, 11, `[]`, "")))

	done := make(chan hash.BlockHash, 1)
	go func() {
		h, _ := c.WaitForChange(h11, 2*time.Second)
		done <- h
	}()

	time.Sleep(10 * time.Millisecond)
	h12 := testHash(12)
	require.NoError(t, c.HandleEvent(attachEvent(h11, h12, 12, `[]`, "")))

	select {
	case got := <-done:
		assert.Equal(t, h12, got)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForChange did not return after transition")
	}
}

// TestHandleEventBuffersSpontaneousEventsWhileCatchingUp mirrors the
// "spontaneous events with no token are enqueued and re-evaluated on
// return to UP_TO_DATE" clause of the controller's transition table.
func TestHandleEventBuffersSpontaneousEventsWhileCatchingUp(t *testing.T) {
	genesis := testHash(10)
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := newChatRule(10, genesis, moveSet{"domob": "hello world"})
	c := controller.New(hash.ChainTest, r, store, nil)
	require.NoError(t, c.Bootstrap())

	h11 := testHash(11)
	require.NoError(t, c.HandleEvent(attachEvent(genesis, h11, 11, `[]`, "")))
	require.Equal(t, controller.StateUpToDate, c.State())

	// A reorg is detected and the controller starts catching up on a
	// specific backlog request.
	require.NoError(t, c.HandleEvent(attachEvent(testHash(99), testHash(100), 100, `[]`, "tok1")))
	require.Equal(t, controller.StateCatchingUp, c.State())

	// A spontaneous attach (no reqtoken) arrives out of order, ahead of
	// the backlog still being requested; it must be buffered, not
	// discarded, and must not move the tip yet.
	h12 := testHash(12)
	h13 := testHash(13)
	require.NoError(t, c.HandleEvent(attachEvent(h12, h13, 13, `[{"name":"foo","move":["spontaneous"]}]`, "")))
	require.Equal(t, controller.StateCatchingUp, c.State())
	_, tip, _, _, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, h11, tip)

	// The backlog request resolves, the controller returns to
	// UP_TO_DATE, and the buffered spontaneous event is re-evaluated
	// immediately, extending the tip a second time.
	require.NoError(t, c.HandleEvent(attachEvent(h11, h12, 12, `[{"name":"domob","move":["resynced"]}]`, "tok1")))
	require.Equal(t, controller.StateUpToDate, c.State())

	_, tip, state, _, err := c.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, h13, tip)
	var got moveSet
	require.NoError(t, json.Unmarshal(state, &got))
	assert.Equal(t, moveSet{"domob": "resynced", "foo": "spontaneous"}, got)
}

func TestStopIsIdempotent(t *testing.T) {
	store := storage.NewMemoryStorage()
	defer store.Close()
	r := newChatRule(10, testHash(10), moveSet{})
	c := controller.New(hash.ChainTest, r, store, nil)
	require.NoError(t, c.Bootstrap())
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	assert.Equal(t, controller.StateStopped, c.State())
}

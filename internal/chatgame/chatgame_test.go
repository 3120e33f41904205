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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/rule"
)

func TestForwardAppliesLatestMovePerPlayer(t *testing.T) {
	g := New(10, hash.Zero, State{"domob": "hello world", "foo": "bar"})
	_, _, initial, err := g.Initial(hash.ChainTest)
	require.NoError(t, err)

	newState, undo, err := g.ProcessForward(hash.ChainTest, initial, rule.BlockData{
		Moves: json.RawMessage(`[{"name":"domob","move":["new"]},{"name":"a","move":["x","y"]}]`),
	})
	require.NoError(t, err)

	var got State
	require.NoError(t, json.Unmarshal(newState, &got))
	assert.Equal(t, State{"domob": "new", "foo": "bar", "a": "y"}, got)

	restored, err := g.ProcessBackwards(hash.ChainTest, newState, rule.BlockData{}, undo)
	require.NoError(t, err)
	var back State
	require.NoError(t, json.Unmarshal(restored, &back))
	assert.Equal(t, State{"domob": "hello world", "foo": "bar"}, back)
}

func TestFailNextForwardLeavesCallerToHandleError(t *testing.T) {
	g := New(10, hash.Zero, State{})
	g.FailNextForward = true
	_, _, err := g.ProcessForward(hash.ChainTest, rule.GameState(`{}`), rule.BlockData{Moves: json.RawMessage(`[]`)})
	assert.Error(t, err)
	assert.False(t, g.FailNextForward, "flag should be consumed even though the call failed")
}

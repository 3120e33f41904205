package eventsub_test

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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/eventsub"
	"github.com/wcgcyx/xayagame/xerr"
)

func TestDecodeAttach(t *testing.T) {
	raw := []byte(`{
		"type": "attach",
		"block": {"parent": "", "hash": "000000000000000000000000000000000000000000000000000000000000000b", "height": 11},
		"moves": [{"name":"a","move":["x"]}],
		"reqtoken": "tok1"
	}`)
	ev, err := eventsub.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, eventsub.KindAttach, ev.Kind)
	assert.Equal(t, "tok1", ev.ReqToken)
	assert.Equal(t, uint64(11), ev.Block.Height)
}

func TestDecodeDetach(t *testing.T) {
	raw := []byte(`{
		"type": "detach",
		"block": {"hash": "000000000000000000000000000000000000000000000000000000000000000b", "height": 11}
	}`)
	ev, err := eventsub.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, eventsub.KindDetach, ev.Kind)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	raw := []byte(`{"type": "bogus", "block": {"hash": "00"}}`)
	_, err := eventsub.Decode(raw)
	kind, ok := xerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, xerr.KindMalformedEvent, kind)
}

func TestDecodeRejectsMissingHash(t *testing.T) {
	raw := []byte(`{"type": "attach", "block": {}, "moves": []}`)
	_, err := eventsub.Decode(raw)
	assert.ErrorIs(t, err, xerr.ErrMalformedEvent)
}

func TestDecodeRejectsAttachWithoutMoves(t *testing.T) {
	raw := []byte(`{"type": "attach", "block": {"hash": "000000000000000000000000000000000000000000000000000000000000000b"}}`)
	_, err := eventsub.Decode(raw)
	assert.ErrorIs(t, err, xerr.ErrMalformedEvent)
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	_, err := eventsub.Decode([]byte(`not json`))
	assert.ErrorIs(t, err, xerr.ErrMalformedEvent)
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "game-block-attach mygame", eventsub.Topic(eventsub.KindAttach, "mygame"))
	assert.Equal(t, "game-block-detach mygame", eventsub.Topic(eventsub.KindDetach, "mygame"))
}

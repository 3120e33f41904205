// Package eventsub listens on a topic-filtered push transport for
// attach/detach notifications and turns them into rule.BlockData
// values for the game controller, independent of the wire transport
// used underneath.
package eventsub

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
	"github.com/wcgcyx/xayagame/xerr"
)

// EventKind distinguishes an attach from a detach notification.
type EventKind string

const (
	KindAttach EventKind = "attach"
	KindDetach EventKind = "detach"
)

// Event is a decoded notification ready for the controller.
type Event struct {
	Kind     EventKind
	Block    rule.BlockData
	ReqToken string
}

type wireBlock struct {
	Parent string `json:"parent"`
	Hash   string `json:"hash"`
	Height uint64 `json:"height"`
}

type wireEvent struct {
	Type          string          `json:"type"`
	Block         wireBlock       `json:"block"`
	Moves         json.RawMessage `json:"moves"`
	AdminCommands json.RawMessage `json:"admincommands"`
	ReqToken      string          `json:"reqtoken"`
}

// Decode parses a single framed message per §4.F's wire schema. It
// fails with xerr.KindMalformedEvent if a required field is missing or
// malformed; it never returns a zero Event alongside a nil error.
func Decode(raw []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return Event{}, xerr.Wrap(xerr.KindMalformedEvent, "invalid event JSON", err)
	}

	var kind EventKind
	switch w.Type {
	case string(KindAttach):
		kind = KindAttach
	case string(KindDetach):
		kind = KindDetach
	default:
		return Event{}, xerr.New(xerr.KindMalformedEvent, fmt.Sprintf("unknown event type %q", w.Type))
	}

	if w.Block.Hash == "" {
		return Event{}, xerr.New(xerr.KindMalformedEvent, "event missing block.hash")
	}
	blockHash, err := hash.FromHex(w.Block.Hash)
	if err != nil {
		return Event{}, xerr.Wrap(xerr.KindMalformedEvent, "event block.hash is not a valid hash", err)
	}

	var parentHash hash.BlockHash
	if w.Block.Parent != "" {
		parentHash, err = hash.FromHex(w.Block.Parent)
		if err != nil {
			return Event{}, xerr.Wrap(xerr.KindMalformedEvent, "event block.parent is not a valid hash", err)
		}
	}

	if kind == KindAttach && w.Moves == nil {
		return Event{}, xerr.New(xerr.KindMalformedEvent, "attach event missing moves")
	}

	return Event{
		Kind: kind,
		Block: rule.BlockData{
			Parent:        parentHash,
			Hash:          blockHash,
			Height:        w.Block.Height,
			ReqToken:      w.ReqToken,
			Moves:         w.Moves,
			AdminCommands: w.AdminCommands,
		},
		ReqToken: w.ReqToken,
	}, nil
}

// Topic builds the push-transport topic string for gameId, per the
// "game-block-attach <gameId>" / "game-block-detach <gameId>" schema.
func Topic(kind EventKind, gameId string) string {
	return fmt.Sprintf("game-block-%s %s", kind, gameId)
}

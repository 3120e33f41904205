// Package leveldbstore is a durable log-structured Storage backend
// built on syndtr/goleveldb, persisting the current tip and the undo
// chain as flat key-value pairs under a small set of key prefixes.
package leveldbstore

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
	"github.com/mus-format/mus-go/varint"

	"github.com/wcgcyx/xayagame/hash"
)

// Key layout:
//
//	"c" -> currentHash (32 bytes)
//	"s" -> currentState (raw bytes)
//	"u" + hash -> height (varint) || undo data
var (
	currentHashKey  = []byte("c")
	currentStateKey = []byte("s")
	undoPrefix      = []byte("u")
)

func undoKey(h hash.BlockHash) []byte {
	k := make([]byte, 0, len(undoPrefix)+hash.Size)
	k = append(k, undoPrefix...)
	k = append(k, h.Bytes()...)
	return k
}

func encodeUndoValue(height uint64, data []byte) []byte {
	v := make([]byte, varint.SizeUint64(height)+len(data))
	n := varint.MarshalUint64(height, v)
	copy(v[n:], data)
	return v
}

func decodeUndoValue(v []byte) (height uint64, data []byte, err error) {
	height, n, err := varint.UnmarshalUint64(v)
	if err != nil {
		return 0, nil, err
	}
	if n == len(v) {
		return height, nil, nil
	}
	return height, v[n:], nil
}

func hashFromUndoKey(k []byte) (hash.BlockHash, error) {
	return hash.FromBytes(k[len(undoPrefix):])
}

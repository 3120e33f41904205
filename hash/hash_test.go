package hash

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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

// MockHash is a helper used by this package's tests to
// build a deterministic BlockHash from a small integer, mirroring the
// "BlockHash(N)" notation used by the scenarios.
func MockHash(n uint64) BlockHash {
	s := strconv.FormatUint(n, 16)
	for len(s) < Size*2 {
		s = "0" + s
	}
	h, err := FromHex(s)
	if err != nil {
		panic(err)
	}
	return h
}

func TestFromHexRejectsBadLength(t *testing.T) {
	_, err := FromHex("abcd")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestFromHexRejectsNonHex(t *testing.T) {
	bad := ""
	for i := 0; i < Size*2; i++ {
		bad += "g"
	}
	_, err := FromHex(bad)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestFromHexRoundTrip(t *testing.T) {
	h := MockHash(11)
	assert.Equal(t, h, mustFromHex(t, h.Hex()))
}

func mustFromHex(t *testing.T, s string) BlockHash {
	h, err := FromHex(s)
	assert.NoError(t, err)
	return h
}

func TestZeroIsZero(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, MockHash(1).IsZero())
}

func TestCompareTotalOrder(t *testing.T) {
	a := MockHash(1)
	b := MockHash(2)
	assert.Equal(t, -1, a.Compare(b))
	assert.Equal(t, 1, b.Compare(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestJSONRoundTrip(t *testing.T) {
	h := MockHash(42)
	bs, err := json.Marshal(h)
	assert.NoError(t, err)

	var out BlockHash
	assert.NoError(t, json.Unmarshal(bs, &out))
	assert.Equal(t, h, out)
}

func TestFromBytesRejectsBadLength(t *testing.T) {
	_, err := FromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestParseChainId(t *testing.T) {
	c, err := ParseChainId("main")
	assert.NoError(t, err)
	assert.Equal(t, ChainMain, c)
	assert.Equal(t, "main", c.String())

	_, err = ParseChainId("bogus")
	assert.Error(t, err)
}

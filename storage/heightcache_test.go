package storage_test

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
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/storage"
)

func testHash(n uint64) hash.BlockHash {
	var raw [hash.Size]byte
	binary.BigEndian.PutUint64(raw[hash.Size-8:], n)
	h, err := hash.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return h
}

func TestHeightCacheRecordAndForget(t *testing.T) {
	c, err := storage.NewHeightCache(8)
	require.NoError(t, err)

	h1 := testHash(1)
	_, ok := c.Height(h1)
	assert.False(t, ok)

	c.Record(h1, 42)
	got, ok := c.Height(h1)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), got)
	assert.Equal(t, 1, c.Len())

	c.Forget(h1)
	_, ok = c.Height(h1)
	assert.False(t, ok)
}

func TestHeightCacheEviction(t *testing.T) {
	c, err := storage.NewHeightCache(2)
	require.NoError(t, err)

	c.Record(testHash(1), 1)
	c.Record(testHash(2), 2)
	c.Record(testHash(3), 3)

	assert.LessOrEqual(t, c.Len(), 2)
}

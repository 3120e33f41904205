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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUndoValueRoundTrip(t *testing.T) {
	cases := []struct {
		height uint64
		data   []byte
	}{
		{0, nil},
		{1, []byte("x")},
		{127, []byte("boundary")},
		{128, []byte("boundary+1")},
		{1 << 40, []byte("large height")},
	}
	for _, c := range cases {
		v := encodeUndoValue(c.height, c.data)
		height, data, err := decodeUndoValue(v)
		require.NoError(t, err)
		require.Equal(t, c.height, height)
		require.Equal(t, c.data, data)
	}
}

package leveldbstore_test

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

	"github.com/stretchr/testify/require"
	"github.com/wcgcyx/xayagame/hash"
	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/storage/leveldbstore"
	"github.com/wcgcyx/xayagame/storage/storagetest"
)

func testHash(n uint64) hash.BlockHash {
	var raw [hash.Size]byte
	binary.BigEndian.PutUint64(raw[hash.Size-8:], n)
	bh, err := hash.FromBytes(raw[:])
	if err != nil {
		panic(err)
	}
	return bh
}

func TestLevelDBStorageCompliance(t *testing.T) {
	storagetest.RunComplianceSuite(t, func() storage.Storage {
		dir := t.TempDir()
		s, err := leveldbstore.New(dir)
		require.NoError(t, err)
		return s
	})
}

func TestLevelDBStoragePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := leveldbstore.New(dir)
	require.NoError(t, err)
	require.NoError(t, s.BeginTransaction())
	require.NoError(t, s.SetCurrentGameState(testHash(7), []byte("survives reopen")))
	require.NoError(t, s.CommitTransaction())
	require.NoError(t, s.Close())

	reopened, err := leveldbstore.New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetCurrentBlockHash()
	require.NoError(t, err)
	require.Equal(t, testHash(7), got)

	state, err := reopened.GetCurrentGameState()
	require.NoError(t, err)
	require.Equal(t, []byte("survives reopen"), []byte(state))
}

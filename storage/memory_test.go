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
	"testing"

	"github.com/wcgcyx/xayagame/storage"
	"github.com/wcgcyx/xayagame/storage/storagetest"
)

func TestMemoryStorageCompliance(t *testing.T) {
	storagetest.RunComplianceSuite(t, func() storage.Storage {
		return storage.NewMemoryStorage()
	})
}

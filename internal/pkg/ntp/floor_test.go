// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ntp_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/timed/internal/pkg/ntp"
)

func TestFloorStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := &ntp.FloorStore{Path: filepath.Join(t.TempDir(), "ntp.last_unix")}

	_, ok := store.Load()
	assert.False(t, ok)

	for _, v := range []int64{0, 1, 1_700_000_000, -1, ntp.EraSeconds * 3, -ntp.EpochOffset} {
		require.NoError(t, store.Save(v))

		loaded, ok := store.Load()
		require.True(t, ok)
		assert.Equal(t, v, loaded)
	}
}

func TestFloorStoreFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := &ntp.FloorStore{Path: filepath.Join(dir, "ntp.last_unix")}

	require.NoError(t, store.Save(0x0102030405060708))

	contents, err := os.ReadFile(store.Path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, contents)

	// no temporary files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFloorStoreCorrupt(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name     string
		contents []byte
	}{
		{name: "empty", contents: []byte{}},
		{name: "short", contents: []byte{1, 2, 3}},
		{name: "long", contents: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			store := &ntp.FloorStore{Path: filepath.Join(t.TempDir(), "ntp.last_unix")}

			require.NoError(t, os.WriteFile(store.Path, test.contents, 0o644))

			_, ok := store.Load()
			assert.False(t, ok)
		})
	}
}

func TestFloorStoreUnreadable(t *testing.T) {
	t.Parallel()

	// a directory in place of the file
	store := &ntp.FloorStore{Path: t.TempDir()}

	_, ok := store.Load()
	assert.False(t, ok)
}

func TestFloorStoreSaveError(t *testing.T) {
	t.Parallel()

	store := &ntp.FloorStore{Path: filepath.Join(t.TempDir(), "missing", "ntp.last_unix")}

	require.Error(t, store.Save(1))
}

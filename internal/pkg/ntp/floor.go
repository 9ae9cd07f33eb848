// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ntp

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// floorSize is the exact size of the persisted floor: a big-endian int64.
const floorSize = 8

// FloorStore persists the last known-good Unix time.
type FloorStore struct {
	Path string
}

// Load returns the persisted floor.
//
// Missing, truncated, oversized or unreadable files report no history.
func (store *FloorStore) Load() (int64, bool) {
	f, err := os.Open(store.Path)
	if err != nil {
		return 0, false
	}

	defer f.Close() //nolint:errcheck

	// read one byte more than needed to detect oversized files
	var buf [floorSize + 1]byte

	// exactly floorSize bytes read means io.ErrUnexpectedEOF, anything else is corrupt
	if n, _ := io.ReadFull(f, buf[:]); n != floorSize {
		return 0, false
	}

	return int64(binary.BigEndian.Uint64(buf[:floorSize])), true //nolint:gosec
}

// Save replaces the persisted floor with t.
//
// The value is written to a temporary file which is synced and renamed over
// the target, so readers never observe a partial write.
func (store *FloorStore) Save(t int64) error {
	var buf [floorSize]byte

	binary.BigEndian.PutUint64(buf[:], uint64(t)) //nolint:gosec

	dir := filepath.Dir(store.Path)

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(store.Path)+".*")
	if err != nil {
		return fmt.Errorf("error creating temporary floor file in %q: %w", dir, err)
	}

	tmpPath := tmp.Name()

	if err = writeAndSync(tmp, buf[:]); err != nil {
		os.Remove(tmpPath) //nolint:errcheck

		return fmt.Errorf("error writing floor to %q: %w", tmpPath, err)
	}

	if err = os.Rename(tmpPath, store.Path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck

		return fmt.Errorf("error replacing floor file %q: %w", store.Path, err)
	}

	return nil
}

func writeAndSync(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close() //nolint:errcheck

		return err
	}

	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck

		return err
	}

	return f.Close()
}

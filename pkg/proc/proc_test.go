// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package proc_test

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sys/unix"

	"github.com/siderolabs/timed/pkg/proc"
)

// fakeProc builds a procfs tree with the given pid to comm mapping.
func fakeProc(t *testing.T, procs map[int]string) string {
	t.Helper()

	root := t.TempDir()

	for pid, comm := range procs {
		dir := filepath.Join(root, strconv.Itoa(pid))

		require.NoError(t, os.MkdirAll(dir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(comm+"\n"), 0o644))
	}

	// non-pid entries are ignored
	require.NoError(t, os.WriteFile(filepath.Join(root, "uptime"), []byte("1.00 1.00\n"), 0o644))

	return root
}

func TestFindByName(t *testing.T) {
	t.Parallel()

	root := fakeProc(t, map[int]string{
		1:   "init",
		42:  "gpsd",
		100: "gpsd",
		101: "chronyd",
	})

	pids, err := proc.FindByName(root, "gpsd")
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{42, 100}, pids)

	pids, err = proc.FindByName(root, "missing")
	require.NoError(t, err)
	assert.Empty(t, pids)
}

func TestSignallerNotify(t *testing.T) {
	t.Parallel()

	root := fakeProc(t, map[int]string{
		7: "gpsd",
		8: "gpsd",
		9: "init",
	})

	signalled := map[int]unix.Signal{}

	signaller := proc.NewSignaller(zaptest.NewLogger(t), root, "gpsd", unix.SIGHUP)
	signaller.Kill = func(pid int, sig unix.Signal) error {
		signalled[pid] = sig

		if pid == 8 {
			return unix.ESRCH
		}

		return nil
	}

	err := signaller.Notify()
	require.ErrorIs(t, err, unix.ESRCH)
	assert.Equal(t, map[int]unix.Signal{7: unix.SIGHUP, 8: unix.SIGHUP}, signalled)
}

func TestSignallerNotFound(t *testing.T) {
	t.Parallel()

	root := fakeProc(t, map[int]string{1: "init"})

	signaller := proc.NewSignaller(zaptest.NewLogger(t), root, "gpsd", unix.SIGHUP)
	signaller.Kill = func(int, unix.Signal) error {
		return errors.New("unexpected kill")
	}

	require.ErrorIs(t, signaller.Notify(), proc.ErrNotFound)
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package proc looks up and signals processes via procfs.
package proc

import (
	"fmt"

	"github.com/prometheus/procfs"
)

// FindByName returns PIDs of processes whose command name is name.
//
// Processes which exit while being inspected are skipped.
func FindByName(mountPoint, name string) ([]int, error) {
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("error opening procfs at %q: %w", mountPoint, err)
	}

	procs, err := fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("error listing processes: %w", err)
	}

	var pids []int

	for _, p := range procs {
		comm, err := p.Comm()
		if err != nil {
			continue
		}

		if comm == name {
			pids = append(pids, p.PID)
		}
	}

	return pids, nil
}

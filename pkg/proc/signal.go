// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package proc

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrNotFound is returned when no process matches the name.
var ErrNotFound = errors.New("process not found")

// Signaller delivers a signal to every process with the given command name.
type Signaller struct {
	Name       string
	Signal     unix.Signal
	MountPoint string

	logger *zap.Logger

	// overridden in tests
	Kill func(pid int, sig unix.Signal) error
}

// NewSignaller creates a new Signaller looking up processes in procfs mounted at mountPoint.
func NewSignaller(logger *zap.Logger, mountPoint, name string, sig unix.Signal) *Signaller {
	return &Signaller{
		Name:       name,
		Signal:     sig,
		MountPoint: mountPoint,

		logger: logger,

		Kill: unix.Kill,
	}
}

// Notify signals all matching processes.
func (signaller *Signaller) Notify() error {
	pids, err := FindByName(signaller.MountPoint, signaller.Name)
	if err != nil {
		return err
	}

	if len(pids) == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, signaller.Name)
	}

	var errs []error

	for _, pid := range pids {
		if err = signaller.Kill(pid, signaller.Signal); err != nil {
			errs = append(errs, fmt.Errorf("error sending %s to %q (pid %d): %w", unix.SignalName(signaller.Signal), signaller.Name, pid, err))

			continue
		}

		signaller.logger.Info("signalled process",
			zap.String("process", signaller.Name),
			zap.Int("pid", pid),
			zap.String("signal", unix.SignalName(signaller.Signal)),
		)
	}

	return errors.Join(errs...)
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package timex steps the system realtime clock and reports kernel clock state.
package timex

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Status is bitmask field of statuses.
type Status int32

// Clock statuses.
//
//nolint:golint,stylecheck,revive
const (
	STA_PLL       = 0x0001 /* enable PLL updates (rw) */
	STA_PPSFREQ   = 0x0002 /* enable PPS freq discipline (rw) */
	STA_PPSTIME   = 0x0004 /* enable PPS time discipline (rw) */
	STA_FLL       = 0x0008 /* select frequency-lock mode (rw) */
	STA_INS       = 0x0010 /* insert leap (rw) */
	STA_DEL       = 0x0020 /* delete leap (rw) */
	STA_UNSYNC    = 0x0040 /* clock unsynchronized (rw) */
	STA_FREQHOLD  = 0x0080 /* hold frequency (rw) */
	STA_PPSSIGNAL = 0x0100 /* PPS signal present (ro) */
	STA_PPSJITTER = 0x0200 /* PPS signal jitter exceeded (ro) */
	STA_PPSWANDER = 0x0400 /* PPS signal wander exceeded (ro) */
	STA_PPSERROR  = 0x0800 /* PPS signal calibration error (ro) */
	STA_CLOCKERR  = 0x1000 /* clock hardware fault (ro) */
	STA_NANO      = 0x2000 /* resolution (0 = us, 1 = ns) (ro) */
	STA_MODE      = 0x4000 /* mode (0 = PLL, 1 = FLL) (ro) */
	STA_CLK       = 0x8000 /* clock source (0 = A, 1 = B) (ro) */
)

var statusLabels = [...]string{
	"STA_PLL", "STA_PPSFREQ", "STA_PPSTIME", "STA_FLL",
	"STA_INS", "STA_DEL", "STA_UNSYNC", "STA_FREQHOLD",
	"STA_PPSSIGNAL", "STA_PPSJITTER", "STA_PPSWANDER", "STA_PPSERROR",
	"STA_CLOCKERR", "STA_NANO", "STA_MODE", "STA_CLK",
}

func (status Status) String() string {
	var labels []string

	for i, label := range statusLabels {
		if bit := Status(1) << i; status&bit == bit {
			labels = append(labels, label)
		}
	}

	return strings.Join(labels, " | ")
}

// State is clock state.
type State int

// Clock states.
//
//nolint:golint,stylecheck,revive
const (
	TIME_OK State = iota
	TIME_INS
	TIME_DEL
	TIME_OOP
	TIME_WAIT
	TIME_ERROR
)

func (state State) String() string {
	if state < TIME_OK || state > TIME_ERROR {
		return fmt.Sprintf("TIME_UNKNOWN(%d)", int(state))
	}

	return [...]string{"TIME_OK", "TIME_INS", "TIME_DEL", "TIME_OOP", "TIME_WAIT", "TIME_ERROR"}[int(state)]
}

// Settime steps CLOCK_REALTIME to sec seconds past the Unix epoch.
//
// The change is applied at once, there is no slewing.
func Settime(sec int64) error {
	// fails with ERANGE where time_t is 32-bit and sec does not fit
	ts, err := unix.TimeToTimespec(time.Unix(sec, 0))
	if err != nil {
		return fmt.Errorf("error converting %d to timespec: %w", sec, err)
	}

	if err = unix.ClockSettime(unix.CLOCK_REALTIME, &ts); err != nil {
		return fmt.Errorf("error setting realtime clock to %d: %w", sec, err)
	}

	return nil
}

// ReadState returns the kernel clock state and status without modifying them.
func ReadState() (State, Status, error) {
	var buf unix.Timex

	st, err := unix.Adjtimex(&buf)
	if err != nil {
		return TIME_ERROR, 0, fmt.Errorf("error reading clock state: %w", err)
	}

	return State(st), Status(buf.Status), nil
}

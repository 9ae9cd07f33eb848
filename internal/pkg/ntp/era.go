// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ntp

const (
	// EpochOffset is the number of seconds between the NTP epoch (1900-01-01) and the Unix epoch.
	EpochOffset int64 = 2_208_988_800

	// EraSeconds is the length of one NTP era, the period of the 32-bit seconds field.
	EraSeconds int64 = 1 << 32
)

// Disambiguate converts raw NTP seconds into Unix seconds.
//
// The result is the smallest t such that t ≡ raw - EpochOffset (mod 2^32) and t >= floor.
func Disambiguate(raw uint32, floor int64) int64 {
	t := int64(raw) - EpochOffset
	if t >= floor {
		return t
	}

	// floor - t can exceed int64 range for extreme floors, the difference is computed unsigned
	diff := uint64(floor) - uint64(t)
	eras := (diff + uint64(EraSeconds) - 1) / uint64(EraSeconds)

	return t + int64(eras)*EraSeconds
}

// Raw returns the 32-bit NTP seconds value for the Unix time t.
func Raw(t int64) uint32 {
	return uint32(t + EpochOffset) //nolint:gosec
}

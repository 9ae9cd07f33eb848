// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ntp_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siderolabs/timed/internal/pkg/ntp"
)

// disambiguateLoop is the straightforward iterative definition.
func disambiguateLoop(raw uint32, floor int64) int64 {
	t := int64(raw) - ntp.EpochOffset

	for t < floor {
		t += ntp.EraSeconds
	}

	return t
}

func TestDisambiguate(t *testing.T) {
	t.Parallel()

	const floor int64 = 1_700_000_000

	for _, test := range []struct {
		name     string
		raw      uint32
		floor    int64
		expected int64
	}{
		{
			name:     "wrapped raw one era below floor",
			raw:      ntp.Raw(floor - ntp.EraSeconds + 100),
			floor:    floor,
			expected: floor + 100,
		},
		{
			name:     "raw above floor",
			raw:      ntp.Raw(floor + 3600),
			floor:    floor,
			expected: floor + 3600,
		},
		{
			name:     "raw equal to floor",
			raw:      ntp.Raw(floor),
			floor:    floor,
			expected: floor,
		},
		{
			name:     "one second behind floor",
			raw:      ntp.Raw(floor - 1),
			floor:    floor,
			expected: floor - 1 + ntp.EraSeconds,
		},
		{
			name:     "after 2036 rollover",
			raw:      1100,
			floor:    ntp.EraSeconds - ntp.EpochOffset + 1000,
			expected: ntp.EraSeconds - ntp.EpochOffset + 1100,
		},
		{
			name:     "several eras of downtime",
			raw:      0,
			floor:    5*ntp.EraSeconds + 17,
			expected: 6*ntp.EraSeconds - ntp.EpochOffset,
		},
		{
			name:     "floor before ntp epoch",
			raw:      0,
			floor:    -3_000_000_000,
			expected: -ntp.EpochOffset,
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, test.expected, ntp.Disambiguate(test.raw, test.floor))
		})
	}
}

func TestDisambiguateProperties(t *testing.T) {
	t.Parallel()

	rnd := rand.New(rand.NewPCG(1, 2))

	for range 10000 {
		raw := rnd.Uint32()
		floor := rnd.Int64N(20*ntp.EraSeconds) - ntp.EraSeconds

		got := ntp.Disambiguate(raw, floor)

		require.Equal(t, disambiguateLoop(raw, floor), got)

		if t0 := int64(raw) - ntp.EpochOffset; t0 >= floor {
			require.Equal(t, t0, got)
		} else {
			require.GreaterOrEqual(t, got, floor)
			require.Less(t, got-floor, ntp.EraSeconds)
		}

		require.Equal(t, raw, ntp.Raw(got))
	}
}

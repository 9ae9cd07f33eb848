// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timed_test

import (
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/siderolabs/timed/internal/app/timed"
	"github.com/siderolabs/timed/internal/pkg/dns"
	"github.com/siderolabs/timed/internal/pkg/link"
	"github.com/siderolabs/timed/internal/pkg/ntp"
	"github.com/siderolabs/timed/pkg/proc"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := timed.DefaultConfig()

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "2.pool.ntp.org", cfg.Server)
	assert.Equal(t, uint16(123), cfg.ServerPort)
	assert.Equal(t, netip.MustParseAddrPort("[2620:fe::fe]:53"), cfg.Resolver)
	assert.Equal(t, "ppp0", cfg.Interface)
	assert.Equal(t, "/data/ntp.last_unix", cfg.FloorPath)
	assert.Less(t, cfg.FastInterval, cfg.SteadyInterval)
	assert.Positive(t, cfg.BuildFloor)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		name   string
		mutate func(*timed.Config)
		errMsg string
	}{
		{
			name:   "empty server",
			mutate: func(cfg *timed.Config) { cfg.Server = "" },
			errMsg: "time server is not set",
		},
		{
			name:   "invalid resolver",
			mutate: func(cfg *timed.Config) { cfg.Resolver = netip.AddrPort{} },
			errMsg: "invalid resolver address",
		},
		{
			name:   "zero fast interval",
			mutate: func(cfg *timed.Config) { cfg.FastInterval = 0 },
			errMsg: "fast interval should be positive",
		},
		{
			name: "fast slower than steady",
			mutate: func(cfg *timed.Config) {
				cfg.FastInterval = 2 * time.Hour
			},
			errMsg: "is longer than steady interval",
		},
		{
			name:   "no floor path",
			mutate: func(cfg *timed.Config) { cfg.FloorPath = "" },
			errMsg: "floor path is not set",
		},
		{
			name:   "no interface",
			mutate: func(cfg *timed.Config) { cfg.Interface = "" },
			errMsg: "link interface is not set",
		},
		{
			name: "notify without signal",
			mutate: func(cfg *timed.Config) {
				cfg.NotifyProcess = "gpsd"
				cfg.NotifySignal = 0
			},
			errMsg: "notify signal is not set",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg := timed.DefaultConfig()
			test.mutate(&cfg)

			assert.ErrorContains(t, cfg.Validate(), test.errMsg)
		})
	}
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := timed.DefaultConfig()
	cfg.SteadyInterval = -time.Second

	err := timed.Run(t.Context(), cfg, zaptest.NewLogger(t))
	require.ErrorContains(t, err, "invalid configuration")
}

func TestNewSyncer(t *testing.T) {
	t.Parallel()

	cfg := timed.DefaultConfig()
	cfg.FloorPath = filepath.Join(t.TempDir(), "ntp.last_unix")
	cfg.NotifyProcess = "gpsd"

	syncer := timed.NewSyncer(cfg, zaptest.NewLogger(t))

	assert.Equal(t, ntp.StateAwaitingLink, syncer.State())
	assert.Equal(t, cfg.Server, syncer.Server)
	assert.Equal(t, cfg.ServerPort, syncer.Port)
	assert.Equal(t, cfg.BuildFloor, syncer.BuildFloor)

	require.IsType(t, &dns.Resolver{}, syncer.Resolver)
	assert.Equal(t, cfg.Resolver, syncer.Resolver.(*dns.Resolver).Server)

	require.IsType(t, &link.Waiter{}, syncer.Link)
	assert.Equal(t, "ppp0", syncer.Link.(*link.Waiter).Interface)

	require.IsType(t, &ntp.FloorStore{}, syncer.Floor)
	assert.Equal(t, cfg.FloorPath, syncer.Floor.(*ntp.FloorStore).Path)

	require.IsType(t, &proc.Signaller{}, syncer.Notifier)
	assert.Equal(t, "gpsd", syncer.Notifier.(*proc.Signaller).Name)

	cfg.NotifyProcess = ""

	assert.Nil(t, timed.NewSyncer(cfg, zaptest.NewLogger(t)).Notifier)
}

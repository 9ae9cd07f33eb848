// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package timed

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"golang.org/x/sys/unix"

	"github.com/siderolabs/timed/internal/pkg/constants"
	"github.com/siderolabs/timed/internal/pkg/version"
)

// Config is the immutable configuration of the daemon.
//
// It is built once at startup from build-time constants.
type Config struct {
	Server     string
	ServerPort uint16
	Resolver   netip.AddrPort

	Interface        string
	LinkTimeout      time.Duration
	LinkPollInterval time.Duration

	FastInterval   time.Duration
	SteadyInterval time.Duration

	QueryTimeout   time.Duration
	ResolveTimeout time.Duration

	FloorPath  string
	BuildFloor int64

	// NotifyProcess is the command name signalled after the first sync, empty disables it.
	NotifyProcess  string
	NotifySignal   unix.Signal
	ProcMountPoint string
}

// DefaultConfig returns the configuration compiled into the binary.
func DefaultConfig() Config {
	return Config{
		Server:     constants.DefaultTimeServer,
		ServerPort: constants.DefaultTimeServerPort,
		Resolver:   netip.MustParseAddrPort(constants.DefaultResolver),

		Interface:        constants.DefaultLinkInterface,
		LinkTimeout:      constants.DefaultLinkTimeout,
		LinkPollInterval: constants.DefaultLinkPollInterval,

		FastInterval:   constants.DefaultFastInterval,
		SteadyInterval: constants.DefaultSteadyInterval,

		QueryTimeout:   constants.DefaultQueryTimeout,
		ResolveTimeout: constants.DefaultResolveTimeout,

		FloorPath:  constants.DefaultFloorPath,
		BuildFloor: version.BuildFloor(),

		NotifyProcess:  constants.DefaultNotifyProcess,
		NotifySignal:   constants.DefaultNotifySignal,
		ProcMountPoint: constants.ProcMountPoint,
	}
}

// Validate checks the configuration for consistency.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Server == "" {
		errs = append(errs, errors.New("time server is not set"))
	}

	if cfg.ServerPort == 0 {
		errs = append(errs, errors.New("time server port is not set"))
	}

	if !cfg.Resolver.IsValid() || cfg.Resolver.Port() == 0 {
		errs = append(errs, fmt.Errorf("invalid resolver address %q", cfg.Resolver))
	}

	if cfg.Interface == "" {
		errs = append(errs, errors.New("link interface is not set"))
	}

	if cfg.FloorPath == "" {
		errs = append(errs, errors.New("floor path is not set"))
	}

	for name, d := range map[string]time.Duration{
		"fast interval":      cfg.FastInterval,
		"steady interval":    cfg.SteadyInterval,
		"query timeout":      cfg.QueryTimeout,
		"resolve timeout":    cfg.ResolveTimeout,
		"link timeout":       cfg.LinkTimeout,
		"link poll interval": cfg.LinkPollInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s should be positive, got %s", name, d))
		}
	}

	if cfg.FastInterval > cfg.SteadyInterval {
		errs = append(errs, fmt.Errorf("fast interval %s is longer than steady interval %s", cfg.FastInterval, cfg.SteadyInterval))
	}

	if cfg.NotifyProcess != "" && cfg.NotifySignal == 0 {
		errs = append(errs, errors.New("notify signal is not set"))
	}

	return errors.Join(errs...)
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package constants holds the build-time defaults of the time daemon.
package constants

import (
	"time"

	"golang.org/x/sys/unix"
)

const (
	// DefaultTimeServer is the NTP server queried on every sync cycle.
	DefaultTimeServer = "2.pool.ntp.org"

	// DefaultTimeServerPort is the NTP service port.
	DefaultTimeServerPort = 123

	// DefaultResolver is the only DNS server used to resolve DefaultTimeServer.
	//
	// The system resolver configuration is never consulted, as it might not exist
	// yet when the link comes up.
	DefaultResolver = "[2620:fe::fe]:53"

	// DefaultLinkInterface is the network interface which gates the first sync.
	DefaultLinkInterface = "ppp0"

	// DefaultFloorPath is the location of the persisted time floor.
	DefaultFloorPath = "/data/ntp.last_unix"

	// DefaultFastInterval is the sync interval used until the first successful sync.
	DefaultFastInterval = 30 * time.Second

	// DefaultSteadyInterval is the sync interval used after the first successful sync.
	DefaultSteadyInterval = time.Hour

	// DefaultQueryTimeout bounds a single NTP exchange.
	DefaultQueryTimeout = 5 * time.Second

	// DefaultResolveTimeout bounds a single DNS exchange.
	DefaultResolveTimeout = 5 * time.Second

	// DefaultLinkTimeout bounds the wait for the link to come up.
	DefaultLinkTimeout = 10 * time.Minute

	// DefaultLinkPollInterval is used when link events are not available.
	DefaultLinkPollInterval = 2 * time.Second

	// DefaultNotifySignal is sent to the dependent process once time is trusted.
	DefaultNotifySignal = unix.SIGHUP

	// DefaultBuildFloor is the lowest time accepted when neither a persisted floor
	// nor a build timestamp is available (2025-01-01T00:00:00Z).
	DefaultBuildFloor int64 = 1735689600

	// ProcMountPoint is where procfs is expected to be mounted.
	ProcMountPoint = "/proc"
)

// DefaultNotifyProcess is the name of the process signalled after the first sync.
//
// Empty disables notification. It is set at build time.
var DefaultNotifyProcess string

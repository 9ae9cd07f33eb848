// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package ntp

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/beevik/ntp"
	"go.uber.org/zap"
)

// QueryFunc performs a single NTP exchange.
type QueryFunc func(address string, opts ntp.QueryOptions) (*ntp.Response, error)

// Querier fetches the raw transmit seconds from an NTP server.
type Querier struct {
	Timeout time.Duration

	logger *zap.Logger

	// overridden in tests
	NTPQuery QueryFunc
}

// NewQuerier creates a Querier with the given exchange timeout.
func NewQuerier(logger *zap.Logger, timeout time.Duration) *Querier {
	return &Querier{
		Timeout:  timeout,
		logger:   logger,
		NTPQuery: ntp.QueryWithOptions,
	}
}

// Query performs exactly one exchange with endpoint and returns the raw
// 32-bit transmit seconds of the response.
//
// No retries are attempted.
func (querier *Querier) Query(endpoint netip.AddrPort) (uint32, error) {
	resp, err := querier.NTPQuery(endpoint.String(), ntp.QueryOptions{Timeout: querier.Timeout})
	if err != nil {
		return 0, fmt.Errorf("ntp query to %s failed: %w", endpoint, err)
	}

	querier.logger.Debug("NTP response",
		zap.Stringer("server", endpoint),
		zap.Time("transmit_time", resp.Time),
		zap.Duration("rtt", resp.RTT),
		zap.Uint8("leap", uint8(resp.Leap)),
		zap.Uint8("stratum", resp.Stratum),
		zap.Duration("root_distance", resp.RootDistance),
	)

	if err = resp.Validate(); err != nil {
		return 0, fmt.Errorf("invalid ntp response from %s: %w", endpoint, err)
	}

	return Raw(resp.Time.Unix()), nil
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package dns provides a resolver which talks to a single explicit DNS server.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// ErrNoSuchHost is returned when the server has no address for the name.
var ErrNoSuchHost = errors.New("no such host")

// Resolver resolves hostnames via the configured server only.
//
// System resolver configuration (/etc/resolv.conf) is never consulted.
type Resolver struct {
	Server  netip.AddrPort
	Timeout time.Duration

	logger *zap.Logger
}

// NewResolver creates a new Resolver.
func NewResolver(logger *zap.Logger, server netip.AddrPort, timeout time.Duration) *Resolver {
	return &Resolver{
		Server:  server,
		Timeout: timeout,
		logger:  logger,
	}
}

// Resolve returns the first address of hostname.
//
// IPv4 addresses are looked up first, IPv6 addresses only if there are none.
// IP literals are returned as is.
func (r *Resolver) Resolve(ctx context.Context, hostname string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(hostname); err == nil {
		return addr, nil
	}

	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		addrs, err := r.lookup(ctx, hostname, qtype)
		if err != nil {
			return netip.Addr{}, err
		}

		if len(addrs) > 0 {
			r.logger.Debug("resolved host",
				zap.String("host", hostname),
				zap.Stringer("server", r.Server),
				zap.Stringers("addresses", addrs),
			)

			return addrs[0], nil
		}
	}

	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoSuchHost, hostname)
}

func (r *Resolver) lookup(ctx context.Context, hostname string, qtype uint16) ([]netip.Addr, error) {
	msg := new(dns.Msg).SetQuestion(dns.Fqdn(hostname), qtype)
	msg.RecursionDesired = true

	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("error looking up %s %q via %s: %w", dns.TypeToString[qtype], hostname, r.Server, err)
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNoSuchHost, hostname)
	default:
		return nil, fmt.Errorf("error looking up %s %q via %s: %s", dns.TypeToString[qtype], hostname, r.Server, dns.RcodeToString[resp.Rcode])
	}

	var addrs []netip.Addr

	for _, rr := range resp.Answer {
		var (
			addr netip.Addr
			ok   bool
		)

		switch rr := rr.(type) {
		case *dns.A:
			addr, ok = netip.AddrFromSlice(rr.A)
		case *dns.AAAA:
			addr, ok = netip.AddrFromSlice(rr.AAAA)
		}

		if ok {
			addrs = append(addrs, addr.Unmap())
		}
	}

	return addrs, nil
}

func (r *Resolver) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	client := &dns.Client{
		Net:     "udp",
		Timeout: r.Timeout,
	}

	resp, _, err := client.ExchangeContext(ctx, msg, r.Server.String())
	if err != nil {
		return nil, err
	}

	if !resp.Truncated {
		return resp, nil
	}

	r.logger.Debug("truncated dns response, retrying over tcp", zap.Stringer("server", r.Server))

	client.Net = "tcp"

	resp, _, err = client.ExchangeContext(ctx, msg, r.Server.String())

	return resp, err
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package link waits for a network interface to become operational.
package link

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jsimonetti/rtnetlink/v2"
	"github.com/mdlayher/netlink"
	"github.com/siderolabs/gen/channel"
	"github.com/siderolabs/go-retry/retry"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// ErrTimeout is returned when the link does not come up in time.
var ErrTimeout = errors.New("timed out waiting for link")

var errEventsUnsupported = errors.New("link events are not supported")

// DialFunc opens an rtnetlink connection.
type DialFunc func(config *netlink.Config) (*rtnetlink.Conn, error)

// FlagsFunc returns the flags of the named interface.
type FlagsFunc func(name string) (net.Flags, error)

// Waiter blocks until the interface is up and running.
//
// Link events are consumed from rtnetlink; if the kernel does not support
// rtnetlink, interface flags are polled every PollInterval instead.
type Waiter struct {
	Interface    string
	Timeout      time.Duration
	PollInterval time.Duration

	logger *zap.Logger

	// these functions are overridden in tests for mocking support
	Dial           DialFunc
	InterfaceFlags FlagsFunc
}

// NewWaiter creates a new Waiter.
func NewWaiter(logger *zap.Logger, iface string, timeout, pollInterval time.Duration) *Waiter {
	return &Waiter{
		Interface:    iface,
		Timeout:      timeout,
		PollInterval: pollInterval,

		logger: logger,

		Dial:           rtnetlink.Dial,
		InterfaceFlags: interfaceFlags,
	}
}

// WaitUp returns when the link is up.
//
// ErrTimeout is returned if the link is not up within Timeout, and ctx.Err() if
// ctx is canceled. Any other error means link state could not be watched at all.
func (waiter *Waiter) WaitUp(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, waiter.Timeout)
	defer cancel()

	err := waiter.watch(waitCtx)
	if errors.Is(err, errEventsUnsupported) {
		waiter.logger.Warn("falling back to polling link state", zap.String("link", waiter.Interface), zap.Error(err))

		err = waiter.poll(waitCtx)
	}

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case waitCtx.Err() != nil:
		return fmt.Errorf("%w %q after %s", ErrTimeout, waiter.Interface, waiter.Timeout)
	default:
		return err
	}
}

func isUp(msg *rtnetlink.LinkMessage) bool {
	// ppp links report operstate UNKNOWN, so flags are checked instead
	return msg.Flags&unix.IFF_UP != 0 && msg.Flags&unix.IFF_RUNNING != 0
}

func (waiter *Waiter) matches(msg *rtnetlink.LinkMessage) bool {
	return msg.Attributes != nil && msg.Attributes.Name == waiter.Interface
}

//nolint:gocyclo
func (waiter *Waiter) watch(ctx context.Context) error {
	// subscribe first, so that no transition between listing and watching is missed
	watchConn, err := waiter.Dial(&netlink.Config{Groups: unix.RTMGRP_LINK})
	if err != nil {
		if errors.Is(err, unix.EPROTONOSUPPORT) || errors.Is(err, unix.EAFNOSUPPORT) {
			return fmt.Errorf("%w: %w", errEventsUnsupported, err)
		}

		return fmt.Errorf("error dialing watch socket: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)

	var wg sync.WaitGroup

	defer func() {
		cancel()
		watchConn.Close() //nolint:errcheck

		wg.Wait()
	}()

	upCh := make(chan error, 1)

	wg.Add(1)

	go func() {
		defer wg.Done()

		for {
			msgs, _, watchErr := watchConn.Receive()
			if watchErr != nil {
				channel.SendWithContext[error](ctx, upCh, fmt.Errorf("error receiving link events: %w", watchErr))

				return
			}

			for _, msg := range msgs {
				if link, ok := msg.(*rtnetlink.LinkMessage); ok && waiter.matches(link) && isUp(link) {
					channel.SendWithContext[error](ctx, upCh, nil)

					return
				}
			}
		}
	}()

	up, err := waiter.listUp()
	if err != nil {
		return err
	}

	if up {
		return nil
	}

	waiter.logger.Info("waiting for link", zap.String("link", waiter.Interface))

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err = <-upCh:
		return err
	}
}

func (waiter *Waiter) listUp() (bool, error) {
	conn, err := waiter.Dial(nil)
	if err != nil {
		return false, fmt.Errorf("error dialing rtnetlink socket: %w", err)
	}

	defer conn.Close() //nolint:errcheck

	links, err := conn.Link.List()
	if err != nil {
		return false, fmt.Errorf("error listing links: %w", err)
	}

	for i := range links {
		if waiter.matches(&links[i]) {
			return isUp(&links[i]), nil
		}
	}

	return false, nil
}

func (waiter *Waiter) poll(ctx context.Context) error {
	return retry.Constant(waiter.Timeout, retry.WithUnits(waiter.PollInterval)).RetryWithContext(ctx, func(context.Context) error {
		flags, err := waiter.InterfaceFlags(waiter.Interface)
		if err != nil {
			return retry.ExpectedError(err)
		}

		if flags&net.FlagUp == 0 || flags&net.FlagRunning == 0 {
			return retry.ExpectedError(fmt.Errorf("link %q is not running (flags %s)", waiter.Interface, flags))
		}

		return nil
	})
}

func interfaceFlags(name string) (net.Flags, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return 0, err
	}

	return iface.Flags, nil
}

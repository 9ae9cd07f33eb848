// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package ntp keeps the system clock in step with an NTP server.
//
// The 32-bit NTP seconds field wraps every 136 years, so every response is
// disambiguated against a floor: the last known-good time persisted on disk,
// or the build time of the binary.
package ntp

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/siderolabs/timed/internal/pkg/link"
	"github.com/siderolabs/timed/internal/pkg/timex"
)

// State of the Syncer.
type State int

// Syncer states.
const (
	StateAwaitingLink State = iota
	StateLoading
	StateSyncingFast
	StateSyncingSteady
	StateTerminating
)

func (state State) String() string {
	switch state {
	case StateAwaitingLink:
		return "awaiting link"
	case StateLoading:
		return "loading"
	case StateSyncingFast:
		return "syncing (fast)"
	case StateSyncingSteady:
		return "syncing (steady)"
	case StateTerminating:
		return "terminating"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// Resolver resolves the time server hostname.
type Resolver interface {
	Resolve(ctx context.Context, hostname string) (netip.Addr, error)
}

// TimeQuerier returns raw NTP transmit seconds from the endpoint.
type TimeQuerier interface {
	Query(endpoint netip.AddrPort) (uint32, error)
}

// LinkWaiter blocks until the network link is up.
type LinkWaiter interface {
	WaitUp(ctx context.Context) error
}

// FloorStorage persists the time floor.
type FloorStorage interface {
	Load() (int64, bool)
	Save(t int64) error
}

// Notifier is called once the clock becomes trustworthy.
type Notifier interface {
	Notify() error
}

// CommitFunc sets the system clock to the Unix time in seconds.
type CommitFunc func(sec int64) error

// ClockStateFunc reports the kernel clock state.
type ClockStateFunc func() (timex.State, timex.Status, error)

// Options configure the Syncer.
type Options struct {
	Server string
	Port   uint16

	FastInterval   time.Duration
	SteadyInterval time.Duration

	// BuildFloor is the lowest acceptable time.
	BuildFloor int64

	Resolver Resolver
	Querier  TimeQuerier
	Link     LinkWaiter
	Floor    FloorStorage

	// Notifier is optional.
	Notifier Notifier
}

// Syncer performs time sync via NTP on schedule.
type Syncer struct {
	Options

	logger *zap.Logger

	stateMu sync.Mutex
	state   State

	timeSynced chan struct{}

	firstSync bool

	lastSaved   int64
	lastSavedOk bool

	// these functions are overridden in tests for mocking support
	Clock      clock.Clock
	Commit     CommitFunc
	ClockState ClockStateFunc
}

// NewSyncer creates new Syncer.
func NewSyncer(logger *zap.Logger, opts Options) *Syncer {
	return &Syncer{
		Options: opts,

		logger: logger,

		timeSynced: make(chan struct{}),

		firstSync: true,

		Clock:      clock.New(),
		Commit:     timex.Settime,
		ClockState: timex.ReadState,
	}
}

// Synced returns a channel which is closed when time is in sync.
func (syncer *Syncer) Synced() <-chan struct{} {
	return syncer.timeSynced
}

// State returns the current state.
func (syncer *Syncer) State() State {
	syncer.stateMu.Lock()
	defer syncer.stateMu.Unlock()

	return syncer.state
}

func (syncer *Syncer) setState(state State) {
	syncer.stateMu.Lock()
	prev := syncer.state
	syncer.state = state
	syncer.stateMu.Unlock()

	syncer.logger.Debug("state transition", zap.Stringer("from", prev), zap.Stringer("to", state))
}

// Run runs the sync process until ctx is canceled.
//
// Canceling ctx checkpoints the current system time into the floor storage,
// unless the link was not up yet. A sync cycle in progress is never interrupted.
//
//nolint:gocyclo
func (syncer *Syncer) Run(ctx context.Context) error {
	syncer.setState(StateAwaitingLink)

	syncer.applyPersistedFloor()

	if err := syncer.Link.WaitUp(ctx); err != nil {
		switch {
		case ctx.Err() != nil:
			syncer.logger.Info("terminated while waiting for link")

			return nil
		case errors.Is(err, link.ErrTimeout):
			syncer.logger.Warn("link is not up, syncing anyway", zap.Error(err))
		default:
			return fmt.Errorf("error waiting for link: %w", err)
		}
	}

	syncer.setState(StateLoading)

	floor, _ := syncer.floor()
	syncer.logger.Info("starting time sync",
		zap.String("server", syncer.Server),
		zap.Time("floor", time.Unix(floor, 0).UTC()),
	)

	ticker := syncer.Clock.Ticker(syncer.FastInterval)
	defer ticker.Stop()

	syncer.setState(StateSyncingFast)

	for firstIteration := true; ; firstIteration = false {
		if !firstIteration {
			select {
			case <-ctx.Done():
				return syncer.checkpoint()
			case <-ticker.C:
			}
		}

		// termination wins over a tick which became ready at the same time
		if ctx.Err() != nil {
			return syncer.checkpoint()
		}

		// the cycle is allowed to finish, adapters enforce their own timeouts
		if err := syncer.sync(context.WithoutCancel(ctx)); err != nil {
			syncer.logger.Warn("time sync failed", zap.Stringer("state", syncer.State()), zap.Error(err))

			continue
		}

		if syncer.State() == StateSyncingFast {
			ticker.Reset(syncer.SteadyInterval)

			syncer.setState(StateSyncingSteady)

			// successful first time sync, notify about it
			syncer.notify()

			close(syncer.timeSynced)
		}
	}
}

// floor returns the disambiguation floor and the persisted value, if any.
//
// The build floor is used only without a persisted value. The floor never
// drops below what this process has saved.
func (syncer *Syncer) floor() (floor int64, persisted *int64) {
	floor = syncer.BuildFloor

	if v, ok := syncer.Floor.Load(); ok {
		persisted = &v

		floor = v
	} else {
		syncer.logger.Debug("no persisted time floor, using build floor", zap.Int64("build_floor", syncer.BuildFloor))
	}

	if syncer.lastSavedOk {
		floor = max(floor, syncer.lastSaved)
	}

	return floor, persisted
}

// sync runs a single sync cycle: resolve, query, disambiguate, commit and persist.
func (syncer *Syncer) sync(ctx context.Context) error {
	addr, err := syncer.Resolver.Resolve(ctx, syncer.Server)
	if err != nil {
		return fmt.Errorf("error resolving %q: %w", syncer.Server, err)
	}

	raw, err := syncer.Querier.Query(netip.AddrPortFrom(addr, syncer.Port))
	if err != nil {
		return err
	}

	floor, persisted := syncer.floor()

	t := Disambiguate(raw, floor)

	before := syncer.Clock.Now()

	if err = syncer.Commit(t); err != nil {
		return fmt.Errorf("error committing time: %w", err)
	}

	syncer.logCommit(t, raw, floor, time.Duration(t-before.Unix())*time.Second, addr)

	if persisted != nil && *persisted == t {
		return nil
	}

	if err = syncer.save(t); err != nil {
		// the clock is already set, only the next boot loses the improvement
		syncer.logger.Error("error persisting time floor", zap.Error(err))
	}

	return nil
}

func (syncer *Syncer) save(t int64) error {
	if err := syncer.Floor.Save(t); err != nil {
		return err
	}

	syncer.lastSaved, syncer.lastSavedOk = t, true

	return nil
}

func (syncer *Syncer) logCommit(t int64, raw uint32, floor int64, step time.Duration, addr netip.Addr) {
	logLevel := zapcore.DebugLevel

	if syncer.firstSync {
		// promote first sync to info level
		syncer.firstSync = false

		logLevel = zapcore.InfoLevel
	}

	ce := syncer.logger.Check(logLevel, "time set")
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.Time("time", time.Unix(t, 0).UTC()),
		zap.Duration("step", step),
		zap.Uint32("raw", raw),
		zap.Int64("floor", floor),
		zap.Stringer("server", addr),
	}

	if state, status, err := syncer.ClockState(); err == nil {
		fields = append(fields, zap.Stringer("clock_state", state), zap.Stringer("clock_status", status))
	}

	ce.Write(fields...)
}

// applyPersistedFloor moves the clock forward to the persisted floor.
//
// This is best effort: the clock is never moved backwards, and failures are only logged.
func (syncer *Syncer) applyPersistedFloor() {
	persisted, ok := syncer.Floor.Load()
	if !ok {
		syncer.logger.Debug("no persisted time floor to apply")

		return
	}

	if now := syncer.Clock.Now().Unix(); now >= persisted {
		syncer.logger.Debug("clock is ahead of persisted time floor", zap.Int64("floor", persisted), zap.Int64("now", now))

		return
	}

	if err := syncer.Commit(persisted); err != nil {
		syncer.logger.Warn("error applying persisted time floor", zap.Error(err))

		return
	}

	syncer.logger.Info("applied persisted time floor", zap.Time("time", time.Unix(persisted, 0).UTC()))
}

func (syncer *Syncer) notify() {
	if syncer.Notifier == nil {
		return
	}

	if err := syncer.Notifier.Notify(); err != nil {
		syncer.logger.Warn("error notifying about time sync", zap.Error(err))
	}
}

// checkpoint saves the current system time as the floor.
//
// A clock behind the floor was never set, so the floor is kept instead.
func (syncer *Syncer) checkpoint() error {
	syncer.setState(StateTerminating)

	now := syncer.Clock.Now().Unix()

	floor, persisted := syncer.floor()
	if now < floor {
		syncer.logger.Warn("clock is behind time floor, keeping floor",
			zap.Time("clock", time.Unix(now, 0).UTC()),
			zap.Time("floor", time.Unix(floor, 0).UTC()),
		)

		now = floor
	}

	if persisted != nil && *persisted == now {
		return nil
	}

	if err := syncer.save(now); err != nil {
		return fmt.Errorf("error checkpointing time: %w", err)
	}

	syncer.logger.Info("checkpointed time", zap.Time("time", time.Unix(now, 0).UTC()))

	return nil
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package timed implements the time sync daemon.
package timed

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/siderolabs/timed/internal/pkg/dns"
	"github.com/siderolabs/timed/internal/pkg/link"
	"github.com/siderolabs/timed/internal/pkg/ntp"
	"github.com/siderolabs/timed/internal/pkg/version"
	"github.com/siderolabs/timed/pkg/logging"
	"github.com/siderolabs/timed/pkg/proc"
)

// Run runs the daemon until ctx is canceled.
//
// An error is returned if the configuration is invalid, the link state can't
// be watched, or the final time checkpoint can't be saved.
func Run(ctx context.Context, cfg Config, logger *zap.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Info("starting timed",
		zap.String("version", version.Short()),
		zap.String("server", cfg.Server),
		zap.Stringer("resolver", cfg.Resolver),
		zap.String("link", cfg.Interface),
		zap.String("floor_path", cfg.FloorPath),
	)

	if err := NewSyncer(cfg, logger).Run(ctx); err != nil {
		return err
	}

	logger.Info("timed stopped")

	return nil
}

// NewSyncer wires the Syncer with the adapters described by cfg.
func NewSyncer(cfg Config, logger *zap.Logger) *ntp.Syncer {
	opts := ntp.Options{
		Server: cfg.Server,
		Port:   cfg.ServerPort,

		FastInterval:   cfg.FastInterval,
		SteadyInterval: cfg.SteadyInterval,

		BuildFloor: cfg.BuildFloor,

		Resolver: dns.NewResolver(logger.With(logging.Component("dns")), cfg.Resolver, cfg.ResolveTimeout),
		Querier:  ntp.NewQuerier(logger.With(logging.Component("ntp")), cfg.QueryTimeout),
		Link:     link.NewWaiter(logger.With(logging.Component("link")), cfg.Interface, cfg.LinkTimeout, cfg.LinkPollInterval),
		Floor:    &ntp.FloorStore{Path: cfg.FloorPath},
	}

	if cfg.NotifyProcess != "" {
		opts.Notifier = proc.NewSignaller(logger.With(logging.Component("notify")), cfg.ProcMountPoint, cfg.NotifyProcess, cfg.NotifySignal)
	}

	return ntp.NewSyncer(logger.With(logging.Component("syncer")), opts)
}

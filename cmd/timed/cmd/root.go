// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cmd implements the timed command line.
package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/siderolabs/timed/internal/app/timed"
	"github.com/siderolabs/timed/pkg/logging"
)

// rootCmd runs the daemon.
var rootCmd = &cobra.Command{
	Use:   "timed",
	Short: "Keep the system clock in step with an NTP server",
	Long: `timed sets the system clock from an NTP server once the network link is up,
and persists the last known-good time to disambiguate NTP eras across reboots.

The daemon runs until SIGTERM or SIGINT, then checkpoints the system time.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
		defer cancel()

		logger := logging.New(os.Stderr, zapcore.InfoLevel)
		defer logger.Sync() //nolint:errcheck

		// route library output of the standard logger into zap
		log.SetFlags(0)
		log.SetOutput(logging.NewWriter(logger.With(logging.Component("stdlib")), zapcore.WarnLevel))

		return timed.Run(ctx, timed.DefaultConfig(), logger)
	},
}

// Execute runs the root command and exits with non-zero code on error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/siderolabs/timed/internal/app/timed"
	"github.com/siderolabs/timed/internal/pkg/ntp"
)

var floorCmd = &cobra.Command{
	Use:   "floor",
	Short: "Print the persisted and effective time floor",
	Long:  `The effective floor is the lower bound used to disambiguate NTP eras on the next sync.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return printFloor(cmd.OutOrStdout(), timed.DefaultConfig(), time.Now())
	},
}

func formatFloor(t int64, now time.Time) string {
	ts := time.Unix(t, 0)

	return fmt.Sprintf("%d\t%s\t%s", t, ts.UTC().Format(time.RFC3339), humanize.RelTime(ts, now, "ago", "from now"))
}

func printFloor(out io.Writer, cfg timed.Config, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)

	effective := cfg.BuildFloor

	persisted, ok := (&ntp.FloorStore{Path: cfg.FloorPath}).Load()
	if ok {
		effective = persisted

		fmt.Fprintf(w, "PERSISTED\t%s\n", formatFloor(persisted, now))
	} else {
		fmt.Fprintf(w, "PERSISTED\tnone (%s)\n", cfg.FloorPath)
	}

	fmt.Fprintf(w, "BUILD\t%s\n", formatFloor(cfg.BuildFloor, now))
	fmt.Fprintf(w, "EFFECTIVE\t%s\n", formatFloor(effective, now))

	return w.Flush()
}

func init() {
	rootCmd.AddCommand(floorCmd)
}

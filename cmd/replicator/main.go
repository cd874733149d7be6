// Command replicator is the minimal outer harness for the replication
// core: it wires one Filter, one source and one destination NodeAdapter,
// and a store-backed Ledger and FilterIndex, then runs a single
// Syncer.Job to completion. Process supervision, scheduling across many
// filters, and telemetry export are explicitly out of scope for the core
// (spec.md §1) and are not reimplemented here beyond this single-shot
// invocation.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "replicator",
		Short: "Replicate a catalog filter from a source node to a destination node",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return err
			}
			logrus.SetLevel(level)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(newSyncCommand())
	return cmd
}

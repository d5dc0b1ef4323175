// Package main provides the varanno CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "varanno",
		Short: "Versioned variant annotation database",
		Long: `varanno annotates genomic variants in runs, keeps every payload version and
serves the current view as well as named snapshots.

Commands:
  annotate   run an annotator over selected variants
  save       save the current view as a snapshot
  delete     delete a snapshot
  get        read annotations
  count      count annotated variants
  runs       list annotation runs
  metadata   show project annotation metadata
  snapshots  list saved snapshots`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./.varanno.yaml or $HOME/.varanno.yaml)")
	rootCmd.PersistentFlags().StringVarP(&a.project, "project", "p", "", "project name (overrides config)")
	rootCmd.PersistentFlags().StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the command")

	rootCmd.AddCommand(annotateCmd(a))
	rootCmd.AddCommand(saveCmd(a))
	rootCmd.AddCommand(deleteCmd(a))
	rootCmd.AddCommand(getCmd(a))
	rootCmd.AddCommand(countCmd(a))
	rootCmd.AddCommand(runsCmd(a))
	rootCmd.AddCommand(metadataCmd(a))
	rootCmd.AddCommand(snapshotsCmd(a))

	return rootCmd
}

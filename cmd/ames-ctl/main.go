// Command ames-ctl inspects the on-disk state of an Ames node: the
// bbolt snapshot store a running ames-node periodically writes its
// known peers' continuity state into.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var dbPath string

var rootCmd = &cobra.Command{
	Use:   "ames-ctl",
	Short: "Inspect an Ames node's persisted peer state",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "./data/peers.db", "path to the node's peer snapshot store")
	rootCmd.AddCommand(peersCmd, dashboardCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Command ames-node runs a single Ames peer: it loads identity and
// configuration, binds a UDP lane, and drives the peer state machine
// from datagrams, timers, and PKI oracle answers until interrupted.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "ames-node",
		Short: "Run an Ames peer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVar(&configPath, "config", "", "path to YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

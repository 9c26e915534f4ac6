// Package main implements the myriadnode CLI: run a mesh node, generate an
// identity, or scaffold a configuration file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
	commit    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "myriadnode",
	Short: "MyriadMesh multi-transport mesh node",
	Long: `myriadnode runs one MyriadMesh mesh node: a Kademlia DHT peer, priority
message router, and transport adapter manager reachable over Ethernet/QUIC,
with optional dual-identity overlay privacy.`,
}

func main() {
	rootCmd.AddCommand(runCmd(), idCmd(), configCmd(), versionCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "myriadnode %s (built %s, commit %s)\n", version, buildTime, commit)
			return nil
		},
	}
}

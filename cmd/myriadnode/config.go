package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myriadmesh/myriadmesh/pkg/node"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the node's configuration file",
	}
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var path string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists, pass --force to overwrite", path)
				}
			}
			if err := node.SaveConfig(path, node.DefaultConfig()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote default configuration to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "out", "myriadmesh.yaml", "output path for the generated configuration")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration file")
	return cmd
}

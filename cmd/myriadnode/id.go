package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myriadmesh/myriadmesh/pkg/crypto"
)

func idCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "id",
		Short: "Manage the node's signing identity",
	}
	cmd.AddCommand(idGenerateCmd(), idShowCmd())
	return cmd
}

func idGenerateCmd() *cobra.Command {
	var path string
	var force bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new signing identity and write it to disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists, pass --force to overwrite", path)
				}
			}
			identity, err := crypto.GenerateIdentity()
			if err != nil {
				return err
			}
			if err := identity.SaveToFile(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote identity to %s, node id %x\n", path, identity.NodeID())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "out", "identity.json", "output path for the generated identity")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing identity file")
	return cmd
}

func idShowCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the NodeId derived from an existing identity file",
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := crypto.LoadFromFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", identity.NodeID())
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "identity", "identity.json", "path to the identity file")
	return cmd
}

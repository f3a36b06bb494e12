package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFolder string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "crmportal-api",
		Short:         "crmportal authentication api",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&configFolder, "config_folder", "backend/config", "path to folder with public.yaml and private.yaml")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the kv schema (postgres) or TTL index (mongo)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.backend.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s backend is up to date\n", a.backend.Driver)
			return nil
		},
	}
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity to the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.backend.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s backend is reachable\n", a.backend.Driver)
			return nil
		},
	}
}

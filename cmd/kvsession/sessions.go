package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/kvsession/pkg/session"
)

var errSessionNotFound = errors.New("session not found")

func newSessionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "List, inspect and remove sessions",
	}
	cmd.AddCommand(
		newSessionsLsCmd(a),
		newSessionsGetCmd(a),
		newSessionsRmCmd(a),
		newSessionsPurgeCmd(a),
	)
	return cmd
}

func newSessionsLsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls <user-id>",
		Short: "List the sessions of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := a.sessions.GetUserSessions(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(a, sessions)
			}

			if len(sessions) == 0 {
				fmt.Fprintln(a.out, "No active sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEXPIRES AT\tEXPIRES IN")
			now := time.Now()
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", s.ID, s.ExpiresAt.Format(time.RFC3339), s.ExpiresAt.Sub(now).Round(time.Second))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print sessions as JSON")
	return cmd
}

func newSessionsGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Print a session and its user as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, user, err := a.sessions.GetSessionAndUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("%w: %s", errSessionNotFound, args[0])
			}
			return writeJSON(a, struct {
				Session *session.Session `json:"session"`
				User    *session.User    `json:"user"`
			}{sess, user})
		},
	}
}

func newSessionsRmCmd(a *app) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "rm [session-id...]",
		Short: "Remove sessions by id, or every session of --user",
		Args: func(cmd *cobra.Command, args []string) error {
			if userID == "" && len(args) == 0 {
				return errors.New("pass at least one session id or --user")
			}
			if userID != "" && len(args) > 0 {
				return errors.New("session ids and --user are mutually exclusive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID != "" {
				if err := a.sessions.DeleteUserSessions(cmd.Context(), userID); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Removed sessions of user '%s'\n", userID)
				return nil
			}

			var errs []error
			for _, id := range args {
				if err := a.sessions.DeleteSession(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("remove %s: %w", id, err))
					continue
				}
				fmt.Fprintf(a.out, "Removed session '%s'\n", id)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "remove every session of this user")
	return cmd
}

func newSessionsPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Physically remove expired entries and stale index members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := a.backend.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Purged %d expired entries\n", n)
			return nil
		},
	}
}

func writeJSON(a *app, v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

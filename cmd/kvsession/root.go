package main

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/kvsession/pkg/backend"
	"github.com/dmitrymomot/kvsession/pkg/config"
	"github.com/dmitrymomot/kvsession/pkg/logger"
	"github.com/dmitrymomot/kvsession/pkg/session"
)

// commandKey holds the full command path in the command context so that every
// log line written during the run is tagged with it.
type commandKey struct{}

// app carries what every subcommand needs once PersistentPreRunE has run.
type app struct {
	out      io.Writer
	log      *slog.Logger
	backend  *backend.Backend
	sessions *session.Store

	envFiles []string
	driver   string
}

// execute runs the CLI with args and releases the backend afterwards, also
// when the command failed.
func execute(ctx context.Context, out, errOut io.Writer, args []string) error {
	a := &app{out: out}
	root := newRootCmd(a)
	root.SetErr(errOut)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "kvsession",
		Short:         "Inspect and maintain sessions stored in a kv backend",
		Long:          `kvsession connects to the backend selected by SESSION_KV_DRIVER (memory, redis, postgres or mongo) and operates on the session records written by pkg/session.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			return a.open(cmd)
		},
	}
	root.SetOut(a.out)
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "dotenv files to load before reading the environment")
	root.PersistentFlags().StringVar(&a.driver, "driver", "", "override SESSION_KV_DRIVER")

	root.AddCommand(
		newMigrateCmd(a),
		newPingCmd(a),
		newSessionsCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command) error {
	cmd.SetContext(context.WithValue(cmd.Context(), commandKey{}, cmd.CommandPath()))

	if len(a.envFiles) > 0 {
		if err := config.LoadEnvFiles(a.envFiles...); err != nil {
			return err
		}
	}

	var logCfg logger.Config
	if err := config.Load(&logCfg); err != nil {
		return err
	}
	log, err := logger.NewFromConfig(logCfg,
		logger.WithOutput(cmd.ErrOrStderr()),
		logger.WithAttr(logger.Component("cli")),
		logger.WithContextValue("command", commandKey{}),
	)
	if err != nil {
		return err
	}
	a.log = log

	backendCfg := backend.DefaultConfig()
	if err := config.Load(&backendCfg); err != nil {
		return err
	}
	if a.driver != "" {
		backendCfg.Driver = backend.Driver(a.driver)
	}

	var sessionCfg session.Config
	if err := config.Load(&sessionCfg); err != nil {
		return err
	}

	b, err := backend.Open(cmd.Context(), backendCfg, backend.WithLogger(log))
	if err != nil {
		return err
	}
	a.backend = b
	a.sessions = session.NewFromConfig(b.Store, sessionCfg, session.WithLogger(log))
	return nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend = nil
	return err
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/tourbot/core/cmd"
)

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	config  string
	envFile string
}

func (g *globalFlags) cmdOptions() corecmd.Options {
	return corecmd.Options{
		ConfigPath:   g.config,
		ConfigEnvVar: "CONFIG_PATH",
		EnvFiles:     []string{g.envFile},
	}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:           "tourbot",
		Short:         "Telegram bot that collects tour requests",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(flags)
		},
	}

	cmd.PersistentFlags().StringVar(&flags.config, "config", "", "YAML config file (default: $CONFIG_PATH, env only when empty).")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Dotenv file loaded before the config; skipped when missing.")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newWebhookCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/tourbot/core/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "tourbot", buildinfo.String())
		},
	}
}

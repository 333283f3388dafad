package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/payloadstash/payloadstash/internal/orchestrator"
)

func newResolveCmd() *cobra.Command {
	var out string
	var secrets string

	cmd := &cobra.Command{
		Use:   "resolve CONFIG",
		Short: "Resolve a stash configuration and write the resolved document, without dispatching requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := orchestrator.Run(context.Background(), orchestrator.Options{
				ConfigPath:    args[0],
				OutDir:        out,
				SecretsPath:   secrets,
				SkipExecution: true,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resolved config written under: %s\n", res.RunDir)
			os.Exit(res.ExitCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", ".", "output root directory")
	cmd.Flags().StringVar(&secrets, "secrets", "", "path to a KEY=VALUE secrets file")
	return cmd
}

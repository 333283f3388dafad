package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/payloadstash/payloadstash/internal/orchestrator"
)

func newRunCmd() *cobra.Command {
	var out string
	var secrets string
	var dryRun bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "run CONFIG",
		Short: "Resolve a stash configuration and dispatch its requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !dryRun && !yes {
				if !confirm(cmd, fmt.Sprintf("This run will dispatch real HTTP requests described in %s. Proceed?", args[0])) {
					fmt.Fprintln(cmd.OutOrStdout(), "Operation Cancelled")
					os.Exit(orchestrator.ExitSuccess)
				}
			}
			res, err := orchestrator.Run(context.Background(), orchestrator.Options{
				ConfigPath:  args[0],
				OutDir:      out,
				SecretsPath: secrets,
				DryRun:      dryRun,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run directory: %s\n", res.RunDir)
			os.Exit(res.ExitCode)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", ".", "output root directory")
	cmd.Flags().StringVar(&secrets, "secrets", "", "path to a KEY=VALUE secrets file")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve and log without dispatching requests")
	cmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt before dispatching requests")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N] ", prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(strings.ToLower(line))
	return line == "y" || line == "yes"
}

// Command payloadstash is the thin CLI front-end over the core (§6 "CLI
// surface"): it maps validation/output-write/request failures to the exit
// codes the core defines and nothing more. Grounded on the teacher's
// cmd-package split of one cobra command per subcommand with flags bound
// directly to core option structs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(9)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "payloadstash",
		Short:         "Declarative HTTP fetch-and-archive engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newRunCmd(), newValidateCmd(), newResolveCmd())
	return cmd
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/payloadstash/payloadstash/internal/dynamic"
	"github.com/payloadstash/payloadstash/internal/resolveconfig"
	"github.com/payloadstash/payloadstash/internal/secretsfile"
	"github.com/payloadstash/payloadstash/internal/valuetree"
)

func newValidateCmd() *cobra.Command {
	var secrets string
	var writeResolved bool

	cmd := &cobra.Command{
		Use:   "validate CONFIG",
		Short: "Validate and resolve a stash configuration without dispatching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath := args[0]
			data, err := os.ReadFile(configPath)
			if err != nil {
				return err
			}
			root, err := valuetree.FromYAML(data)
			if err != nil {
				return err
			}
			doc, err := resolveconfig.Decode(root)
			if err != nil {
				return err
			}

			var sec dynamic.Secrets
			redact := secrets == ""
			if secrets != "" {
				sec, err = secretsfile.Load(secrets)
				if err != nil {
					return err
				}
			}
			result, err := resolveconfig.Resolve(doc, doc.Sets, sec, redact)
			if err != nil {
				return err
			}

			if writeResolved {
				out, err := valuetree.ToYAML(result.Resolved)
				if err != nil {
					return err
				}
				dest := resolvedSiblingPath(configPath)
				if err := os.WriteFile(dest, out, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "wrote "+dest)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s is a valid PayloadStash config. Name='%s', Sequences=%d\n", configPath, doc.Name, len(doc.Sequences))
			return nil
		},
	}
	cmd.Flags().StringVar(&secrets, "secrets", "", "path to a KEY=VALUE secrets file")
	cmd.Flags().BoolVar(&writeResolved, "write-resolved", false, "write a resolved copy of CONFIG next to it, as <stem>-resolved.yml")
	return cmd
}

// resolvedSiblingPath returns "<dir>/<stem>-resolved.yml" for a config path,
// stripping the config file's extension, whatever it is, from the stem first.
func resolvedSiblingPath(configPath string) string {
	dir := filepath.Dir(configPath)
	base := filepath.Base(configPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+"-resolved.yml")
}

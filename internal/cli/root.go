// Package cli wires the onflyd command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the onflyd command tree.
func NewRootCmd(version string) *cobra.Command {
	var (
		cfgPath    string
		jsonOutput bool
	)
	root := &cobra.Command{
		Use:           "onflyd",
		Short:         "In-process recurring job runner",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./onfly.yaml", "path to the job file (yaml or json)")
	root.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of tables")

	cfgFn := func() string { return cfgPath }
	outFn := func(cmd *cobra.Command) *Output { return NewOutput(cmd.OutOrStdout(), jsonOutput) }

	root.AddCommand(
		newRunCmd(cfgFn),
		newValidateCmd(cfgFn, outFn),
		newNextCmd(cfgFn, outFn),
		newHistoryCmd(cfgFn, outFn),
	)
	return root
}

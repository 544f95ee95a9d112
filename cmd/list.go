package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"irmut.dev/pkg/irmut/internal/domain"
)

// listCmd represents the list command.
var listCmd = newListCmd()

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [paths...]",
		Short: "List functions and mutation counts",
		Long: `List the scanned modules' functions and the number of applicable
mutations without executing anything.

` + pathPatternsHelp,
		RunE: func(_ *cobra.Command, args []string) error {
			return workflow.Estimate(context.Background(), domain.EstimateArgs{
				Paths:   parsePaths(args),
				Exclude: viper.GetStringSlice(excludeConfigKey),
				Threads: viper.GetInt(runParallelConfigKey),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}

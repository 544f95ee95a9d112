package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"irmut.dev/pkg/irmut/internal/domain"
	m "irmut.dev/pkg/irmut/internal/model"
)

// instrumentCmd represents the instrument command.
var instrumentCmd = newInstrumentCmd()

func newInstrumentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "instrument [paths...]",
		Short: "Rewrite IR with runtime dispatch calls",
		Long: `Load the mutation catalog and rewrite each mutable instruction of the
given modules into a dispatch call carrying its mutation id range. The
instrumented module is written next to its source as <name>.inst.ir.

` + pathPatternsHelp,
		RunE: func(_ *cobra.Command, args []string) error {
			catalogPath, err := resolveCatalogPath()
			if err != nil {
				return err
			}

			return workflow.Instrument(context.Background(), domain.InstrumentArgs{
				EstimateArgs: domain.EstimateArgs{
					Paths:   parsePaths(args),
					Exclude: viper.GetStringSlice(excludeConfigKey),
					Threads: viper.GetInt(runParallelConfigKey),
				},
				CatalogPath: m.Path(catalogPath),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(instrumentCmd)
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"irmut.dev/pkg/irmut/internal/domain"
	m "irmut.dev/pkg/irmut/internal/model"
)

// genCmd represents the gen command.
var genCmd = newGenCmd()

func newGenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "gen [paths...]",
		Short: "Generate the mutation catalog",
		Long: `Walk the IR of the given paths, enumerate every candidate mutation
under the operator taxonomy, and persist the catalog.

` + pathPatternsHelp,
		RunE: func(_ *cobra.Command, args []string) error {
			catalogPath, err := resolveCatalogPath()
			if err != nil {
				return err
			}

			return workflow.Generate(context.Background(), domain.GenArgs{
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
	rootCmd.AddCommand(genCmd)
}

package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	m "irmut.dev/pkg/irmut/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Browse saved mutation reports",
		Long: `Open previously saved reports and browse per-mutant outcomes with the
output diff that killed each class.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return workflow.View(context.Background(), m.Path(viper.GetString(outputFlagName)))
		},
	}
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

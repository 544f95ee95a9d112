// Package cmd provides the root command and CLI setup for irmut.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"irmut.dev/pkg/irmut/internal/adapter"
	"irmut.dev/pkg/irmut/internal/catalog"
	"irmut.dev/pkg/irmut/internal/controller"
	"irmut.dev/pkg/irmut/internal/domain"
	m "irmut.dev/pkg/irmut/internal/model"
)

var fsAdapter adapter.SourceFSAdapter
var reportStore adapter.ReportStore
var ui controller.UI
var workflow domain.Workflow

// reportsOutputDirFlag is a root-level flag shared by commands that
// read/write reports.
var reportsOutputDirFlag string

// catalogPathFlag overrides the catalog location for applicable commands.
var catalogPathFlag string

// excludePatterns is a root-level flag that filters files for applicable
// commands.
var excludePatterns []string

// verboseFlag raises logging to debug.
var verboseFlag bool

func init() {
	configureRootFlags(rootCmd)

	// Initialize shared dependencies.
	ui = controller.NewUI(rootCmd, controller.IsTTY(os.Stdout))
	fsAdapter = adapter.NewLocalSourceFSAdapter()
	reportStore = adapter.NewReportStore()
	workflow = domain.NewWorkflow(fsAdapter, reportStore, ui)
}

const pathPatternsHelp = `Supports path patterns:
  - ./...          recursively scan current directory for .ir files
  - ./progs/...    recursively scan progs directory
  - ./a.ir ./b.ir  specific IR files`

const rootLongDescription = `Irmut is an accelerated mutation testing engine for IR programs. It
generates every candidate mutation ahead of time, rewrites mutable
instructions into runtime dispatch calls, and explores all mutants in a
single execution by forking one process per diverging equivalence class.

` + pathPatternsHelp

// rootCmd represents the base command when called without any subcommands.
var rootCmd = baseRootCmd()

func baseRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "irmut",
		Short: "IR-level accelerated mutation testing",
		Long:  rootLongDescription,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			configureLogger("", verboseFlag || viper.GetBool(logVerboseKey))
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			viper.GetString(outputFlagName),
			"output directory for mutation testing reports",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringVarP(&catalogPathFlag, catalogFlagName, "c", viper.GetString(catalogConfigKey), "mutation catalog file (default $HOME/tmp/irmut/mutations.txt)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(catalogFlagName), catalogConfigKey)

	cmd.PersistentFlags().StringArrayVarP(&excludePatterns, excludeFlagName, "x", viper.GetStringSlice(excludeConfigKey), "exclude files matching regex (can be repeated)")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(excludeFlagName), excludeConfigKey)

	cmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "log at debug level")
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values
// feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}

// resolveCatalogPath applies flag, config and the $HOME default in that
// order.
func resolveCatalogPath() (string, error) {
	if path := viper.GetString(catalogConfigKey); path != "" {
		return path, nil
	}

	return catalog.DefaultPath()
}

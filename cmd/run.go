package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"irmut.dev/pkg/irmut/internal/accrt"
	"irmut.dev/pkg/irmut/internal/domain"
	m "irmut.dev/pkg/irmut/internal/model"
)

var runParallelFlag int
var runDegradedFlag bool
var runInputFlags []string

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [paths...]",
		Short: "Run mutation testing",
		Long: `Generate, instrument and execute each module, exploring every live
mutant through the fork tree in a single run.

` + pathPatternsHelp,
		RunE: func(_ *cobra.Command, args []string) error {
			env, err := parseInputFlags(runInputFlags)
			if err != nil {
				return err
			}

			return workflow.Run(context.Background(), domain.RunArgs{
				EstimateArgs: domain.EstimateArgs{
					Paths:   parsePaths(args),
					Exclude: viper.GetStringSlice(excludeConfigKey),
					Threads: viper.GetInt(runParallelConfigKey),
				},
				Reports: m.Path(viper.GetString(outputFlagName)),
				Runner: domain.Runner{
					Timer:    timerFromConfig(),
					Degraded: viper.GetBool(runDegradedConfigKey),
					TestID:   domain.TestIDFromEnv(),
					Env:      env,
				},
			})
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().IntVarP(&runParallelFlag, runParallelFlagName, "p", viper.GetInt(runParallelConfigKey), "number of parallel workers for parsing")
	bindFlagToConfig(cmd.Flags().Lookup(runParallelFlagName), runParallelConfigKey)

	cmd.Flags().BoolVar(&runDegradedFlag, runDegradedFlagName, viper.GetBool(runDegradedConfigKey), "use the degenerate one-class-per-candidate partitioning")
	bindFlagToConfig(cmd.Flags().Lookup(runDegradedFlagName), runDegradedConfigKey)

	cmd.Flags().StringArrayVarP(&runInputFlags, "input", "i", nil, "test input NAME=VALUE fed to getenv_i32 (can be repeated)")
}

func timerFromConfig() accrt.TimerConfig {
	return accrt.TimerConfig{
		ValueSec:     viper.GetInt(timerValueSecKey),
		ValueUSec:    viper.GetInt(timerValueUSecKey),
		IntervalSec:  viper.GetInt(timerIntervalSecKey),
		IntervalUSec: viper.GetInt(timerIntervalUSecKey),
		StepBudget:   viper.GetInt64(stepBudgetKey),
	}
}

func parseInputFlags(inputs []string) (map[string]int64, error) {
	env := make(map[string]int64, len(inputs))

	for _, in := range inputs {
		name, value, ok := strings.Cut(in, "=")
		if !ok {
			return nil, fmt.Errorf("malformed input %q, want NAME=VALUE", in)
		}

		v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed input value in %q: %w", in, err)
		}

		env[strings.TrimSpace(name)] = v
	}

	return env, nil
}

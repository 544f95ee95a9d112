package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputFlags(t *testing.T) {
	env, err := parseInputFlags([]string{"A=6", "B = 2", "NEG=-1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"A": 6, "B": 2, "NEG": -1}, env)

	_, err = parseInputFlags([]string{"A"})
	assert.Error(t, err)

	_, err = parseInputFlags([]string{"A=six"})
	assert.Error(t, err)

	env, err = parseInputFlags(nil)
	require.NoError(t, err)
	assert.Empty(t, env)
}

func TestTimerFromConfig(t *testing.T) {
	timer := timerFromConfig()
	assert.Equal(t, defaultTimerValueSec, timer.ValueSec)
	assert.Equal(t, int64(defaultStepBudget), timer.StepBudget)
}

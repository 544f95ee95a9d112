package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "irmut.dev/pkg/irmut/internal/model"
)

func TestRootCommandShowsHelp(t *testing.T) {
	cmd := baseRootCmd()

	var out bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "mutation")
}

func TestParsePaths(t *testing.T) {
	paths := parsePaths([]string{"./...", "a.ir"})
	assert.Equal(t, []m.Path{"./...", "a.ir"}, paths)

	assert.Empty(t, parsePaths(nil))
}

func TestSubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"gen", "instrument", "run", "list", "view", "init", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

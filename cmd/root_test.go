package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"score", "extract", "watch", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "puff-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	assert.True(t, rootCmd.SilenceUsage)
}

func TestScoreCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "sheet", "out", "metrics", "no-store"} {
		assert.NotNil(t, scoreCmd.Flags().Lookup(name), "score should have --%s flag", name)
	}
	flag := scoreCmd.Flags().Lookup("input")
	require.NotNil(t, flag)
	assert.Equal(t, []string{"true"}, flag.Annotations[cobra.BashCompOneRequiredFlag])
}

func TestWatchCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "sheet", "out", "metrics", "no-store", "debounce"} {
		assert.NotNil(t, watchCmd.Flags().Lookup(name), "watch should have --%s flag", name)
	}
	assert.Equal(t, "500ms", watchCmd.Flags().Lookup("debounce").DefValue)
}

func TestExtractCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "output", "sheet"} {
		assert.NotNil(t, extractCmd.Flags().Lookup(name), "extract should have --%s flag", name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"list", "show", "stats", "days"} {
		assert.True(t, names[name], "runs should have subcommand %q", name)
	}
}

func TestRunsListCommand_Flags(t *testing.T) {
	flag := runsListCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)

	flag = runsStatsCmd.Flags().Lookup("since")
	require.NotNil(t, flag)
	assert.Equal(t, "24h0m0s", flag.DefValue)
}

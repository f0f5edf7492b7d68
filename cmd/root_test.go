package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ownership-cli/internal/config"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"scan", "serve", "assign", "undo", "history", "rules"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "ownership-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_PersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "log-level"} {
		flag := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, "root command should have --%s flag", name)
		assert.Empty(t, flag.DefValue)
	}
	// Subcommands inherit the persistent flags.
	assert.NotNil(t, scanCmd.InheritedFlags().Lookup("config"))
}

func TestScanCommand_Flags(t *testing.T) {
	for _, name := range []string{"input", "dump", "save", "format", "output"} {
		require.NotNil(t, scanCmd.Flags().Lookup(name), "scan command should have --%s flag", name)
	}
	assert.Equal(t, "true", scanCmd.Flags().Lookup("save").DefValue)
	assert.Equal(t, "table", scanCmd.Flags().Lookup("format").DefValue)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestHistoryCommand_Flags(t *testing.T) {
	flag := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, flag)
	assert.Equal(t, "50", flag.DefValue)
	require.NotNil(t, historyCmd.Flags().Lookup("ci"))
}

func TestAssignCommand_Args(t *testing.T) {
	assert.Error(t, assignCmd.Args(assignCmd, []string{"c1"}))
	assert.NoError(t, assignCmd.Args(assignCmd, []string{"c1", "bob"}))
	assert.Error(t, undoCmd.Args(undoCmd, nil))
}

func TestRequireCredentials(t *testing.T) {
	tests := []struct {
		name string
		sn   config.ServiceNowConfig
		want string
	}{
		{"missing url", config.ServiceNowConfig{Username: "a", Password: "b"}, "instance URL"},
		{"missing username", config.ServiceNowConfig{InstanceURL: "https://x", Password: "b"}, "username"},
		{"missing password", config.ServiceNowConfig{InstanceURL: "https://x", Username: "a"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := requireCredentials(tt.sn)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, requireCredentials(config.ServiceNowConfig{InstanceURL: "https://x", Username: "a", Password: "b"}))
}

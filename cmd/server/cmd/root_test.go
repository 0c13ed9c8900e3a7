package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedOutput string
		expectError    bool
	}{
		{
			name:           "help flag",
			args:           []string{"--help"},
			expectedOutput: "Registration counts never exceed",
		},
		{
			name:           "short help flag",
			args:           []string{"-h"},
			expectedOutput: "Registration counts never exceed",
		},
		{
			name:           "invalid flag",
			args:           []string{"--invalid-flag"},
			expectedOutput: "unknown flag: --invalid-flag",
			expectError:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCommand()
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.expectError {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Contains(t, buf.String(), tt.expectedOutput)
		})
	}
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := newRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, expected := range []string{"serve", "migrate", "version", "healthcheck"} {
		require.True(t, names[expected], "missing subcommand %q", expected)
	}

	for _, flag := range []string{"config", "log-level", "log-format"} {
		require.NotNil(t, cmd.PersistentFlags().Lookup(flag), "missing persistent flag %q", flag)
	}
}

func TestServeCommandFlags(t *testing.T) {
	cmd := newServeCommand()
	require.NotNil(t, cmd.Flags().Lookup("host"))
	require.NotNil(t, cmd.Flags().Lookup("port"))
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "sqlite::memory:")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("LOG_LEVEL", "info")

	configPath, logLevel, logFormat = "", "debug", "console"
	t.Cleanup(func() { logLevel, logFormat = "", "" })

	cfg, err := loadConfig()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
	require.Equal(t, "sqlite", cfg.Database.Driver())
}

func TestLoadConfigMissingDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")
	configPath = ""

	_, err := loadConfig()
	require.ErrorContains(t, err, "DATABASE_URL")
}

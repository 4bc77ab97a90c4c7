package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv keeps the developer's ROOMLAB_* settings out of flag defaults.
func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvDatabase, "")
	t.Setenv(EnvRedis, "")
	t.Setenv(EnvCatalog, "")
}

// runCLI executes the CLI against a SQLite file and returns stdout, stderr
// and the exit code.
func runCLI(t *testing.T, db string, args ...string) (string, string, int) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Execute(context.Background(), append([]string{"--db", db}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func tempDB(t *testing.T) string {
	t.Helper()
	clearEnv(t)
	return filepath.Join(t.TempDir(), "roomlab.db")
}

func TestRootCommand(t *testing.T) {
	clearEnv(t)
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "roomlab", cmd.Use)
	assert.Contains(t, cmd.Long, "design-token")
}

func TestCommandPresence(t *testing.T) {
	clearEnv(t)
	cmd := NewRootCommand()
	commands := []string{"register", "login", "logout", "whoami", "buy", "spend", "history", "packages", "test"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	clearEnv(t)
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, DefaultDatabase, dbFlag.DefValue)

	for _, name := range []string{"redis", "catalog"} {
		flag := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Empty(t, flag.DefValue)
	}
}

func TestGlobalFlags_EnvironmentDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDatabase, "/var/lib/roomlab/state.db")
	t.Setenv(EnvRedis, "cache:6379")
	t.Setenv(EnvCatalog, "/etc/roomlab/packages.cue")

	cmd := NewRootCommand()
	assert.Equal(t, "/var/lib/roomlab/state.db", cmd.PersistentFlags().Lookup("db").DefValue)
	assert.Equal(t, "cache:6379", cmd.PersistentFlags().Lookup("redis").DefValue)
	assert.Equal(t, "/etc/roomlab/packages.cue", cmd.PersistentFlags().Lookup("catalog").DefValue)
}

func TestCredentialFlags(t *testing.T) {
	clearEnv(t)
	cmd := NewRootCommand()

	for _, name := range []string{"register", "login"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		flag := sub.Flags().Lookup("credential")
		require.NotNil(t, flag, name)
		assert.Equal(t, "p", flag.Shorthand)
		assert.NotNil(t, sub.Flags().Lookup("email"), name)
	}
}

func TestInvalidFormat(t *testing.T) {
	db := tempDB(t)
	_, stderr, code := runCLI(t, db, "--format", "yaml", "whoami")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `invalid format "yaml"`)
}

func TestUnknownCommand(t *testing.T) {
	db := tempDB(t)
	_, stderr, code := runCLI(t, db, "refund")
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stderr, "unknown command")
}

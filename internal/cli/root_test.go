package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/poseconv/internal/config"
)

// execute runs the full command tree against an isolated config path.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	full := append([]string{"--config", filepath.Join(t.TempDir(), "absent.toml")}, args...)
	cmd.SetArgs(full)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "poseconv", cmd.Use)
	assert.Contains(t, cmd.Long, "interchange document")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"export", "fill", "import", "build", "filter", "inspect", "config"}

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
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("log-format"))
}

func TestRequiredOutputFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"export", "fill", "import"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		flag := sub.Flags().Lookup("output")
		require.NotNil(t, flag, name)
		assert.Equal(t, "o", flag.Shorthand)
	}
}

func TestRoot_InvalidFormat(t *testing.T) {
	out, _, err := execute(t, "--format", "yaml", "config", "show")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "invalid format")
}

func TestRoot_MalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "poseconv.toml")
	require.NoError(t, os.WriteFile(path, []byte("[run]\nworkers = \"many\"\n"), 0o644))

	stdout := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", path, "--format", "json", "config", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFIGURATION", resp.Error.Code)
}

func TestConfigShow_Defaults(t *testing.T) {
	out, _, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "# source: built-in defaults")
	assert.Contains(t, out, "box_label = 'Bounding Box'")
}

func TestConfigInit_WritesSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, _, err := execute(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.SampleConfig(), string(data))

	_, _, err = execute(t, "config", "init", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "config", "init", "--force", path)
	require.NoError(t, err)
}

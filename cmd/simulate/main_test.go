package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/scenario-risk/internal/service"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", missing, "--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommandJSON(t *testing.T) {
	csvPath := filepath.Join(t.TempDir(), "launch.csv")
	out, err := execute(t, "run", "../../examples/launch.yaml", "--runs", "2000", "--seed", "11", "--format", "json", "--csv", csvPath)
	require.NoError(t, err)

	var resp service.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 2000, resp.Result.RunCount)
	assert.Equal(t, int64(11), resp.Result.Seed)
	assert.Len(t, resp.Result.Tornado, 3)

	_, err = os.Stat(csvPath)
	assert.NoError(t, err)
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate", "../../examples/portfolio.json")
	require.NoError(t, err)
	assert.Contains(t, out, "Regional portfolio")
	assert.Contains(t, out, "3 variables")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\nruns: 0\nvariables: []\n"), 0o600))
	_, err = execute(t, "validate", bad)
	assert.Error(t, err)
}

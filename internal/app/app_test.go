package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
general:
  interactive: true
targets:
  beta:
    service: fossil
    url: https://fossil.example.org/beta/
  alpha:
    service: fossil
    url: https://fossil.example.org/alpha/
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))
	return path
}

func TestNew_Overrides(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "tasks.db")

	a, err := New(Options{
		ConfigPath:     writeConfig(t),
		DBPath:         dbPath,
		NonInteractive: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	assert.False(t, a.Interactive)
	assert.False(t, a.Deps().Interactive)
	assert.NotNil(t, a.Deps().Secrets)

	s, err := a.Store()
	require.NoError(t, err)
	again, err := a.Store()
	require.NoError(t, err)
	assert.Same(t, s, again)
	assert.FileExists(t, dbPath)
}

func TestApp_Targets(t *testing.T) {
	a, err := New(Options{ConfigPath: writeConfig(t), DBPath: ":memory:"})
	require.NoError(t, err)

	all, err := a.Targets()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)

	picked, err := a.Targets("beta")
	require.NoError(t, err)
	require.Len(t, picked, 1)
	assert.Equal(t, "beta", picked[0].Name)

	_, err = a.Targets("gamma")
	assert.Error(t, err)
}

func TestNew_MissingConfig(t *testing.T) {
	_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestNew_BadLogLevel(t *testing.T) {
	_, err := New(Options{ConfigPath: writeConfig(t), LogLevel: "loud"})
	assert.Error(t, err)
}

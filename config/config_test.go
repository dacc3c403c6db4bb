package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhamidi/decaf/decompiler/class"
)

func TestLoad_DefaultValues(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, class.DefaultOptions(), cfg.Options())
	assert.Equal(t, 0, cfg.Log.Verbosity)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "decaf.yaml")
	content := `
decompiler:
  workers: 2
  method_timeout: 3s
  max_blocks: 100
  use_debug_var_names: false
  remove_bridges: false
log:
  verbosity: 2
  file: /tmp/decaf.log
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile, nil)
	require.NoError(t, err)

	opts := cfg.Options()
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, 3*time.Second, opts.Method.Timeout)
	assert.Equal(t, 100, opts.Method.MaxBlocks)
	assert.False(t, opts.UseDebugVarNames)
	assert.False(t, opts.RemoveBridges)
	assert.True(t, opts.UseMethodParameters)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, "/tmp/decaf.log", cfg.Log.File)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Environment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DECAF_DECOMPILER_WORKERS", "7")
	t.Setenv("DECAF_DECOMPILER_STRIP_NULL_CHECKS", "true")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Decompiler.Workers)
	assert.True(t, cfg.Decompiler.StripNullChecks)
}

func TestLoad_FlagsOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DECAF_DECOMPILER_WORKERS", "7")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--workers", "3", "--keep-bridges", "-vv"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Decompiler.Workers)
	assert.False(t, cfg.Decompiler.RemoveBridges)
	assert.Equal(t, 2, cfg.Log.Verbosity)
	assert.Equal(t, class.DefaultOptions().Method.MaxBlocks, cfg.Decompiler.MaxBlocks)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no workers", "decompiler:\n  workers: 0\n"},
		{"negative timeout", "decompiler:\n  method_timeout: -1s\n"},
		{"no fixpoint budget", "decompiler:\n  max_fixpoint_iterations: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromReader("yaml", []byte(tt.content))
			assert.Error(t, err)
		})
	}
}

// chdir changes the working directory for the duration of the test,
// like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

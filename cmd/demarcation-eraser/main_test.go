package main

import (
	"os"
	"path/filepath"
	"testing"

	"demarcation-eraser/internal/config"
	"demarcation-eraser/internal/demarcation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func parseFlags(t *testing.T, args ...string) (overrides, []string) {
	t.Helper()

	var (
		o    overrides
		sets []string
	)
	cliApp := &cli.App{
		Flags: globalFlags(),
		Action: func(c *cli.Context) error {
			o = overridesFrom(c)
			sets = c.StringSlice("set")
			return nil
		},
	}
	require.NoError(t, cliApp.Run(append([]string{"demarcation-eraser"}, args...)))
	return o, sets
}

func TestFlagsOverrideConfigFile(t *testing.T) {
	path := writeConfig(t, `
algorithm: mask
log_format: json
demarcation:
  blur: true
  blur_kernel: 5
  retrieval: list
`)

	o, _ := parseFlags(t, "--algorithm", "overlay", "--blur=false")
	cfg, err := loadConfig(path, o)
	require.NoError(t, err)

	assert.Equal(t, "overlay", cfg.Algorithm)
	assert.False(t, cfg.Demarcation.Blur)
	assert.Equal(t, "json", cfg.LogFormat, "unset flags keep file values")
	assert.Equal(t, 5, cfg.Demarcation.BlurKernel)
	assert.Equal(t, demarcation.RetrieveList, cfg.Demarcation.Retrieval)
}

func TestUnsetFlagsLeaveDefaults(t *testing.T) {
	o, sets := parseFlags(t)
	assert.Equal(t, overrides{}, o)
	assert.Empty(t, sets)

	cfg, err := loadConfig("", o)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestOverridesAreValidated(t *testing.T) {
	o, _ := parseFlags(t, "--retrieval", "tree")

	_, err := loadConfig("", o)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
	assert.ErrorIs(t, err, demarcation.ErrInvalidParams)
}

func TestInvalidFileFailsBeforeOverrides(t *testing.T) {
	path := writeConfig(t, "demarcation:\n  blur: true\n  blur_kernel: 4\n")
	o, _ := parseFlags(t, "--blur=false")

	_, err := loadConfig(path, o)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), overrides{})
	assert.Error(t, err)
}

func TestSetFlagRepeats(t *testing.T) {
	_, sets := parseFlags(t, "--set", "blur=true", "--set", "blur_kernel=5")
	assert.Equal(t, []string{"blur=true", "blur_kernel=5"}, sets)

	values, err := config.ParseAssignments(sets)
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"blur": true, "blur_kernel": 5}, values)
}

func TestLogLevelPrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.LogLevel = "error"

	t.Setenv("LOG_LEVEL", "warn")
	assert.Equal(t, "debug", logLevel("debug", cfg))
	assert.Equal(t, "warn", logLevel("", cfg))

	t.Setenv("LOG_LEVEL", "")
	assert.Equal(t, "error", logLevel("", cfg))
}

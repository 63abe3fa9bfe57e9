package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	flowerrors "github.com/flowline-dev/flowline/pkg/errors"
)

func writeOptions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flowline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	opts := Defaults()
	require.Equal(t, "info", opts.LogLevel)
	require.True(t, opts.HumanReadable)
	require.Zero(t, opts.MaxParallel)
	require.Zero(t, opts.TimeoutSeconds)
}

func TestLoadValidFile(t *testing.T) {
	path := writeOptions(t, `
log_level: debug
human_readable: false
max_parallel: 4
timeout_seconds: 30
`)

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", opts.LogLevel)
	require.False(t, opts.HumanReadable)
	require.Equal(t, 4, opts.MaxParallel)
	require.Equal(t, 30, opts.TimeoutSeconds)
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	path := writeOptions(t, "max_parallel: 2\n")

	opts, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "info", opts.LogLevel)
	require.True(t, opts.HumanReadable)
	require.Equal(t, 2, opts.MaxParallel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)

	var parseErr *flowerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeOptions(t, "log_level: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)

	var parseErr *flowerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	require.Equal(t, path, parseErr.Path)
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	path := writeOptions(t, "log_level: shouty\n")

	_, err := Load(path)
	require.Error(t, err)

	var validationErr *flowerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "LogLevel", validationErr.Field)
}

func TestValidateRejectsNegativeValues(t *testing.T) {
	opts := Defaults()
	opts.MaxParallel = -1

	err := Validate(&opts)
	require.Error(t, err)

	var validationErr *flowerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestValidateNilOptions(t *testing.T) {
	require.Error(t, Validate(nil))
}

package testutil

import (
	"path/filepath"
	"testing"

	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// RequireValidProject asserts that a project structure is correctly initialized
func RequireValidProject(t *testing.T, fs afero.Fs, projectDir string) {
	t.Helper()

	for _, dir := range []string{"coEDW", "account", filepath.Join("account", "post_deployment")} {
		ok, err := afero.DirExists(fs, filepath.Join(projectDir, dir))
		require.NoError(t, err)
		require.True(t, ok, "%s directory should exist", dir)
	}

	RequireFileExists(t, fs, filepath.Join(projectDir, consts.OrderFile))
	RequireFileExists(t, fs, filepath.Join(projectDir, consts.ConfigFile))

	f, err := fs.Open(filepath.Join(projectDir, consts.ConfigFile))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	_, err = config.LoadConfig(f)
	require.NoError(t, err, "snowkeeper.yaml should be valid")
}

// RequireFileExists asserts that a file exists and optionally checks its content
func RequireFileExists(t *testing.T, fs afero.Fs, path string, checks ...func(content string)) {
	t.Helper()

	content, err := afero.ReadFile(fs, path)
	require.NoError(t, err, "File should exist: %s", path)

	for _, check := range checks {
		check(string(content))
	}
}

// RequireFileContains returns a check function that verifies file contains text
func RequireFileContains(t *testing.T, expected string) func(string) {
	return func(content string) {
		require.Contains(t, content, expected, "File should contain: %s", expected)
	}
}

// RequireFileNotContains returns a check function that verifies file doesn't contain text
func RequireFileNotContains(t *testing.T, unexpected string) func(string) {
	return func(content string) {
		require.NotContains(t, content, unexpected, "File should not contain: %s", unexpected)
	}
}

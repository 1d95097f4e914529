package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rulesync/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestNew(t *testing.T) {
	t.Parallel()

	c := config.New()

	assert.Equal(t, config.APIVersion, c.APIVersion)
	assert.Equal(t, config.KindConfiguration, c.Kind)
	assert.Equal(t, config.DefaultIgnore, c.Ignore)
	assert.Nil(t, c.Notify)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		content string
		check   func(t *testing.T, c *config.Config)
		wantErr bool
	}{
		"full config": {
			content: `apiVersion: rulesync.dev/v1beta1
kind: Configuration
source: https://example.com/rules.git
ignore:
  - .git/
notify:
  command: notify-send
  args: [rulesync, done]
`,
			check: func(t *testing.T, c *config.Config) {
				t.Helper()
				assert.Equal(t, "https://example.com/rules.git", c.Source)
				assert.Equal(t, []string{".git/"}, c.Ignore)
				require.NotNil(t, c.Notify)
				assert.Equal(t, "notify-send", c.Notify.Command)
				assert.Equal(t, []string{"rulesync", "done"}, c.Notify.Args)
			},
		},
		"minimal config gets defaults": {
			content: "apiVersion: rulesync.dev/v1beta1\nkind: Configuration\n",
			check: func(t *testing.T, c *config.Config) {
				t.Helper()
				assert.Equal(t, config.DefaultIgnore, c.Ignore)
				assert.Empty(t, c.Source)
			},
		},
		"wrong apiVersion": {
			content: "apiVersion: rulesync.dev/v2\nkind: Configuration\n",
			wantErr: true,
		},
		"unknown field": {
			content: "apiVersion: rulesync.dev/v1beta1\nkind: Configuration\nbogus: true\n",
			wantErr: true,
		},
		"notify without command": {
			content: "apiVersion: rulesync.dev/v1beta1\nkind: Configuration\nnotify: {}\n",
			wantErr: true,
		},
		"not yaml": {
			content: "{{nope",
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c, err := config.Load(writeConfig(t, tc.content))
			if tc.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			tc.check(t, c)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := config.Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
}

func TestWriteDefault(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, config.WriteDefault(path))

	// The shipped default must itself load cleanly.
	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.APIVersion, c.APIVersion)

	// A second write must not clobber an existing file.
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: rulesync.dev/v1beta1\nkind: Configuration\nsource: mine\n"), 0o600))
	require.NoError(t, config.WriteDefault(path))

	c, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mine", c.Source)
}

//nolint:paralleltest // Mutates environment variables.
func TestGetPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	assert.Equal(t, "/custom/config/rulesync/config.yaml", config.GetPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/test/home")
	assert.Equal(t, "/test/home/.config/rulesync/config.yaml", config.GetPath())
}

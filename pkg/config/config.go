// Package config loads the user-level rulesync configuration.
package config

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/invopop/jsonschema"

	_ "embed"
)

//go:generate go run ../../internal/schemagen -o config.v1beta1.json

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed config.v1beta1.json
	schemaJSON []byte

	// DefaultValidator validates configuration data against the JSON schema.
	DefaultValidator = MustNewValidator(schemaJSON)

	// DefaultIgnore is applied when the config sets no ignore patterns.
	DefaultIgnore = []string{".git/", "README.md", "LICENSE"}
)

const (
	// APIVersion is the accepted apiVersion value.
	APIVersion = "rulesync.dev/v1beta1"
	// KindConfiguration is the accepted kind value.
	KindConfiguration = "Configuration"
)

//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Notify configures an optional command to run after a successful sync.
	Notify *Notify `json:"notify,omitempty" jsonschema:"title=Notify"`
	// APIVersion specifies the API version for this configuration.
	APIVersion string `json:"apiVersion" jsonschema:"title=API Version"`
	// Kind defines the type of configuration.
	Kind string `json:"kind" jsonschema:"title=Kind"`
	// Source is the default rule source, a directory path or a git URL.
	Source string `json:"source,omitempty" jsonschema:"title=Source"`
	// Ignore lists gitignore-style patterns excluded from the source tree.
	Ignore []string `json:"ignore,omitempty" jsonschema:"title=Ignore Patterns"`
}

// Notify is the post-sync notification command, the successor of the
// original tool's sound hook. Failures are logged, never fatal.
type Notify struct {
	// Command is the executable to run.
	Command string `json:"command" jsonschema:"title=Command"`
	// Args contains the command line arguments.
	Args []string `json:"args,omitempty" jsonschema:"title=Arguments" yaml:"args,flow,omitempty"`
}

// New creates a [Config] with default values.
func New() *Config {
	c := &Config{
		APIVersion: APIVersion,
		Kind:       KindConfiguration,
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if len(c.Ignore) == 0 {
		c.Ignore = append([]string{}, DefaultIgnore...)
	}
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	for field, value := range map[string]string{
		"apiVersion": APIVersion,
		"kind":       KindConfiguration,
	} {
		prop, ok := jss.Properties.Get(field)
		if !ok {
			panic(field + " property not found in schema")
		}

		prop.Const = value
		_, _ = jss.Properties.Set(field, prop)
	}
}

// Load reads, validates, and decodes the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: Potential file inclusion via variable.
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw any

	err = yaml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	err = DefaultValidator.Validate(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	c := &Config{}

	err = yaml.NewDecoder(bytes.NewReader(data)).Decode(c)
	if err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	c.EnsureDefaults()

	return c, nil
}

// WriteDefault writes the default configuration to path unless a file
// already exists there.
func WriteDefault(path string) error {
	pathInfo, err := os.Stat(path)
	if pathInfo != nil {
		if err == nil && pathInfo.Mode().IsRegular() {
			return nil // Config already exists.
		}
		if pathInfo.IsDir() {
			return fmt.Errorf("%s: path is a directory", path)
		}

		return fmt.Errorf("%s: unknown file state", path)
	}

	err = os.MkdirAll(filepath.Dir(path), 0o700)
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	slog.Debug("write default configuration", slog.String("path", path))

	err = os.WriteFile(path, defaultConfigYAML, 0o600)
	if err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Dir returns the user-wide rulesync directory. It checks $XDG_CONFIG_HOME
// first, then falls back to ~/.config, and finally to a temp directory.
func Dir() string {
	if xdgHome, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdgHome != "" {
		return filepath.Join(xdgHome, "rulesync")
	}

	usrHome, err := os.UserHomeDir()
	if err == nil && usrHome != "" {
		return filepath.Join(usrHome, ".config", "rulesync")
	}

	tmpDir := filepath.Join(os.TempDir(), "rulesync")

	slog.Warn("could not determine user config directory, using temp path",
		slog.String("path", tmpDir),
		slog.Any("error", fmt.Errorf("$XDG_CONFIG_HOME is unset, fall back to home directory: %w", err)),
	)

	return tmpDir
}

// GetPath returns the path to the configuration file.
func GetPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

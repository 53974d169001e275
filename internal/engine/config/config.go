// Package config handles the environment and file based configuration of the
// harness: daemon endpoint resolution, the post-test resource policy, and the
// optional project-level defaults file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Command controls what happens to harness-created resources after the test
// process is done with them.
type Command string

const (
	CommandRemove Command = "remove"
	CommandKeep   Command = "keep"
)

const (
	propertiesFile = ".testcontainers.properties"
	settingsFile   = "drydock.yaml"

	envDockerHost = "DOCKER_HOST"
	envCommand    = "TESTCONTAINERS_COMMAND"
)

// Duration decodes Go duration strings ("90s", "2m") from yaml.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Settings is the optional project-level defaults file (drydock.yaml),
// looked up in the working directory.
type Settings struct {
	WatchdogDisabled bool     `yaml:"watchdog_disabled"`
	StartupTimeout   Duration `yaml:"startup_timeout"`
	PullPolicy       string   `yaml:"pull_policy"`
	Sidecar          struct {
		Image string `yaml:"image"`
		Tag   string `yaml:"tag"`
	} `yaml:"sidecar"`
}

// Config is the fully resolved harness configuration.
type Config struct {
	// Host is the daemon endpoint to dial.
	Host string
	// Command is the post-test resource policy.
	Command Command
	// Settings holds the project-level defaults, zero-valued when absent.
	Settings Settings
}

// Load resolves the harness configuration.
//
// The daemon host is chosen with the precedence
// tc.host > DOCKER_HOST > docker.host > platform default socket,
// where tc.host and docker.host come from ~/.testcontainers.properties
// (plain key=value lines).
func Load() (*Config, error) {
	props := loadProperties()

	cfg := &Config{
		Host:    resolveHost(props),
		Command: CommandRemove,
	}

	switch cmd := os.Getenv(envCommand); cmd {
	case "", string(CommandRemove):
	case string(CommandKeep):
		cfg.Command = CommandKeep
	default:
		return nil, fmt.Errorf("unknown command %q provided via %s", cmd, envCommand)
	}

	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	cfg.Settings = settings

	return cfg, nil
}

func resolveHost(props map[string]string) string {
	if host := props["tc.host"]; host != "" {
		return host
	}
	if host := os.Getenv(envDockerHost); host != "" {
		return host
	}
	if host := props["docker.host"]; host != "" {
		return host
	}
	return defaultSocket()
}

func defaultSocket() string {
	if runtime.GOOS == "windows" {
		return "npipe:////./pipe/docker_engine"
	}
	return "unix:///var/run/docker.sock"
}

// loadProperties reads ~/.testcontainers.properties. A missing or unreadable
// file is not an error, it simply contributes nothing.
func loadProperties() map[string]string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	props, err := godotenv.Read(filepath.Join(home, propertiesFile))
	if err != nil {
		return nil
	}
	return props
}

func loadSettings() (Settings, error) {
	var settings Settings

	data, err := os.ReadFile(settingsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return settings, fmt.Errorf("reading %s: %w", settingsFile, err)
	}

	if err := yaml.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("parsing %s: %w", settingsFile, err)
	}
	return settings, nil
}

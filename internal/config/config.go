// Package config loads process configuration from environment variables and
// the society definition from a YAML file. YAML values support environment
// variable substitution via ${VAR} or $VAR syntax.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Anthropic API
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-5"`
	LLMMaxTokens    int    `envconfig:"LLM_MAX_TOKENS" default:"4096"`

	// Storage
	ArchiveDSN   string `envconfig:"ARCHIVE_DSN" default:"file:colony.db?cache=shared&_journal=WAL&_timeout=5000"`
	WorkspaceDSN string `envconfig:"WORKSPACE_DSN" default:"file:workspace.db?cache=shared&_journal=WAL&_timeout=5000"`

	// Run loop
	SocietyPath string `envconfig:"SOCIETY_PATH" default:"society.yaml"`
	MaxParallel int    `envconfig:"MAX_PARALLEL" default:"4"`
	Rounds      int    `envconfig:"ROUNDS" default:"8"`

	// Management API
	MgmtListenAddr string `envconfig:"MGMT_LISTEN_ADDR" default:":8090"`

	// Metrics
	MetricsListenAddr string `envconfig:"METRICS_LISTEN_ADDR" default:":9090"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

// SlogLevel maps the configured log level onto slog.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Society is the top-level structure of the society YAML file: the roles to
// attach and the requirement to kick the first round off with.
type Society struct {
	// Requirement seeds the bus before the first round.
	Requirement string `yaml:"requirement"`

	// Rounds caps how many passes the run loop makes. 0 uses the
	// process-level default.
	Rounds int `yaml:"rounds"`

	// Roles defined in config, attached in order.
	Roles []RoleConfig `yaml:"roles"`
}

// RoleConfig describes a statically-configured role.
type RoleConfig struct {
	Name        string `yaml:"name"`
	Profile     string `yaml:"profile"`
	Goal        string `yaml:"goal"`
	Constraints string `yaml:"constraints"`

	// Kind selects the role wiring: "responder", "writer", "coach" or
	// "bdi". Defaults to "responder".
	Kind string `yaml:"kind"`

	// Watch lists the action kinds the role observes. Empty uses the
	// default watch set for the role's kind.
	Watch []string `yaml:"watch"`

	// Artifacts are the workspace keys a "writer" role produces.
	Artifacts []string `yaml:"artifacts"`
}

// LoadSociety reads and parses a society YAML file, expanding env vars.
func LoadSociety(path string) (*Society, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return LoadSocietyBytes(raw)
}

// LoadSocietyBytes parses a society YAML from bytes (useful for testing).
func LoadSocietyBytes(data []byte) (*Society, error) {
	expanded := expandEnvVars(string(data))
	var s Society
	if err := yaml.Unmarshal([]byte(expanded), &s); err != nil {
		return nil, fmt.Errorf("config: parse society: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Society) validate() error {
	if len(s.Roles) == 0 {
		return fmt.Errorf("config: society defines no roles")
	}
	seen := make(map[string]struct{}, len(s.Roles))
	for i := range s.Roles {
		rc := &s.Roles[i]
		if rc.Profile == "" {
			return fmt.Errorf("config: role %d: profile is required", i)
		}
		if _, dup := seen[rc.Profile]; dup {
			return fmt.Errorf("config: duplicate role profile %q", rc.Profile)
		}
		seen[rc.Profile] = struct{}{}
		if rc.Name == "" {
			rc.Name = rc.Profile
		}
		if rc.Kind == "" {
			rc.Kind = "responder"
		}
	}
	return nil
}

// envVarPattern matches ${VAR_NAME} and $VAR_NAME.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the corresponding environment
// variable value. Missing vars are replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}

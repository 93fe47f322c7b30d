package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/prguard/internal/apperr"
)

// ProjectFile is the per-repository config file looked up in the working
// directory.
const ProjectFile = ".prguard.yaml"

// Config represents the prguard configuration.
type Config struct {
	Safety   SafetyConfig  `yaml:"safety"`
	Budget   BudgetConfig  `yaml:"budget"`
	GitHub   GitHubConfig  `yaml:"github"`
	Privacy  PrivacyConfig `yaml:"privacy"`
	Include  []string      `yaml:"include"`
	Exclude  []string      `yaml:"exclude"`
	Format   string        `yaml:"format"`
	LogLevel string        `yaml:"log_level"`
	Comment  bool          `yaml:"comment"`
}

// SafetyConfig locates and authenticates the safety service.
type SafetyConfig struct {
	Endpoint       string `yaml:"endpoint"`
	DeploymentID   string `yaml:"deployment_id"`
	APIKey         string `yaml:"api_key,omitempty"`
	APIVersion     string `yaml:"api_version,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryAttempts  int    `yaml:"retry_attempts"`
}

// BudgetConfig sizes the batches sent to the safety service.
type BudgetConfig struct {
	MaxTokens       int    `yaml:"max_tokens"`
	SafetyMargin    int    `yaml:"safety_margin"`
	Encoding        string `yaml:"encoding"`
	MaxContentBytes int    `yaml:"max_content_bytes"`
}

// GitHubConfig controls access to the GitHub API.
type GitHubConfig struct {
	APIURL string `yaml:"api_url"`
	Token  string `yaml:"token,omitempty"`
}

// PrivacyConfig controls redaction before content leaves the machine.
type PrivacyConfig struct {
	RedactSecrets bool     `yaml:"redact_secrets"`
	RedactPaths   []string `yaml:"redact_paths,omitempty"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Safety: SafetyConfig{
			TimeoutSeconds: 120,
			RetryAttempts:  3,
		},
		Budget: BudgetConfig{
			MaxTokens:       8192,
			SafetyMargin:    200,
			Encoding:        "cl100k_base",
			MaxContentBytes: 100000,
		},
		GitHub: GitHubConfig{
			APIURL: "https://api.github.com",
		},
		Privacy: PrivacyConfig{
			RedactSecrets: true,
			RedactPaths:   []string{"**/.env", "**/*secrets*"},
		},
		Include:  []string{"**/*"},
		Exclude:  []string{"vendor/**", "**/dist/**"},
		Format:   "text",
		LogLevel: "info",
		Comment:  true,
	}
}

// ConfigDir returns the platform-appropriate config directory for prguard.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "prguard"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "prguard"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "prguard"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "prguard"), nil
	default:
		return filepath.Join(home, ".config", "prguard"), nil
	}
}

// ConfigPath returns the full path to the user config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// LoadFile decodes the YAML file at path on top of cfg. Keys absent from the
// file keep their current values. A missing file is not an error; found
// reports whether it existed.
func LoadFile(path string, cfg *Config) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return true, apperr.Configf("config", "parsing %s: %v", path, err)
	}
	return true, nil
}

// Save writes the config to the user config file. Secrets are not written.
func Save(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(path, cfg)
}

// SaveFile writes cfg to path as YAML, without the API key and token.
func SaveFile(path string, cfg Config) error {
	cfg.Safety.APIKey = ""
	cfg.GitHub.Token = ""
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return buf.Bytes(), nil
}

// Load builds the effective config by merging:
// defaults <- user file <- project file <- env <- overrides.
//
// path names an explicit project file and must exist when set; when empty,
// ProjectFile in the working directory is used if present. Override keys are
// the dotted keys accepted by SetField; empty values are ignored.
func Load(path string, overrides map[string]string) (Config, error) {
	cfg := Default()

	userPath, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	if _, err := LoadFile(userPath, &cfg); err != nil {
		return Config{}, err
	}

	if path != "" {
		found, err := LoadFile(path, &cfg)
		if err != nil {
			return Config{}, err
		}
		if !found {
			return Config{}, apperr.Configf("config", "config file %s not found", path)
		}
	} else if _, err := LoadFile(ProjectFile, &cfg); err != nil {
		return Config{}, err
	}

	if err := mergeEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := mergeOverrides(&cfg, overrides); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// envKeys maps environment variables to config keys. Later entries win, so
// PRGUARD_* variables override the Actions INPUT_* ones.
var envKeys = []struct {
	env string
	key string
}{
	{"INPUT_ENDPOINT", "safety.endpoint"},
	{"INPUT_DEPLOYMENT_ID", "safety.deployment_id"},
	{"INPUT_API_KEY", "safety.api_key"},
	{"INPUT_MAX_TOKENS", "budget.max_tokens"},
	{"INPUT_API_ENDPOINT", "github.api_url"},
	{"INPUT_GITHUB_TOKEN", "github.token"},
	{"GITHUB_API_URL", "github.api_url"},
	{"GITHUB_TOKEN", "github.token"},
	{"PRGUARD_ENDPOINT", "safety.endpoint"},
	{"PRGUARD_DEPLOYMENT_ID", "safety.deployment_id"},
	{"PRGUARD_API_KEY", "safety.api_key"},
	{"PRGUARD_API_VERSION", "safety.api_version"},
	{"PRGUARD_MAX_TOKENS", "budget.max_tokens"},
	{"PRGUARD_FORMAT", "format"},
	{"PRGUARD_LOG_LEVEL", "log_level"},
}

func mergeEnv(cfg *Config) error {
	for _, e := range envKeys {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		if err := SetField(cfg, e.key, v); err != nil {
			return apperr.Configf("config", "%s: %v", e.env, err)
		}
	}
	return nil
}

func mergeOverrides(cfg *Config, overrides map[string]string) error {
	keys := make([]string, 0, len(overrides))
	for k, v := range overrides {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := SetField(cfg, k, overrides[k]); err != nil {
			return apperr.Configf("config", "%v", err)
		}
	}
	return nil
}

// Keys lists the keys accepted by SetField.
func Keys() []string {
	return []string{
		"safety.endpoint", "safety.deployment_id", "safety.api_key", "safety.api_version",
		"safety.timeout_seconds", "safety.retry_attempts",
		"budget.max_tokens", "budget.safety_margin", "budget.encoding", "budget.max_content_bytes",
		"github.api_url", "github.token",
		"privacy.redact_secrets",
		"format", "log_level", "comment",
	}
}

// SetField sets a single config field by key name. Returns error if key is unknown.
func SetField(cfg *Config, key, value string) error {
	switch key {
	case "safety.endpoint":
		cfg.Safety.Endpoint = value
	case "safety.deployment_id":
		cfg.Safety.DeploymentID = value
	case "safety.api_key":
		cfg.Safety.APIKey = value
	case "safety.api_version":
		cfg.Safety.APIVersion = value
	case "safety.timeout_seconds":
		return setInt(&cfg.Safety.TimeoutSeconds, key, value)
	case "safety.retry_attempts":
		return setInt(&cfg.Safety.RetryAttempts, key, value)
	case "budget.max_tokens":
		return setInt(&cfg.Budget.MaxTokens, key, value)
	case "budget.safety_margin":
		return setInt(&cfg.Budget.SafetyMargin, key, value)
	case "budget.encoding":
		cfg.Budget.Encoding = value
	case "budget.max_content_bytes":
		return setInt(&cfg.Budget.MaxContentBytes, key, value)
	case "github.api_url":
		cfg.GitHub.APIURL = value
	case "github.token":
		cfg.GitHub.Token = value
	case "privacy.redact_secrets":
		return setBool(&cfg.Privacy.RedactSecrets, key, value)
	case "format":
		cfg.Format = value
	case "log_level":
		cfg.LogLevel = value
	case "comment":
		return setBool(&cfg.Comment, key, value)
	default:
		return fmt.Errorf("unknown config key: %s", key)
	}
	return nil
}

func setInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be an integer: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("%s must be true or false: %w", key, err)
	}
	*dst = b
	return nil
}

// ValidateLocal checks the settings needed to plan batches without calling
// the safety service.
func (c Config) ValidateLocal() error {
	if c.Budget.MaxTokens <= 0 {
		return apperr.Configf("config", "budget.max_tokens must be positive, got %d", c.Budget.MaxTokens)
	}
	if c.Budget.SafetyMargin < 0 {
		return apperr.Configf("config", "budget.safety_margin must not be negative, got %d", c.Budget.SafetyMargin)
	}
	if c.Budget.Encoding == "" {
		return apperr.Configf("config", "budget.encoding is not set")
	}
	switch c.Format {
	case "text", "json", "markdown":
	default:
		return apperr.Configf("config", "unknown format %q (want text, json or markdown)", c.Format)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return apperr.Configf("config", "unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Validate checks everything ValidateLocal does plus the safety service
// credentials.
func (c Config) Validate() error {
	if err := c.ValidateLocal(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Safety.APIKey) == "" {
		return apperr.Configf("config", "safety API key is not set (PRGUARD_API_KEY or INPUT_API_KEY)")
	}
	if strings.TrimSpace(c.Safety.DeploymentID) == "" {
		return apperr.Configf("config", "safety.deployment_id is not set (PRGUARD_DEPLOYMENT_ID or INPUT_DEPLOYMENT_ID)")
	}
	if strings.TrimSpace(c.Safety.Endpoint) == "" {
		return apperr.Configf("config", "safety.endpoint is not set (PRGUARD_ENDPOINT or INPUT_ENDPOINT)")
	}
	return nil
}

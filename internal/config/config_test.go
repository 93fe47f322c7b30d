package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/prguard/internal/apperr"
)

// isolate points the user config at a temp dir, moves into an empty working
// directory and clears every variable mergeEnv reads.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, e := range envKeys {
		t.Setenv(e.env, "")
	}
	work := filepath.Join(dir, "work")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(work)
	return work
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Format != "text" {
		t.Errorf("Default format = %q, want %q", cfg.Format, "text")
	}
	if cfg.Budget.SafetyMargin != 200 {
		t.Errorf("Default safety margin = %d, want 200", cfg.Budget.SafetyMargin)
	}
	if cfg.Budget.Encoding != "cl100k_base" {
		t.Errorf("Default encoding = %q", cfg.Budget.Encoding)
	}
	if cfg.Budget.MaxContentBytes != 100000 {
		t.Errorf("Default max content bytes = %d, want 100000", cfg.Budget.MaxContentBytes)
	}
	if cfg.GitHub.APIURL != "https://api.github.com" {
		t.Errorf("Default GitHub API URL = %q", cfg.GitHub.APIURL)
	}
	if !cfg.Privacy.RedactSecrets || !cfg.Comment {
		t.Error("redact_secrets and comment should default to true")
	}
	if err := cfg.ValidateLocal(); err != nil {
		t.Errorf("defaults should pass ValidateLocal: %v", err)
	}
}

func TestMergeEnv(t *testing.T) {
	isolate(t)
	t.Setenv("PRGUARD_API_KEY", "key-1")
	t.Setenv("PRGUARD_DEPLOYMENT_ID", "dep-1")
	t.Setenv("PRGUARD_ENDPOINT", "https://safety.example/check")
	t.Setenv("PRGUARD_MAX_TOKENS", "4000")
	t.Setenv("PRGUARD_FORMAT", "json")
	t.Setenv("GITHUB_TOKEN", "gh-1")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.Safety.APIKey != "key-1" || cfg.Safety.DeploymentID != "dep-1" {
		t.Errorf("safety = %+v", cfg.Safety)
	}
	if cfg.Safety.Endpoint != "https://safety.example/check" {
		t.Errorf("Endpoint = %q", cfg.Safety.Endpoint)
	}
	if cfg.Budget.MaxTokens != 4000 {
		t.Errorf("MaxTokens = %d, want 4000", cfg.Budget.MaxTokens)
	}
	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if cfg.GitHub.Token != "gh-1" {
		t.Errorf("Token = %q", cfg.GitHub.Token)
	}
}

func TestMergeEnv_ActionsInputs(t *testing.T) {
	isolate(t)
	t.Setenv("INPUT_API_KEY", "input-key")
	t.Setenv("INPUT_DEPLOYMENT_ID", "input-dep")
	t.Setenv("INPUT_API_ENDPOINT", "https://ghe.example/api/v3")
	t.Setenv("INPUT_GITHUB_TOKEN", "input-token")
	t.Setenv("INPUT_MAX_TOKENS", "3000")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.Safety.APIKey != "input-key" || cfg.Safety.DeploymentID != "input-dep" {
		t.Errorf("safety = %+v", cfg.Safety)
	}
	if cfg.GitHub.APIURL != "https://ghe.example/api/v3" || cfg.GitHub.Token != "input-token" {
		t.Errorf("github = %+v", cfg.GitHub)
	}
	if cfg.Budget.MaxTokens != 3000 {
		t.Errorf("MaxTokens = %d", cfg.Budget.MaxTokens)
	}
}

func TestMergeEnv_PrguardBeatsInput(t *testing.T) {
	isolate(t)
	t.Setenv("INPUT_API_KEY", "input-key")
	t.Setenv("PRGUARD_API_KEY", "prguard-key")

	cfg := Default()
	if err := mergeEnv(&cfg); err != nil {
		t.Fatalf("mergeEnv error: %v", err)
	}
	if cfg.Safety.APIKey != "prguard-key" {
		t.Errorf("APIKey = %q, want prguard-key", cfg.Safety.APIKey)
	}
}

func TestMergeEnv_BadInteger(t *testing.T) {
	isolate(t)
	t.Setenv("PRGUARD_MAX_TOKENS", "lots")
	cfg := Default()
	err := mergeEnv(&cfg)
	if !apperr.IsConfig(err) {
		t.Fatalf("err = %v, want configuration error", err)
	}
	if !strings.Contains(err.Error(), "PRGUARD_MAX_TOKENS") {
		t.Errorf("error should name the variable: %v", err)
	}
}

func TestMergeOverrides(t *testing.T) {
	cfg := Default()
	err := mergeOverrides(&cfg, map[string]string{
		"format":            "markdown",
		"budget.max_tokens": "2048",
		"log_level":         "",
	})
	if err != nil {
		t.Fatalf("mergeOverrides: %v", err)
	}
	if cfg.Format != "markdown" || cfg.Budget.MaxTokens != 2048 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("empty override should be ignored, LogLevel = %q", cfg.LogLevel)
	}

	if err := mergeOverrides(&cfg, map[string]string{"nope": "x"}); !apperr.IsConfig(err) {
		t.Errorf("unknown key err = %v", err)
	}
}

func TestSetField(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
		check   func(Config) bool
	}{
		{"safety.endpoint", "https://x", false, func(c Config) bool { return c.Safety.Endpoint == "https://x" }},
		{"safety.retry_attempts", "5", false, func(c Config) bool { return c.Safety.RetryAttempts == 5 }},
		{"budget.safety_margin", "50", false, func(c Config) bool { return c.Budget.SafetyMargin == 50 }},
		{"budget.encoding", "o200k_base", false, func(c Config) bool { return c.Budget.Encoding == "o200k_base" }},
		{"privacy.redact_secrets", "false", false, func(c Config) bool { return !c.Privacy.RedactSecrets }},
		{"comment", "false", false, func(c Config) bool { return !c.Comment }},
		{"budget.max_tokens", "abc", true, nil},
		{"comment", "maybe", true, nil},
		{"unknown", "x", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := Default()
			err := SetField(&cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("SetField error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("field not set: %+v", cfg)
			}
		})
	}
}

func TestKeys_AllSettable(t *testing.T) {
	for _, k := range Keys() {
		cfg := Default()
		value := "1"
		if k == "privacy.redact_secrets" || k == "comment" {
			value = "true"
		}
		if err := SetField(&cfg, k, value); err != nil {
			t.Errorf("SetField(%s): %v", k, err)
		}
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := Default()
		cfg.Safety.APIKey = "k"
		cfg.Safety.DeploymentID = "d"
		cfg.Safety.Endpoint = "https://e"
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ok", func(*Config) {}, ""},
		{"no key", func(c *Config) { c.Safety.APIKey = " " }, "API key"},
		{"no deployment", func(c *Config) { c.Safety.DeploymentID = "" }, "deployment_id"},
		{"no endpoint", func(c *Config) { c.Safety.Endpoint = "" }, "endpoint"},
		{"zero budget", func(c *Config) { c.Budget.MaxTokens = 0 }, "max_tokens"},
		{"negative margin", func(c *Config) { c.Budget.SafetyMargin = -1 }, "safety_margin"},
		{"bad format", func(c *Config) { c.Format = "xml" }, "format"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !apperr.IsConfig(err) || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want configuration error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestValidateLocal_IgnoresCredentials(t *testing.T) {
	if err := Default().ValidateLocal(); err != nil {
		t.Errorf("ValidateLocal: %v", err)
	}
	if err := Default().Validate(); !apperr.IsConfig(err) {
		t.Errorf("Validate without credentials = %v, want configuration error", err)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Safety.Endpoint = "https://safety.example"
	cfg.Safety.APIKey = "secret"
	cfg.Budget.MaxTokens = 5000
	cfg.Comment = false

	if err := Save(cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("saved file must not contain the API key")
	}

	loaded := Default()
	found, err := LoadFile(path, &loaded)
	if err != nil || !found {
		t.Fatalf("LoadFile found=%v err=%v", found, err)
	}
	if loaded.Safety.Endpoint != "https://safety.example" || loaded.Budget.MaxTokens != 5000 {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.Comment {
		t.Error("explicit false should survive a round trip")
	}
}

func TestLoadFile_NoFile(t *testing.T) {
	cfg := Default()
	found, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg)
	if err != nil || found {
		t.Fatalf("found=%v err=%v", found, err)
	}
	if cfg.Format != "text" {
		t.Errorf("missing file should leave cfg untouched")
	}
}

func TestLoadFile_PartialKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.yaml")
	if err := os.WriteFile(path, []byte("budget:\n  max_tokens: 1234\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if _, err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Budget.MaxTokens != 1234 {
		t.Errorf("MaxTokens = %d", cfg.Budget.MaxTokens)
	}
	if cfg.Budget.SafetyMargin != 200 || !cfg.Privacy.RedactSecrets {
		t.Errorf("unset keys should keep defaults: %+v", cfg)
	}
}

func TestLoadFile_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("budgett:\n  max_tokens: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := Default()
	if _, err := LoadFile(path, &cfg); !apperr.IsConfig(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

func TestLoad_Integration(t *testing.T) {
	work := isolate(t)
	project := "safety:\n  endpoint: https://project.example\n  deployment_id: proj\nformat: json\n"
	if err := os.WriteFile(filepath.Join(work, ProjectFile), []byte(project), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PRGUARD_DEPLOYMENT_ID", "env-dep")

	cfg, err := Load("", map[string]string{"format": "markdown"})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Safety.Endpoint != "https://project.example" {
		t.Errorf("Endpoint = %q, want project value", cfg.Safety.Endpoint)
	}
	if cfg.Safety.DeploymentID != "env-dep" {
		t.Errorf("DeploymentID = %q, env should beat file", cfg.Safety.DeploymentID)
	}
	if cfg.Format != "markdown" {
		t.Errorf("Format = %q, flag should beat file", cfg.Format)
	}
	if cfg.Budget.MaxTokens != 8192 {
		t.Errorf("MaxTokens = %d, want default", cfg.Budget.MaxTokens)
	}
}

func TestLoad_ExplicitPathMissing(t *testing.T) {
	isolate(t)
	_, err := Load("does-not-exist.yaml", nil)
	if !apperr.IsConfig(err) {
		t.Errorf("err = %v, want configuration error", err)
	}
}

package config

import (
	"crypto/x509"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
)

// Scan failure policies
const (
	PolicyIsolate  = "isolate"
	PolicyFailFast = "fail-fast"
)

// Config holds application configuration
type Config struct {
	GitLab   GitLabConfig `yaml:"gitlab"`
	Server   ServerConfig `yaml:"server"`
	Scan     ScanConfig   `yaml:"scan"`
	Export   ExportConfig `yaml:"export"`
	LogLevel string       `yaml:"log_level"`

	envErrors []envError
}

// envError records an environment variable whose value could not be parsed
type envError struct {
	field   string
	key     string
	value   string
	message string
}

// GitLabConfig holds GitLab API configuration
type GitLabConfig struct {
	BaseURL     string `yaml:"base_url"`
	Token       string `yaml:"token"`
	GroupID     string `yaml:"group_id"`
	InsecureTLS bool   `yaml:"insecure_tls"` // Skip TLS certificate verification
	CACertPath  string `yaml:"ca_cert_path"` // Extra CA bundle for self-hosted instances
}

// ServerConfig holds webhook server configuration
type ServerConfig struct {
	Port string `yaml:"port"`
}

// ScanConfig holds settings for the merged-MR scan
type ScanConfig struct {
	Policy      string        `yaml:"policy"`      // isolate or fail-fast
	Concurrency int           `yaml:"concurrency"` // 0 = one in-flight request per project
	Timeout     time.Duration `yaml:"timeout"`     // 0 = no deadline
	Schedule    string        `yaml:"schedule"`    // cron expression; empty = scan once
}

// ExportConfig holds settings for the LDAP mapping export
type ExportConfig struct {
	OutputPath  string `yaml:"output_path"`
	AccessNames bool   `yaml:"access_names"`
}

// Default returns a Config with defaults and no environment applied
func Default() *Config {
	return &Config{
		GitLab: GitLabConfig{
			BaseURL: "https://gitlab.com",
		},
		Server: ServerConfig{
			Port: "3000",
		},
		Scan: ScanConfig{
			Policy: PolicyIsolate,
		},
		Export: ExportConfig{
			OutputPath: "gitlab_group_ldap_mappings.csv",
		},
		LogLevel: "info",
	}
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML config file and then applies environment overrides.
// An empty path behaves like Load.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overlays every environment variable that is set. CI_* names are the
// predefined variables of a GitLab CI job and act as fallbacks.
func (c *Config) applyEnv() {
	c.GitLab.BaseURL = getEnv(c.GitLab.BaseURL, "GITLAB_BASE_URL", "CI_SERVER_URL")
	c.GitLab.Token = getEnv(c.GitLab.Token, "GITLAB_TOKEN", "CI_JOB_TOKEN")
	c.GitLab.GroupID = getEnv(c.GitLab.GroupID, "GITLAB_GROUP_ID", "CI_PROJECT_NAMESPACE")
	c.GitLab.InsecureTLS = c.getEnvBool("gitlab.insecure_tls", "GITLAB_INSECURE_TLS", c.GitLab.InsecureTLS)
	c.GitLab.CACertPath = getEnv(c.GitLab.CACertPath, "GITLAB_CA_CERT_PATH")

	c.Server.Port = getEnv(c.Server.Port, "PORT")

	c.Scan.Policy = strings.ToLower(getEnv(c.Scan.Policy, "SCAN_POLICY"))
	c.Scan.Concurrency = c.getEnvInt("scan.concurrency", "SCAN_CONCURRENCY", c.Scan.Concurrency)
	c.Scan.Timeout = c.getEnvDuration("scan.timeout", "SCAN_TIMEOUT", c.Scan.Timeout)
	c.Scan.Schedule = getEnv(c.Scan.Schedule, "SCAN_SCHEDULE")

	c.Export.OutputPath = getEnv(c.Export.OutputPath, "LDAP_EXPORT_PATH")

	c.LogLevel = getEnv(c.LogLevel, "LOG_LEVEL")
}

// HasGitLabToken returns true if GitLab token is configured
func (c *Config) HasGitLabToken() bool {
	return c.GitLab.Token != ""
}

// ValidateAPI checks the settings every GitLab call needs
func (c *Config) ValidateAPI() error {
	v := c.apiValidator()
	return toConfigError(v)
}

// ValidateScan checks the settings the merged-MR scan needs
func (c *Config) ValidateScan() error {
	v := c.apiValidator()
	v.RequiredField("gitlab.group_id", c.GitLab.GroupID)
	v.ValidateEnum("scan.policy", c.Scan.Policy, []string{PolicyIsolate, PolicyFailFast})
	v.ValidateNonNegative("scan.concurrency", c.Scan.Concurrency)
	if c.Scan.Timeout < 0 {
		v.AddError("scan.timeout", "non_negative", "Must not be negative", c.Scan.Timeout)
	}
	if c.Scan.Schedule != "" {
		if _, err := cron.ParseStandard(c.Scan.Schedule); err != nil {
			v.AddError("scan.schedule", "cron", "Must be a standard cron expression", c.Scan.Schedule)
		}
	}
	return toConfigError(v)
}

// ValidateServer checks the settings the webhook server needs. A missing token
// is tolerated here; the server reports itself not ready instead.
func (c *Config) ValidateServer() error {
	v := c.newValidator()
	v.RequiredField("gitlab.base_url", c.GitLab.BaseURL)
	v.ValidateURL("gitlab.base_url", c.GitLab.BaseURL)
	v.RequiredField("server.port", c.Server.Port)
	if c.Server.Port != "" {
		if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
			v.AddError("server.port", "port_range", "Must be a port number between 1 and 65535", c.Server.Port)
		}
	}
	return toConfigError(v)
}

func (c *Config) apiValidator() *apperrors.Validator {
	v := c.newValidator()
	v.RequiredField("gitlab.base_url", c.GitLab.BaseURL)
	v.ValidateURL("gitlab.base_url", c.GitLab.BaseURL)
	v.RequiredField("gitlab.token", c.GitLab.Token)
	return v
}

// newValidator starts validation with every unparsable environment value and
// the CA bundle check, so both fail before any GitLab call is made.
func (c *Config) newValidator() *apperrors.Validator {
	v := apperrors.NewValidator()
	for _, e := range c.envErrors {
		v.AddError(e.field, "env_format", fmt.Sprintf("%s=%q %s", e.key, e.value, e.message), e.value)
	}
	if c.GitLab.CACertPath != "" {
		pem, err := os.ReadFile(c.GitLab.CACertPath)
		switch {
		case err != nil:
			v.AddError("gitlab.ca_cert_path", "readable", "Must be a readable file", c.GitLab.CACertPath)
		case !x509.NewCertPool().AppendCertsFromPEM(pem):
			v.AddError("gitlab.ca_cert_path", "pem", "Must contain at least one PEM certificate", c.GitLab.CACertPath)
		}
	}
	return v
}

func toConfigError(v *apperrors.Validator) error {
	if appErr := v.ToAppErrorWithCode(apperrors.ErrConfigurationError, "Invalid configuration"); appErr != nil {
		return appErr
	}
	return nil
}

// getEnv returns the first non-empty variable among keys, or defaultValue
func getEnv(defaultValue string, keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return defaultValue
}

func (c *Config) getEnvBool(field, key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		c.envErrors = append(c.envErrors, envError{field, key, value, "is not a boolean"})
		return defaultValue
	}
	return parsed
}

func (c *Config) getEnvInt(field, key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		c.envErrors = append(c.envErrors, envError{field, key, value, "is not an integer"})
		return defaultValue
	}
	return parsed
}

func (c *Config) getEnvDuration(field, key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		c.envErrors = append(c.envErrors, envError{field, key, value, "is not a duration such as 30s or 5m"})
		return defaultValue
	}
	return parsed
}

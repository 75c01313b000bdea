package config

import (
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/redhat-data-and-ai/glmr/internal/errors"
)

var envVars = []string{
	"GITLAB_BASE_URL", "CI_SERVER_URL",
	"GITLAB_TOKEN", "CI_JOB_TOKEN",
	"GITLAB_GROUP_ID", "CI_PROJECT_NAMESPACE",
	"GITLAB_INSECURE_TLS", "GITLAB_CA_CERT_PATH",
	"PORT", "SCAN_POLICY", "SCAN_CONCURRENCY", "SCAN_TIMEOUT",
	"SCAN_SCHEDULE", "LDAP_EXPORT_PATH", "LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; getEnv treats empty as unset
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	config := Load()

	assert.Equal(t, "https://gitlab.com", config.GitLab.BaseURL)
	assert.Equal(t, "", config.GitLab.Token)
	assert.Equal(t, "", config.GitLab.GroupID)
	assert.Equal(t, "3000", config.Server.Port)
	assert.Equal(t, PolicyIsolate, config.Scan.Policy)
	assert.Equal(t, 0, config.Scan.Concurrency)
	assert.Equal(t, time.Duration(0), config.Scan.Timeout)
	assert.Equal(t, "gitlab_group_ldap_mappings.csv", config.Export.OutputPath)
	assert.Equal(t, "info", config.LogLevel)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITLAB_BASE_URL", "https://gitlab.example.com")
	t.Setenv("GITLAB_TOKEN", "test-token-123")
	t.Setenv("GITLAB_GROUP_ID", "platform/data")
	t.Setenv("GITLAB_INSECURE_TLS", "true")
	t.Setenv("PORT", "8080")
	t.Setenv("SCAN_POLICY", "FAIL-FAST")
	t.Setenv("SCAN_CONCURRENCY", "8")
	t.Setenv("SCAN_TIMEOUT", "45s")
	t.Setenv("LOG_LEVEL", "debug")

	config := Load()

	assert.Equal(t, "https://gitlab.example.com", config.GitLab.BaseURL)
	assert.Equal(t, "test-token-123", config.GitLab.Token)
	assert.Equal(t, "platform/data", config.GitLab.GroupID)
	assert.True(t, config.GitLab.InsecureTLS)
	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, PolicyFailFast, config.Scan.Policy)
	assert.Equal(t, 8, config.Scan.Concurrency)
	assert.Equal(t, 45*time.Second, config.Scan.Timeout)
	assert.Equal(t, "debug", config.LogLevel)
}

func TestLoad_CIVariablesAsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("CI_SERVER_URL", "https://ci.gitlab.example.com")
	t.Setenv("CI_JOB_TOKEN", "job-token")
	t.Setenv("CI_PROJECT_NAMESPACE", "team")

	config := Load()
	assert.Equal(t, "https://ci.gitlab.example.com", config.GitLab.BaseURL)
	assert.Equal(t, "job-token", config.GitLab.Token)
	assert.Equal(t, "team", config.GitLab.GroupID)

	// explicit variables win over CI ones
	t.Setenv("GITLAB_TOKEN", "personal-token")
	assert.Equal(t, "personal-token", Load().GitLab.Token)
}

func TestLoad_MalformedEnvironmentValuesFailValidation(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr string
	}{
		{"SCAN_TIMEOUT", "30", `scan.timeout: SCAN_TIMEOUT="30" is not a duration`},
		{"SCAN_TIMEOUT", "soon", `scan.timeout: SCAN_TIMEOUT="soon" is not a duration`},
		{"SCAN_CONCURRENCY", "ten", `scan.concurrency: SCAN_CONCURRENCY="ten" is not an integer`},
		{"GITLAB_INSECURE_TLS", "maybe", `gitlab.insecure_tls: GITLAB_INSECURE_TLS="maybe" is not a boolean`},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("GITLAB_TOKEN", "token")
			t.Setenv("GITLAB_GROUP_ID", "group")
			t.Setenv(tt.key, tt.value)

			config := Load()
			assert.Equal(t, 0, config.Scan.Concurrency)
			assert.Equal(t, time.Duration(0), config.Scan.Timeout)
			assert.False(t, config.GitLab.InsecureTLS)

			for name, validate := range map[string]func() error{
				"api":    config.ValidateAPI,
				"scan":   config.ValidateScan,
				"server": config.ValidateServer,
			} {
				err := validate()
				require.Error(t, err, name)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrConfigurationError), name)
				assert.Contains(t, err.Error(), tt.wantErr, name)
			}
		})
	}
}

func TestLoadFile_MalformedEnvironmentOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "glmr.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gitlab:\n  token: file-token\n  group_id: data\nscan:\n  timeout: 1m\n"), 0o600))
	t.Setenv("SCAN_TIMEOUT", "90")

	config, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, config.Scan.Timeout, "the file value stays in place")

	err = config.ValidateScan()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SCAN_TIMEOUT")
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "glmr.yaml")
	content := `gitlab:
  base_url: https://gitlab.internal
  token: file-token
  group_id: "42"
scan:
  policy: fail-fast
  concurrency: 4
  timeout: 2m
export:
  output_path: out.csv
  access_names: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	config, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://gitlab.internal", config.GitLab.BaseURL)
	assert.Equal(t, "file-token", config.GitLab.Token)
	assert.Equal(t, "42", config.GitLab.GroupID)
	assert.Equal(t, PolicyFailFast, config.Scan.Policy)
	assert.Equal(t, 4, config.Scan.Concurrency)
	assert.Equal(t, 2*time.Minute, config.Scan.Timeout)
	assert.Equal(t, "out.csv", config.Export.OutputPath)
	assert.True(t, config.Export.AccessNames)
	// untouched sections keep defaults
	assert.Equal(t, "3000", config.Server.Port)

	t.Setenv("GITLAB_TOKEN", "env-token")
	config, err = LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "env-token", config.GitLab.Token)
}

func TestLoadFile_Errors(t *testing.T) {
	clearEnv(t)

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gitlab: [unterminated"), 0o600))
	_, err = LoadFile(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFile_EmptyPath(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITLAB_TOKEN", "abc")

	config, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, "abc", config.GitLab.Token)
}

func TestHasGitLabToken(t *testing.T) {
	assert.True(t, (&Config{GitLab: GitLabConfig{Token: "glpat-x"}}).HasGitLabToken())
	assert.False(t, (&Config{}).HasGitLabToken())
}

func validScanConfig() *Config {
	cfg := Default()
	cfg.GitLab.Token = "token"
	cfg.GitLab.GroupID = "group"
	return cfg
}

func TestValidateScan(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.GitLab.Token = "" },
			wantErr: "gitlab.token",
		},
		{
			name:    "missing group",
			mutate:  func(c *Config) { c.GitLab.GroupID = "" },
			wantErr: "gitlab.group_id",
		},
		{
			name:    "missing base url",
			mutate:  func(c *Config) { c.GitLab.BaseURL = "" },
			wantErr: "gitlab.base_url",
		},
		{
			name:    "base url without scheme",
			mutate:  func(c *Config) { c.GitLab.BaseURL = "gitlab.com" },
			wantErr: "URL must start with",
		},
		{
			name:    "unknown policy",
			mutate:  func(c *Config) { c.Scan.Policy = "retry" },
			wantErr: "scan.policy",
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Scan.Concurrency = -1 },
			wantErr: "scan.concurrency",
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.Scan.Timeout = -time.Second },
			wantErr: "scan.timeout",
		},
		{
			name:   "daily schedule",
			mutate: func(c *Config) { c.Scan.Schedule = "0 18 * * 1-5" },
		},
		{
			name:    "invalid schedule",
			mutate:  func(c *Config) { c.Scan.Schedule = "every evening" },
			wantErr: "scan.schedule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validScanConfig()
			tt.mutate(cfg)

			err := cfg.ValidateScan()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, apperrors.HasCode(err, apperrors.ErrConfigurationError))
		})
	}
}

func TestValidateAPI(t *testing.T) {
	cfg := Default()
	err := cfg.ValidateAPI()
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrConfigurationError))

	cfg.GitLab.Token = "token"
	assert.NoError(t, cfg.ValidateAPI())
}

func TestValidateServer(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.ValidateServer(), "token is optional for the server")

	cfg.Server.Port = "99999"
	err := cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")

	cfg.Server.Port = "abc"
	assert.Error(t, cfg.ValidateServer())
}

func TestValidate_CACertPath(t *testing.T) {
	server := httptest.NewTLSServer(http.NotFoundHandler())
	defer server.Close()

	dir := t.TempDir()
	validPath := filepath.Join(dir, "ca.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw})
	require.NoError(t, os.WriteFile(validPath, certPEM, 0o600))

	garbagePath := filepath.Join(dir, "garbage.pem")
	require.NoError(t, os.WriteFile(garbagePath, []byte("not a certificate"), 0o600))

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"unset", "", ""},
		{"valid bundle", validPath, ""},
		{"missing file", filepath.Join(dir, "missing.pem"), "gitlab.ca_cert_path: Must be a readable file"},
		{"not pem", garbagePath, "gitlab.ca_cert_path: Must contain at least one PEM certificate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validScanConfig()
			cfg.GitLab.CACertPath = tt.path

			for name, validate := range map[string]func() error{
				"api":    cfg.ValidateAPI,
				"scan":   cfg.ValidateScan,
				"server": cfg.ValidateServer,
			} {
				err := validate()
				if tt.wantErr == "" {
					assert.NoError(t, err, name)
					continue
				}
				require.Error(t, err, name)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrConfigurationError), name)
				assert.Contains(t, err.Error(), tt.wantErr, name)
			}
		})
	}
}

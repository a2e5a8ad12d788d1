package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "X-API-Key", cfg.Auth.Header)
	assert.Equal(t, 10, cfg.Upload.MaxFiles)
	assert.Equal(t, int64(100<<20), cfg.Upload.MaxFileSize)
	assert.Equal(t, 5*time.Minute, cfg.Upload.RequestTimeout)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, "gemini", cfg.Structuring.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Extraction.Model)
	assert.Equal(t, BackendFile, cfg.Sessions.Backend)
	assert.Equal(t, filepath.Join("data", "sessions"), cfg.Sessions.Dir)
	assert.Equal(t, "analysis_sessions", cfg.Sessions.Postgres.Table)
	assert.False(t, cfg.Audit.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("INTAKE_SERVER_PORT", "9090")
	t.Setenv("INTAKE_UPLOAD_MAX_FILES", "3")
	t.Setenv("INTAKE_UPLOAD_REQUEST_TIMEOUT", "90s")
	t.Setenv("INTAKE_AUTH_API_KEYS", "alpha, beta")
	t.Setenv("INTAKE_SESSIONS_BACKEND", "memory")
	t.Setenv("GEMINI_API_KEY", "gem-key")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 3, cfg.Upload.MaxFiles)
	assert.Equal(t, 90*time.Second, cfg.Upload.RequestTimeout)
	assert.Equal(t, []string{"alpha", "beta"}, cfg.Auth.APIKeys)
	assert.Equal(t, BackendMemory, cfg.Sessions.Backend)
	assert.Equal(t, "gem-key", cfg.AI.GeminiAPIKey)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intake.yaml")
	content := `
server:
  port: "7000"
structuring:
  provider: openai
  model: gpt-4o-mini
sessions:
  backend: minio
  minio:
    endpoint: localhost:9000
    bucket: intake
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Server.Port)
	assert.Equal(t, "openai", cfg.Structuring.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Structuring.Model)
	assert.Equal(t, BackendMinIO, cfg.Sessions.Backend)
	assert.Equal(t, "localhost:9000", cfg.Sessions.MinIO.Endpoint)
	assert.Equal(t, "sessions", cfg.Sessions.MinIO.Prefix, "unset keys keep defaults")
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "zero max files", mutate: func(c *Config) { c.Upload.MaxFiles = 0 }, wantErr: "upload.max_files"},
		{name: "zero file size", mutate: func(c *Config) { c.Upload.MaxFileSize = 0 }, wantErr: "upload.max_file_size"},
		{name: "no timeout", mutate: func(c *Config) { c.Upload.RequestTimeout = 0 }, wantErr: "upload.request_timeout"},
		{name: "unknown provider", mutate: func(c *Config) { c.Structuring.Provider = "claude" }, wantErr: "structuring.provider"},
		{name: "unknown backend", mutate: func(c *Config) { c.Sessions.Backend = "redis" }, wantErr: "sessions.backend"},
		{name: "gcs without bucket", mutate: func(c *Config) { c.Sessions.Backend = BackendGCS }, wantErr: "sessions.gcs.bucket"},
		{name: "postgres without dsn", mutate: func(c *Config) { c.Sessions.Backend = BackendPostgres }, wantErr: "sessions.postgres.dsn"},
		{name: "audit without project", mutate: func(c *Config) { c.Audit.Enabled = true }, wantErr: "audit.project_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateServerRequiresKeys(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Error(t, cfg.ValidateServer())

	cfg.Auth.APIKeys = []string{"secret"}
	assert.NoError(t, cfg.ValidateServer())
}

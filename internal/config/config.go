package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. INTAKE_SERVER_PORT.
const EnvPrefix = "INTAKE"

// Session store backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendMinIO    = "minio"
	BackendPostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Auth        AuthConfig        `mapstructure:"auth"`
	CORS        CORSConfig        `mapstructure:"cors"`
	Upload      UploadConfig      `mapstructure:"upload"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	AI          AIConfig          `mapstructure:"ai"`
	Extraction  ExtractionConfig  `mapstructure:"extraction"`
	Structuring StructuringConfig `mapstructure:"structuring"`
	Sessions    SessionsConfig    `mapstructure:"sessions"`
	Audit       AuditConfig       `mapstructure:"audit"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port              string        `mapstructure:"port"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
}

type AuthConfig struct {
	Header  string   `mapstructure:"header"`
	APIKeys []string `mapstructure:"api_keys"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type UploadConfig struct {
	MaxFiles       int           `mapstructure:"max_files"`
	MaxFileSize    int64         `mapstructure:"max_file_size"`
	ScratchDir     string        `mapstructure:"scratch_dir"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type PipelineConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type AIConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	OpenAIAPIKey string `mapstructure:"openai_api_key"`
}

type ExtractionConfig struct {
	Model string `mapstructure:"model"`
}

type StructuringConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

type SessionsConfig struct {
	Backend  string         `mapstructure:"backend"`
	Dir      string         `mapstructure:"dir"`
	GCS      GCSConfig      `mapstructure:"gcs"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

type AuditConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ProjectID       string `mapstructure:"project_id"`
	Dataset         string `mapstructure:"dataset"`
	Table           string `mapstructure:"table"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_header_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("auth.header", "X-API-Key")
	v.SetDefault("auth.api_keys", []string{})

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("upload.max_files", 10)
	v.SetDefault("upload.max_file_size", int64(100<<20))
	v.SetDefault("upload.scratch_dir", filepath.Join(os.TempDir(), "finance-intake"))
	v.SetDefault("upload.request_timeout", 5*time.Minute)

	v.SetDefault("pipeline.concurrency", 4)

	v.SetDefault("ai.gemini_api_key", "")
	v.SetDefault("ai.openai_api_key", "")

	v.SetDefault("extraction.model", "gemini-2.5-flash")

	v.SetDefault("structuring.provider", "gemini")
	v.SetDefault("structuring.model", "")

	v.SetDefault("sessions.backend", BackendFile)
	v.SetDefault("sessions.dir", filepath.Join("data", "sessions"))
	v.SetDefault("sessions.gcs.bucket", "")
	v.SetDefault("sessions.gcs.prefix", "sessions")
	v.SetDefault("sessions.gcs.credentials_file", "")
	v.SetDefault("sessions.minio.endpoint", "")
	v.SetDefault("sessions.minio.region", "")
	v.SetDefault("sessions.minio.bucket", "")
	v.SetDefault("sessions.minio.prefix", "sessions")
	v.SetDefault("sessions.minio.access_key", "")
	v.SetDefault("sessions.minio.secret_key", "")
	v.SetDefault("sessions.minio.use_ssl", false)
	v.SetDefault("sessions.postgres.dsn", "")
	v.SetDefault("sessions.postgres.table", "analysis_sessions")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.project_id", "")
	v.SetDefault("audit.dataset", "finance_intake")
	v.SetDefault("audit.table", "ingestion_audit")
	v.SetDefault("audit.credentials_file", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads configuration from defaults, an optional .env file, an optional
// YAML file and INTAKE_* environment variables, in increasing precedence.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("ai.gemini_api_key", EnvPrefix+"_AI_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")
	_ = v.BindEnv("ai.openai_api_key", EnvPrefix+"_AI_OPENAI_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.Auth.APIKeys = splitList(cfg.Auth.APIKeys)
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)

	return &cfg, nil
}

// splitList expands comma-separated entries, as produced by environment variables.
func splitList(in []string) []string {
	out := []string{}
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate reports configuration values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Upload.MaxFiles < 1 {
		errs = append(errs, fmt.Errorf("upload.max_files must be at least 1"))
	}
	if c.Upload.MaxFileSize < 1 {
		errs = append(errs, fmt.Errorf("upload.max_file_size must be positive"))
	}
	if c.Upload.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("upload.request_timeout must be positive"))
	}
	if c.Auth.Header == "" {
		errs = append(errs, fmt.Errorf("auth.header is required"))
	}

	switch c.Structuring.Provider {
	case "gemini", "openai":
	default:
		errs = append(errs, fmt.Errorf("unknown structuring.provider %q", c.Structuring.Provider))
	}

	switch c.Sessions.Backend {
	case BackendFile:
		if c.Sessions.Dir == "" {
			errs = append(errs, fmt.Errorf("sessions.dir is required for the file backend"))
		}
	case BackendMemory:
	case BackendGCS:
		if c.Sessions.GCS.Bucket == "" {
			errs = append(errs, fmt.Errorf("sessions.gcs.bucket is required for the gcs backend"))
		}
	case BackendMinIO:
		if c.Sessions.MinIO.Endpoint == "" || c.Sessions.MinIO.Bucket == "" {
			errs = append(errs, fmt.Errorf("sessions.minio.endpoint and sessions.minio.bucket are required for the minio backend"))
		}
	case BackendPostgres:
		if c.Sessions.Postgres.DSN == "" {
			errs = append(errs, fmt.Errorf("sessions.postgres.dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown sessions.backend %q", c.Sessions.Backend))
	}

	if c.Audit.Enabled && c.Audit.ProjectID == "" {
		errs = append(errs, fmt.Errorf("audit.project_id is required when audit is enabled"))
	}

	return errors.Join(errs...)
}

// ValidateServer additionally requires the settings needed to accept requests.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Auth.APIKeys) == 0 {
		return fmt.Errorf("auth.api_keys must contain at least one key")
	}
	return nil
}

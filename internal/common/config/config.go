package config

import (
	"os"
	"regexp"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ecole-connect/authhub/internal/common/cnst"
	"github.com/ecole-connect/authhub/pkg/helper"
)

type (
	// Config is the root configuration of the authhub service.
	Config struct {
		Server  ServerConfig  `yaml:"server"`
		Logger  LoggerConfig  `yaml:"logger"`
		Storage StorageConfig `yaml:"storage"`
		Session SessionConfig `yaml:"session"`
		OAuth   OAuthConfig   `yaml:"oauth"`
		Metrics MetricsConfig `yaml:"metrics"`
		Tracing TracingConfig `yaml:"tracing"`
	}

	// ServerConfig represents the HTTP server configuration
	ServerConfig struct {
		Port int    `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug, release, test
	}

	// LoggerConfig represents the logger configuration
	LoggerConfig struct {
		Level      string `yaml:"level"`       // debug, info, warn, error
		Format     string `yaml:"format"`      // json, console
		Output     string `yaml:"output"`      // stdout, file
		FilePath   string `yaml:"file_path"`   // path to log file when output is file
		MaxSize    int    `yaml:"max_size"`    // max size of log file in MB
		MaxBackups int    `yaml:"max_backups"` // max number of backup files
		MaxAge     int    `yaml:"max_age"`     // max age of backup files in days
		Compress   bool   `yaml:"compress"`    // whether to compress backup files
		Color      bool   `yaml:"color"`       // whether to use color in console output
		Stacktrace bool   `yaml:"stacktrace"`  // whether to include stacktrace in error logs
		TimeZone   string `yaml:"time_zone"`   // time zone for log timestamps, default is local
		TimeFormat string `yaml:"time_format"` // time format for log timestamps
	}

	// StorageConfig selects and configures the persistent store backend.
	StorageConfig struct {
		Type     string         `yaml:"type"` // memory, redis, sqlite, postgres, mysql
		Redis    RedisConfig    `yaml:"redis"`
		Database DatabaseConfig `yaml:"database"`
	}

	// RedisConfig represents the Redis store configuration
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	}

	// DatabaseConfig represents the SQL store configuration
	DatabaseConfig struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		DBName   string `yaml:"dbname"` // file path for sqlite
		SSLMode  string `yaml:"sslmode"`
	}

	// SessionConfig configures the cookie session engine.
	SessionConfig struct {
		Secret     string         `yaml:"secret"`      // HS256 signing key, >= 32 bytes
		TTL        time.Duration  `yaml:"ttl"`         // session lifetime
		CookieName string         `yaml:"cookie_name"` // session-token cookie name
		Provider   ProviderConfig `yaml:"provider"`
	}

	// ProviderConfig is the delegated identity provider, described as plain
	// configuration data.
	ProviderConfig struct {
		Name          string   `yaml:"name"`
		ClientID      string   `yaml:"client_id"`
		ClientSecret  string   `yaml:"client_secret"`
		AuthURL       string   `yaml:"auth_url"`
		TokenURL      string   `yaml:"token_url"`
		UserInfoURL   string   `yaml:"userinfo_url"`
		RedirectURI   string   `yaml:"redirect_uri"`
		Scopes        []string `yaml:"scopes"`
		StudentDomain string   `yaml:"student_domain"` // email domain that yields a short handle
	}

	// OAuthConfig configures the embedded OAuth2 authorization server.
	OAuthConfig struct {
		CodeTTL         time.Duration `yaml:"code_ttl"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
	}

	// MetricsConfig represents the Prometheus metrics configuration
	MetricsConfig struct {
		Enabled   bool      `yaml:"enabled"`
		Namespace string    `yaml:"namespace"`
		Buckets   []float64 `yaml:"buckets"`
	}

	// TracingConfig represents OpenTelemetry tracing configuration
	TracingConfig struct {
		Enabled     bool              `yaml:"enabled"`
		ServiceName string            `yaml:"service_name"`
		Endpoint    string            `yaml:"endpoint"` // e.g. localhost:4317 or http://localhost:4318
		Protocol    string            `yaml:"protocol"` // grpc or http
		Insecure    bool              `yaml:"insecure"`
		SamplerRate float64           `yaml:"sampler_rate"` // 0.0~1.0
		Environment string            `yaml:"environment"`
		Headers     map[string]string `yaml:"headers"`
	}
)

// LoadConfig loads configuration from a YAML file with environment variable
// support.
func LoadConfig(filename string) (*Config, string, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfgPath := helper.GetCfgPath(filename)
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, cfgPath, err
	}

	// Resolve environment variables
	data = resolveEnv(data)
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, cfgPath, err
	}

	setDefaults(&cfg)
	return &cfg, cfgPath, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5173
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 30 * 24 * time.Hour
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = cnst.SessionCookieName
	}
	if cfg.OAuth.CodeTTL <= 0 {
		cfg.OAuth.CodeTTL = 10 * time.Minute
	}
	if cfg.OAuth.AccessTokenTTL <= 0 {
		cfg.OAuth.AccessTokenTTL = time.Hour
	}
	if cfg.OAuth.RefreshTokenTTL <= 0 {
		cfg.OAuth.RefreshTokenTTL = 14 * 24 * time.Hour
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = cnst.AppName
	}
}

// resolveEnv replaces environment variable placeholders in YAML content
func resolveEnv(content []byte) []byte {
	regex := regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

	return regex.ReplaceAllFunc(content, func(match []byte) []byte {
		matches := regex.FindSubmatch(match)
		envKey := string(matches[1])
		var defaultValue string

		if len(matches) > 2 {
			defaultValue = string(matches[2])
		}

		if value, exists := os.LookupEnv(envKey); exists {
			return []byte(value)
		}

		return []byte(defaultValue)
	})
}

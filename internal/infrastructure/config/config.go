package config

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Communities Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Mail     MailConfig     `yaml:"mail"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains bearer credential, security token, and
// tenant-admin authorisation settings.
type SecurityConfig struct {
	Bearer BearerConfig        `yaml:"bearer"`
	Tokens SecurityTokenConfig `yaml:"tokens"`

	// AdminPaths lists the request paths that only administrators of the
	// referenced community may reach.
	AdminPaths []AdminPathRule `yaml:"admin_paths"`

	// RejectionStatus is the HTTP status written when a guarded request is denied.
	// Must be 401 or 403.
	RejectionStatus int `yaml:"rejection_status"`
}

// BearerConfig contains the bearer credential settings.
type BearerConfig struct {
	// Header is the request header carrying the credential.
	Header string `yaml:"header"`

	// Prefix precedes the credential inside the header value (e.g. "Bearer ").
	Prefix string `yaml:"prefix"`

	// Secret is the HMAC-SHA-512 signing key. At least 64 bytes.
	Secret string `yaml:"secret"`

	// AccessTokenTTL is the lifetime of issued credentials in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`
}

// SecurityTokenConfig contains single-use security token lifetimes.
type SecurityTokenConfig struct {
	EmailConfirmTTL  time.Duration `yaml:"email_confirm_ttl"`
	PasswordResetTTL time.Duration `yaml:"password_reset_ttl"`
}

// AdminPathRule describes one tenant-admin guarded path.
type AdminPathRule struct {
	// Pattern is a regular expression matched against the request path.
	// It must contain a named group "tenant" capturing the community ID.
	Pattern string `yaml:"pattern"`

	// Methods restricts the rule to these HTTP methods. Empty means all methods.
	Methods []string `yaml:"methods,omitempty"`
}

// MQTTConfig contains MQTT broker connection settings.
// The broker receives security token lifecycle events for the mail relay
// and audit consumers.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MailConfig contains outbound SMTP settings.
type MailConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`

	// ConfirmURL and ResetURL receive the token value as the "token" query parameter.
	ConfirmURL string `yaml:"confirm_url"`
	ResetURL   string `yaml:"reset_url"`
}

// minBearerSecretLength is the HMAC-SHA-512 key size in bytes.
const minBearerSecretLength = 64

// minTokenTTL is the shortest security token lifetime that still leaves
// expires_at after created_at once both are stored in whole seconds.
const minTokenTTL = time.Second

// tenantGroup is the named capture group every admin path pattern must define.
const tenantGroup = "tenant"

// uuidSegment matches a UUID-formatted path segment.
const uuidSegment = `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`

// DefaultAdminPaths are the guarded community endpoints.
var DefaultAdminPaths = []AdminPathRule{
	{Pattern: `/communities/(?P<tenant>` + uuidSegment + `)/admins(?:/|$)`},
	{Pattern: `/communities/(?P<tenant>` + uuidSegment + `)/amenities(?:/|$)`},
	{Pattern: `/communities/(?P<tenant>` + uuidSegment + `)/audit(?:/|$)`},
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: COMMUNITIES_SECTION_KEY
// For example: COMMUNITIES_DATABASE_PATH, COMMUNITIES_JWT_SECRET
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	adminPaths := make([]AdminPathRule, len(DefaultAdminPaths))
	copy(adminPaths, DefaultAdminPaths)

	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/communities.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			Bearer: BearerConfig{
				Header:         "Authorization",
				Prefix:         "Bearer ",
				AccessTokenTTL: 60,
			},
			Tokens: SecurityTokenConfig{
				EmailConfirmTTL:  24 * time.Hour,
				PasswordResetTTL: time.Hour,
			},
			AdminPaths:      adminPaths,
			RejectionStatus: http.StatusForbidden,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "communities-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "communities",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Mail: MailConfig{
			Port: 587,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: COMMUNITIES_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("COMMUNITIES_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("COMMUNITIES_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Security - signing secret (IMPORTANT: always override in production)
	if v := os.Getenv("COMMUNITIES_JWT_SECRET"); v != "" {
		cfg.Security.Bearer.Secret = v
	}

	if v := os.Getenv("COMMUNITIES_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("COMMUNITIES_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("COMMUNITIES_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("COMMUNITIES_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("COMMUNITIES_SMTP_HOST"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("COMMUNITIES_SMTP_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("COMMUNITIES_SMTP_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	errs = append(errs, c.Security.validate()...)

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Mail.Enabled {
		if c.Mail.Host == "" {
			errs = append(errs, "mail.host is required when mail is enabled")
		}
		if c.Mail.From == "" {
			errs = append(errs, "mail.from is required when mail is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (s SecurityConfig) validate() []string {
	var errs []string

	// A short HMAC key silently weakens every credential the service issues.
	if s.Bearer.Secret == "" {
		errs = append(errs, "security.bearer.secret is required (set COMMUNITIES_JWT_SECRET environment variable)")
	} else if len(s.Bearer.Secret) < minBearerSecretLength {
		errs = append(errs, fmt.Sprintf("security.bearer.secret must be at least %d bytes", minBearerSecretLength))
	}

	if s.Bearer.Header == "" {
		errs = append(errs, "security.bearer.header is required")
	}
	if s.Bearer.AccessTokenTTL <= 0 {
		errs = append(errs, "security.bearer.access_token_ttl must be positive")
	}

	// Token timestamps are stored at second precision.
	if s.Tokens.EmailConfirmTTL < minTokenTTL {
		errs = append(errs, fmt.Sprintf("security.tokens.email_confirm_ttl must be at least %s", minTokenTTL))
	}
	if s.Tokens.PasswordResetTTL < minTokenTTL {
		errs = append(errs, fmt.Sprintf("security.tokens.password_reset_ttl must be at least %s", minTokenTTL))
	}

	if s.RejectionStatus != http.StatusUnauthorized && s.RejectionStatus != http.StatusForbidden {
		errs = append(errs, "security.rejection_status must be 401 or 403")
	}

	for i, rule := range s.AdminPaths {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			errs = append(errs, fmt.Sprintf("security.admin_paths[%d].pattern is invalid: %v", i, err))
			continue
		}
		if re.SubexpIndex(tenantGroup) < 0 {
			errs = append(errs, fmt.Sprintf("security.admin_paths[%d].pattern must define a (?P<%s>...) group", i, tenantGroup))
		}
	}

	return errs
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// AccessTokenTTLDuration returns the bearer credential lifetime as a Duration.
func (b BearerConfig) AccessTokenTTLDuration() time.Duration {
	return time.Duration(b.AccessTokenTTL) * time.Minute
}

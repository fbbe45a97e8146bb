// Package config loads and validates the QA dashboard configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the QAD_ prefix (e.g., QAD_DATABASE_HOST
// overrides database.host in the YAML), so the same binary runs with a
// config.yaml locally and with plain environment variables in a container.
//
// The session signing secret is read separately from QAD_SESSION_SECRET by the
// auth package and never lives in the YAML file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Documents DocumentsConfig `mapstructure:"documents"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Review    ReviewConfig    `mapstructure:"review"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	StaticURL    string        `mapstructure:"static_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GetPublicURL returns the public-facing URL used for SSO callbacks and redirects.
// When server.public_url is set it is returned as-is; otherwise it falls back to server.base_url.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return s.PublicURL
	}
	return s.BaseURL
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Name               string `mapstructure:"name"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode"`
	MaxConnections     int    `mapstructure:"max_connections"`
	MinIdleConnections int    `mapstructure:"min_idle_connections"`
}

// StorageConfig holds blob storage backend configuration.
// Backend "none" disables signed document URLs; the placeholder document is served instead.
type StorageConfig struct {
	Backend string             `mapstructure:"backend"`
	Azure   AzureStorageConfig `mapstructure:"azure"`
	S3      S3StorageConfig    `mapstructure:"s3"`
	GCS     GCSStorageConfig   `mapstructure:"gcs"`
	Local   LocalStorageConfig `mapstructure:"local"`
}

// AzureStorageConfig holds Azure Blob Storage configuration.
// Either AccountKey (SAS signed per request) or SASToken (a pre-issued token appended to every URL)
// must be provided.
type AzureStorageConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	// Host overrides <account_name>.blob.core.windows.net (custom domains, Azurite)
	Host     string `mapstructure:"host"`
	SASToken string `mapstructure:"sas_token"`
	CDNURL   string `mapstructure:"cdn_url"`
}

// S3StorageConfig holds S3-compatible storage configuration
type S3StorageConfig struct {
	// Endpoint is the S3-compatible endpoint URL (optional, for MinIO and friends)
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`

	// Authentication method: "default", "static", "oidc", "assume_role"
	AuthMethod string `mapstructure:"auth_method"`

	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`

	RoleARN              string `mapstructure:"role_arn"`
	RoleSessionName      string `mapstructure:"role_session_name"`
	ExternalID           string `mapstructure:"external_id"`
	WebIdentityTokenFile string `mapstructure:"web_identity_token_file"`
}

// GCSStorageConfig holds Google Cloud Storage configuration
type GCSStorageConfig struct {
	Bucket string `mapstructure:"bucket"`

	// Authentication method: "default", "service_account", "workload_identity"
	AuthMethod      string `mapstructure:"auth_method"`
	CredentialsFile string `mapstructure:"credentials_file"`
	CredentialsJSON string `mapstructure:"credentials_json"`

	// Endpoint is an optional custom endpoint (for GCS emulators)
	Endpoint string `mapstructure:"endpoint"`
}

// LocalStorageConfig holds local filesystem storage configuration
type LocalStorageConfig struct {
	BasePath      string `mapstructure:"base_path"`
	ServeDirectly bool   `mapstructure:"serve_directly"`
}

// DocumentsConfig describes where draft and final report PDFs live in blob storage.
type DocumentsConfig struct {
	DraftsContainer string        `mapstructure:"drafts_container"`
	FinalsContainer string        `mapstructure:"finals_container"`
	URLTTL          time.Duration `mapstructure:"url_ttl"`
	// Placeholder is served relative to server.static_url when storage is disabled
	Placeholder string `mapstructure:"placeholder"`
}

// DirectoryConfig selects and configures the recipient directory
type DirectoryConfig struct {
	// Backend is "ldap" or "static"
	Backend string                `mapstructure:"backend"`
	LDAP    LDAPDirectoryConfig   `mapstructure:"ldap"`
	Static  StaticDirectoryConfig `mapstructure:"static"`
	Cache   DirectoryCacheConfig  `mapstructure:"cache"`
}

// LDAPDirectoryConfig holds the LDAP connection and search settings.
// SiteFilter and RegionFilter are fmt templates receiving the escaped site or region name once.
type LDAPDirectoryConfig struct {
	URL                string        `mapstructure:"url"`
	BindDN             string        `mapstructure:"bind_dn"`
	BindPassword       string        `mapstructure:"bind_password"`
	BaseDN             string        `mapstructure:"base_dn"`
	SiteFilter         string        `mapstructure:"site_filter"`
	RegionFilter       string        `mapstructure:"region_filter"`
	MailAttribute      string        `mapstructure:"mail_attribute"`
	StartTLS           bool          `mapstructure:"start_tls"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	Timeout            time.Duration `mapstructure:"timeout"`
	SizeLimit          int           `mapstructure:"size_limit"`
}

// StaticDirectoryConfig is a fixed membership table, used for development and tests.
// When MembersFile is set it is loaded (YAML) and watched for changes, replacing the inline maps.
type StaticDirectoryConfig struct {
	SiteMembers   map[string][]string `mapstructure:"site_members"`
	RegionMembers map[string][]string `mapstructure:"region_members"`
	MembersFile   string              `mapstructure:"members_file"`
}

// DirectoryCacheConfig controls caching of directory lookups
type DirectoryCacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig holds the shared Redis connection used for sessions, directory cache and rate limiting.
// An empty Addr disables Redis and every consumer falls back to process memory.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Enabled reports whether a Redis address has been configured
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// Provider is the SSO provider used for interactive login: "saml" or "oidc"
	Provider string        `mapstructure:"provider"`
	Session  SessionConfig `mapstructure:"session"`
	SAML     SAMLConfig    `mapstructure:"saml"`
	OIDC     OIDCConfig    `mapstructure:"oidc"`
	Roles    RolesConfig   `mapstructure:"roles"`
	// LoginRedirect is where the browser lands after a successful SSO login
	LoginRedirect string `mapstructure:"login_redirect"`
}

// SessionConfig holds the session cookie and lifetime settings
type SessionConfig struct {
	CookieName   string        `mapstructure:"cookie_name"`
	TTL          time.Duration `mapstructure:"ttl"`
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// SAMLConfig holds SAML service provider configuration
type SAMLConfig struct {
	EntityID          string `mapstructure:"entity_id"`
	CertFile          string `mapstructure:"cert_file"`
	KeyFile           string `mapstructure:"key_file"`
	IDPMetadataURL    string `mapstructure:"idp_metadata_url"`
	IDPMetadataFile   string `mapstructure:"idp_metadata_file"`
	AllowIDPInitiated bool   `mapstructure:"allow_idp_initiated"`
	// Attribute names carried in the assertion
	DisplayNameAttribute string `mapstructure:"display_name_attribute"`
	EmailAttribute       string `mapstructure:"email_attribute"`
	GroupsAttribute      string `mapstructure:"groups_attribute"`
}

// OIDCConfig holds generic OIDC provider configuration
type OIDCConfig struct {
	IssuerURL      string   `mapstructure:"issuer_url"`
	ClientID       string   `mapstructure:"client_id"`
	ClientSecret   string   `mapstructure:"client_secret"`
	RedirectURL    string   `mapstructure:"redirect_url"`
	Scopes         []string `mapstructure:"scopes"`
	GroupClaimName string   `mapstructure:"group_claim_name"`
}

// RolesConfig maps identity-provider groups onto dashboard roles
type RolesConfig struct {
	Superusers     []string `mapstructure:"superusers"`
	AdminGroups    []string `mapstructure:"admin_groups"`
	ApproverGroups []string `mapstructure:"approver_groups"`
	ViewerGroups   []string `mapstructure:"viewer_groups"`
}

// ReviewConfig holds dashboard listing settings
type ReviewConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Profiling ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// AuditConfig holds access log shipping configuration.
// Access logs are always written to the database; shippers forward a copy.
type AuditConfig struct {
	Shippers []AuditShipperConfig `mapstructure:"shippers"`
}

// AuditShipperConfig holds configuration for a single audit shipper
type AuditShipperConfig struct {
	Enabled bool                `mapstructure:"enabled"`
	Type    string              `mapstructure:"type"` // webhook, file
	Webhook *AuditWebhookConfig `mapstructure:"webhook"`
	File    *AuditFileConfig    `mapstructure:"file"`
}

// AuditWebhookConfig holds webhook shipper configuration
type AuditWebhookConfig struct {
	URL         string            `mapstructure:"url"`
	Headers     map[string]string `mapstructure:"headers"`
	TimeoutSecs int               `mapstructure:"timeout_secs"`
}

// AuditFileConfig holds file shipper configuration
type AuditFileConfig struct {
	Path string `mapstructure:"path"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// AutomaticEnv() alone does not reach nested keys during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.static_url",
		"server.read_timeout",
		"server.write_timeout",

		// Database
		"database.host",
		"database.port",
		"database.name",
		"database.user",
		"database.password",
		"database.ssl_mode",
		"database.max_connections",
		"database.min_idle_connections",

		// Storage
		"storage.backend",
		"storage.azure.account_name",
		"storage.azure.account_key",
		"storage.azure.host",
		"storage.azure.sas_token",
		"storage.azure.cdn_url",
		"storage.s3.endpoint",
		"storage.s3.region",
		"storage.s3.bucket",
		"storage.s3.auth_method",
		"storage.s3.access_key_id",
		"storage.s3.secret_access_key",
		"storage.s3.role_arn",
		"storage.s3.role_session_name",
		"storage.s3.external_id",
		"storage.s3.web_identity_token_file",
		"storage.gcs.bucket",
		"storage.gcs.auth_method",
		"storage.gcs.credentials_file",
		"storage.gcs.credentials_json",
		"storage.gcs.endpoint",
		"storage.local.base_path",
		"storage.local.serve_directly",

		// Documents
		"documents.drafts_container",
		"documents.finals_container",
		"documents.url_ttl",
		"documents.placeholder",

		// Directory
		"directory.backend",
		"directory.ldap.url",
		"directory.ldap.bind_dn",
		"directory.ldap.bind_password",
		"directory.ldap.base_dn",
		"directory.ldap.site_filter",
		"directory.ldap.region_filter",
		"directory.ldap.mail_attribute",
		"directory.ldap.start_tls",
		"directory.ldap.insecure_skip_verify",
		"directory.ldap.timeout",
		"directory.static.members_file",
		"directory.cache.enabled",
		"directory.cache.ttl",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		"redis.key_prefix",

		// Auth
		"auth.provider",
		"auth.login_redirect",
		"auth.session.cookie_name",
		"auth.session.ttl",
		"auth.session.secure_cookie",
		"auth.saml.entity_id",
		"auth.saml.cert_file",
		"auth.saml.key_file",
		"auth.saml.idp_metadata_url",
		"auth.saml.idp_metadata_file",
		"auth.saml.allow_idp_initiated",
		"auth.saml.groups_attribute",
		"auth.oidc.issuer_url",
		"auth.oidc.client_id",
		"auth.oidc.client_secret",
		"auth.oidc.redirect_url",
		"auth.oidc.scopes",
		"auth.oidc.group_claim_name",
		"auth.roles.superusers",

		// Review
		"review.default_page_size",
		"review.max_page_size",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/qa-dashboard")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("QAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Database.Password = expandEnv(cfg.Database.Password)
	cfg.Storage.Azure.AccountKey = expandEnv(cfg.Storage.Azure.AccountKey)
	cfg.Storage.Azure.SASToken = expandEnv(cfg.Storage.Azure.SASToken)
	cfg.Storage.S3.AccessKeyID = expandEnv(cfg.Storage.S3.AccessKeyID)
	cfg.Storage.S3.SecretAccessKey = expandEnv(cfg.Storage.S3.SecretAccessKey)
	cfg.Directory.LDAP.BindPassword = expandEnv(cfg.Directory.LDAP.BindPassword)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Auth.OIDC.ClientSecret = expandEnv(cfg.Auth.OIDC.ClientSecret)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.static_url", "/static/")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "qa_dashboard")
	v.SetDefault("database.user", "qa_dashboard")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_connections", 25)
	v.SetDefault("database.min_idle_connections", 5)

	// Storage defaults
	v.SetDefault("storage.backend", "none")
	v.SetDefault("storage.local.base_path", "./storage")
	v.SetDefault("storage.local.serve_directly", true)

	// Documents defaults
	v.SetDefault("documents.drafts_container", "drafts")
	v.SetDefault("documents.finals_container", "finals")
	v.SetDefault("documents.url_ttl", "15m")
	v.SetDefault("documents.placeholder", "pdf_placeholder.pdf")

	// Directory defaults
	v.SetDefault("directory.backend", "static")
	v.SetDefault("directory.ldap.site_filter", "(&(objectClass=person)(physicalDeliveryOfficeName=%s))")
	v.SetDefault("directory.ldap.region_filter", "(&(objectClass=person)(l=%s))")
	v.SetDefault("directory.ldap.mail_attribute", "mail")
	v.SetDefault("directory.ldap.timeout", "10s")
	v.SetDefault("directory.ldap.size_limit", 500)
	v.SetDefault("directory.cache.enabled", true)
	v.SetDefault("directory.cache.ttl", "5m")

	// Redis defaults
	v.SetDefault("redis.key_prefix", "qad:")

	// Auth defaults
	v.SetDefault("auth.provider", "saml")
	v.SetDefault("auth.login_redirect", "/qa/dashboard/")
	v.SetDefault("auth.session.cookie_name", "qad_session")
	v.SetDefault("auth.session.ttl", "8h")
	v.SetDefault("auth.session.secure_cookie", true)
	v.SetDefault("auth.saml.display_name_attribute", "cn")
	v.SetDefault("auth.saml.email_attribute", "email")
	v.SetDefault("auth.saml.groups_attribute", "memberOf")
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})
	v.SetDefault("auth.oidc.group_claim_name", "groups")
	v.SetDefault("auth.roles.admin_groups", []string{"Admin"})
	v.SetDefault("auth.roles.approver_groups", []string{"QA Approver", "Approver"})
	v.SetDefault("auth.roles.viewer_groups", []string{"Viewer"})

	// Review defaults
	v.SetDefault("review.default_page_size", 25)
	v.SetDefault("review.max_page_size", 200)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}

	validBackends := map[string]bool{"none": true, "azure": true, "s3": true, "gcs": true, "local": true}
	if !validBackends[c.Storage.Backend] {
		return fmt.Errorf("invalid storage backend: %s (must be none, azure, s3, gcs, or local)", c.Storage.Backend)
	}

	switch c.Storage.Backend {
	case "azure":
		if c.Storage.Azure.AccountName == "" && c.Storage.Azure.Host == "" {
			return fmt.Errorf("storage.azure.account_name or storage.azure.host is required when using Azure backend")
		}
		if c.Storage.Azure.AccountKey == "" && c.Storage.Azure.SASToken == "" {
			return fmt.Errorf("storage.azure.account_key or storage.azure.sas_token is required when using Azure backend")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required when using S3 backend")
		}
		if c.Storage.S3.Region == "" {
			return fmt.Errorf("storage.s3.region is required when using S3 backend")
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("storage.gcs.bucket is required when using GCS backend")
		}
	case "local":
		if c.Storage.Local.BasePath == "" {
			return fmt.Errorf("storage.local.base_path is required when using local backend")
		}
	}

	if c.Documents.DraftsContainer == "" || c.Documents.FinalsContainer == "" {
		return fmt.Errorf("documents.drafts_container and documents.finals_container are required")
	}

	switch c.Directory.Backend {
	case "static":
	case "ldap":
		if c.Directory.LDAP.URL == "" {
			return fmt.Errorf("directory.ldap.url is required when using the LDAP directory")
		}
		if c.Directory.LDAP.BaseDN == "" {
			return fmt.Errorf("directory.ldap.base_dn is required when using the LDAP directory")
		}
		if !strings.Contains(c.Directory.LDAP.SiteFilter, "%s") || !strings.Contains(c.Directory.LDAP.RegionFilter, "%s") {
			return fmt.Errorf("directory.ldap.site_filter and region_filter must contain a %%s placeholder")
		}
	default:
		return fmt.Errorf("invalid directory backend: %s (must be ldap or static)", c.Directory.Backend)
	}

	switch c.Auth.Provider {
	case "saml":
		if c.Auth.SAML.CertFile == "" || c.Auth.SAML.KeyFile == "" {
			return fmt.Errorf("auth.saml.cert_file and auth.saml.key_file are required when SAML is the provider")
		}
		if c.Auth.SAML.IDPMetadataURL == "" && c.Auth.SAML.IDPMetadataFile == "" {
			return fmt.Errorf("auth.saml.idp_metadata_url or auth.saml.idp_metadata_file is required when SAML is the provider")
		}
	case "oidc":
		if c.Auth.OIDC.IssuerURL == "" {
			return fmt.Errorf("auth.oidc.issuer_url is required when OIDC is the provider")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id is required when OIDC is the provider")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret is required when OIDC is the provider")
		}
	case "none":
	default:
		return fmt.Errorf("invalid auth provider: %s (must be saml, oidc, or none)", c.Auth.Provider)
	}

	if c.Auth.Session.CookieName == "" {
		return fmt.Errorf("auth.session.cookie_name is required")
	}
	if c.Auth.Session.TTL <= 0 {
		return fmt.Errorf("auth.session.ttl must be positive")
	}

	if c.Review.DefaultPageSize < 1 {
		return fmt.Errorf("review.default_page_size must be at least 1")
	}
	if c.Review.MaxPageSize < c.Review.DefaultPageSize {
		return fmt.Errorf("review.max_page_size must be >= review.default_page_size")
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

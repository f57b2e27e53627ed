package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Email       EmailConfig       `yaml:"email"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Program     ProgramConfig     `yaml:"program"`
	Connections ConnectionsConfig `yaml:"connections"`
	Dispatcher  DispatcherConfig  `yaml:"dispatcher"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig contains listener settings
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	GRPCPort    int    `yaml:"grpc_port"`
	MetricsPort int    `yaml:"metrics_port"`
	// RunScheduler runs the cron jobs inside the server process
	RunScheduler bool `yaml:"run_scheduler"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"ssl_mode"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	TxMaxAttempts  int    `yaml:"tx_max_attempts"`
	MigrateOnStart bool   `yaml:"migrate_on_start"`
}

// EmailConfig contains outgoing mail settings
type EmailConfig struct {
	Provider       string `yaml:"provider"` // "sendgrid" or "log"
	SendGridAPIKey string `yaml:"sendgrid_api_key"`
	FromEmail      string `yaml:"from_email"`
	FromName       string `yaml:"from_name"`
	BaseURL        string `yaml:"base_url"` // Used to build links in emails
}

// JWTConfig contains JWT token settings
type JWTConfig struct {
	Secret            string `yaml:"secret"`
	AccessTokenExpiry int    `yaml:"access_token_expiry_minutes"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// ProgramConfig describes the program connections belong to
type ProgramConfig struct {
	Name string `yaml:"name"`
	// MentorWelcomeMessage is mailed to a profile the first time it becomes a mentor.
	// Empty disables the welcome mail.
	MentorWelcomeMessage string `yaml:"mentor_welcome_message"`
}

// ConnectionsConfig contains connection negotiation settings
type ConnectionsConfig struct {
	// DemoteOnRegression removes the profile's role for the organization when
	// either side of an agreed connection goes back to no role.
	DemoteOnRegression      bool `yaml:"demote_on_regression"`
	AnonymousInviteTTLHours int  `yaml:"anonymous_invite_ttl_hours"`
	MessageMaxLength        int  `yaml:"message_max_length"`
	MessageListLimit        int  `yaml:"message_list_limit"`
}

// DispatcherConfig contains outbox delivery settings
type DispatcherConfig struct {
	BatchSize   int `yaml:"batch_size"`
	MaxAttempts int `yaml:"max_attempts"`
	// LeaseSeconds is how long a claimed row is left to one dispatcher before
	// another may pick it up again.
	LeaseSeconds int `yaml:"lease_seconds"`
}

// SchedulerConfig contains cron schedule settings (with seconds field)
type SchedulerConfig struct {
	DispatchNotifications      string `yaml:"dispatch_notifications"`
	ExpireAnonymousConnections string `yaml:"expire_anonymous_connections"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying environment overrides and defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	setString(&c.Database.Host, "DB_HOST")
	setInt(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Database, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSL_MODE")
	setBool(&c.Database.MigrateOnStart, "DB_MIGRATE_ON_START")

	// Email
	setString(&c.Email.Provider, "EMAIL_PROVIDER")
	setString(&c.Email.SendGridAPIKey, "SENDGRID_API_KEY")
	setString(&c.Email.FromEmail, "EMAIL_FROM")

	// JWT
	setString(&c.JWT.Secret, "JWT_SECRET")

	// Server
	setString(&c.Server.Host, "SERVER_HOST")
	setInt(&c.Server.Port, "SERVER_PORT")

	// Connections
	setBool(&c.Connections.DemoteOnRegression, "CONNECTIONS_DEMOTE_ON_REGRESSION")

	// Log
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func setInt(dst *int, key string) {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

// Validate checks if the configuration is valid and fills in defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.Server.GRPCPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}
	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 20
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.TxMaxAttempts == 0 {
		c.Database.TxMaxAttempts = 3
	}

	if c.Email.Provider == "" {
		c.Email.Provider = "log"
	}
	switch c.Email.Provider {
	case "log":
	case "sendgrid":
		if c.Email.SendGridAPIKey == "" {
			return fmt.Errorf("SendGrid API key is required when email provider is sendgrid")
		}
		if c.Email.FromEmail == "" {
			return fmt.Errorf("sender email is required when email provider is sendgrid")
		}
	default:
		return fmt.Errorf("unknown email provider: %s", c.Email.Provider)
	}
	if c.Email.FromName == "" {
		c.Email.FromName = "Melange"
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}
	if c.JWT.AccessTokenExpiry == 0 {
		c.JWT.AccessTokenExpiry = 60
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Program.Name == "" {
		c.Program.Name = "Summer of Code"
	}

	if c.Connections.AnonymousInviteTTLHours == 0 {
		c.Connections.AnonymousInviteTTLHours = 7 * 24 // One week
	}
	if c.Connections.MessageMaxLength == 0 {
		c.Connections.MessageMaxLength = 10000
	}
	if c.Connections.MessageListLimit == 0 {
		c.Connections.MessageListLimit = 1000
	}

	if c.Dispatcher.BatchSize == 0 {
		c.Dispatcher.BatchSize = 50
	}
	if c.Dispatcher.MaxAttempts == 0 {
		c.Dispatcher.MaxAttempts = 5
	}
	if c.Dispatcher.LeaseSeconds == 0 {
		c.Dispatcher.LeaseSeconds = 300
	}

	if c.Scheduler.DispatchNotifications == "" {
		c.Scheduler.DispatchNotifications = "*/30 * * * * *" // Every 30 seconds
	}
	if c.Scheduler.ExpireAnonymousConnections == "" {
		c.Scheduler.ExpireAnonymousConnections = "0 0 2 * * *" // 2 AM UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP API address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the gRPC health address, empty when disabled
func (c *Config) GetGRPCAddress() string {
	if c.Server.GRPCPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.GRPCPort)
}

// GetMetricsAddress returns the Prometheus listener address, empty when disabled
func (c *Config) GetMetricsAddress() string {
	if c.Server.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.MetricsPort)
}

// AnonymousInviteTTL returns how long an emailed invitation stays valid
func (c *Config) AnonymousInviteTTL() time.Duration {
	return time.Duration(c.Connections.AnonymousInviteTTLHours) * time.Hour
}

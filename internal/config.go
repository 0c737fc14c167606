package internal

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Security      SecurityConfig      `mapstructure:"security" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Payment       PaymentConfig       `mapstructure:"payment"`
	Verification  VerificationConfig  `mapstructure:"verification"`
	Messaging     MessagingConfig     `mapstructure:"messaging"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" validate:"required,min=1m"`
	Source          string        `mapstructure:"source"`
}

// SecurityConfig only verifies owner tokens; they are issued elsewhere.
type SecurityConfig struct {
	JWTPublicKey string `mapstructure:"jwt_public_key"`
	JWTSecret    string `mapstructure:"jwt_secret"`
	JWTIssuer    string `mapstructure:"jwt_issuer"`
}

type PaymentConfig struct {
	BaseURL             string        `mapstructure:"base_url" validate:"required,url"`
	ClientID            string        `mapstructure:"client_id" validate:"required"`
	ClientSecret        string        `mapstructure:"client_secret" validate:"required"`
	APIVersion          string        `mapstructure:"api_version"`
	ReturnURL           string        `mapstructure:"return_url"`
	NotifyURL           string        `mapstructure:"notify_url"`
	HostedCheckoutURL   string        `mapstructure:"hosted_checkout_url"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	CheckoutEnvironment string        `mapstructure:"checkout_environment" validate:"oneof=sandbox production"`
	EmbeddedCheckout    bool          `mapstructure:"embedded_checkout"`
}

type VerificationConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Delay       time.Duration `mapstructure:"delay"`
	Backoff     string        `mapstructure:"backoff" validate:"oneof=constant exponential fibonacci"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
	Workers     int           `mapstructure:"workers"`
	QueueSize   int           `mapstructure:"queue_size"`

	// AttemptTimeout bounds one status call; keep
	// max_attempts*attempt_timeout plus the delays under the server write timeout.
	AttemptTimeout time.Duration `mapstructure:"attempt_timeout"`
}

type MessagingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url" validate:"required_if=Enabled true"`
	Exchange string `mapstructure:"exchange"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

const (
	DefaultAPIVersion           = "2023-08-01"
	DefaultCheckoutEnvironment  = "sandbox"
	DefaultVerifyAttempts       = 6
	DefaultVerifyDelay          = 5 * time.Second
	DefaultVerifyAttemptTimeout = 5 * time.Second
	DefaultExchange             = "moviemix.payments"
)

// ApplyDefaults fills zero values left by a partial config file or environment.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Payment.APIVersion == "" {
		c.Payment.APIVersion = DefaultAPIVersion
	}
	if c.Payment.RequestTimeout <= 0 {
		c.Payment.RequestTimeout = 30 * time.Second
	}
	if c.Payment.CheckoutEnvironment == "" {
		c.Payment.CheckoutEnvironment = DefaultCheckoutEnvironment
	}
	if c.Verification.MaxAttempts <= 0 {
		c.Verification.MaxAttempts = DefaultVerifyAttempts
	}
	if c.Verification.Delay <= 0 {
		c.Verification.Delay = DefaultVerifyDelay
	}
	if c.Verification.Backoff == "" {
		c.Verification.Backoff = "constant"
	}
	if c.Verification.AttemptTimeout <= 0 {
		c.Verification.AttemptTimeout = DefaultVerifyAttemptTimeout
	}
	if c.Verification.Workers <= 0 {
		c.Verification.Workers = 4
	}
	if c.Verification.QueueSize <= 0 {
		c.Verification.QueueSize = 100
	}
	if c.Messaging.Exchange == "" {
		c.Messaging.Exchange = DefaultExchange
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "json"
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
}

// LoadConfigFromEnv builds the configuration purely from environment variables,
// used in production and container deployments where no config.yml is shipped.
func LoadConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              getEnvAsInt("PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", "*"),
			ReadHeaderTimeout: getEnvAsDuration("READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("WRITE_TIMEOUT", 60*time.Second),
		},
		Database: DatabaseConfig{
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DATABASE_URL", ""),
		},
		Security: SecurityConfig{
			JWTPublicKey: getEnv("JWT_PUBLIC_KEY", ""),
			JWTSecret:    getEnv("JWT_SECRET", ""),
			JWTIssuer:    getEnv("JWT_ISSUER", ""),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
		Payment: PaymentConfig{
			BaseURL:             getEnv("CASHFREE_BASE_URL", "https://sandbox.cashfree.com/pg"),
			ClientID:            getEnv("CASHFREE_CLIENT_ID", ""),
			ClientSecret:        getEnv("CASHFREE_CLIENT_SECRET", ""),
			APIVersion:          getEnv("CASHFREE_API_VERSION", DefaultAPIVersion),
			ReturnURL:           getEnv("PAYMENT_RETURN_URL", ""),
			NotifyURL:           getEnv("PAYMENT_NOTIFY_URL", ""),
			HostedCheckoutURL:   getEnv("CASHFREE_HOSTED_CHECKOUT_URL", ""),
			RequestTimeout:      getEnvAsDuration("PAYMENT_REQUEST_TIMEOUT", 30*time.Second),
			CheckoutEnvironment: getEnv("CASHFREE_ENVIRONMENT", DefaultCheckoutEnvironment),
			EmbeddedCheckout:    getEnvAsBool("CASHFREE_EMBEDDED_CHECKOUT", true),
		},
		Verification: VerificationConfig{
			MaxAttempts:    getEnvAsInt("VERIFY_MAX_ATTEMPTS", DefaultVerifyAttempts),
			Delay:          getEnvAsDuration("VERIFY_DELAY", DefaultVerifyDelay),
			Backoff:        getEnv("VERIFY_BACKOFF", "constant"),
			MaxDelay:       getEnvAsDuration("VERIFY_MAX_DELAY", 0),
			Workers:        getEnvAsInt("VERIFY_WORKERS", 4),
			QueueSize:      getEnvAsInt("VERIFY_QUEUE_SIZE", 100),
			AttemptTimeout: getEnvAsDuration("VERIFY_ATTEMPT_TIMEOUT", DefaultVerifyAttemptTimeout),
		},
		Messaging: MessagingConfig{
			Enabled:  getEnvAsBool("RABBITMQ_ENABLED", false),
			URL:      getEnv("RABBITMQ_URL", ""),
			Exchange: getEnv("RABBITMQ_EXCHANGE", DefaultExchange),
		},
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsBool(key string, defaultVal bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if err := c.Payment.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("payment config: %v", err))
	}

	if err := c.Verification.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("verification config: %v", err))
	}

	if err := c.Messaging.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("messaging config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.JWTPublicKey == "" && c.JWTSecret == "" {
		return errors.New("one of jwt_public_key or jwt_secret is required")
	}
	if c.JWTPublicKey != "" {
		if _, err := c.GetPublicKey(); err != nil {
			return fmt.Errorf("invalid JWT public key: %w", err)
		}
	}
	if c.JWTSecret != "" && len(c.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 characters")
	}
	return nil
}

func (c *SecurityConfig) GetPublicKey() (*rsa.PublicKey, error) {
	keyData, err := base64.StdEncoding.DecodeString(c.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode public key: %w", err)
	}
	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, errors.New("failed to parse PEM block")
	}
	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("not an RSA public key")
	}
	return rsaPub, nil
}

func (c *PaymentConfig) Validate() error {
	var missing []string
	if c.BaseURL == "" {
		missing = append(missing, "base_url")
	}
	if c.ClientID == "" {
		missing = append(missing, "client_id")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "client_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	switch c.CheckoutEnvironment {
	case "", "sandbox", "production":
	default:
		return fmt.Errorf("checkout_environment must be sandbox or production, got %q", c.CheckoutEnvironment)
	}
	return nil
}

func (c *VerificationConfig) Validate() error {
	if c.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if c.Delay < 0 {
		return errors.New("delay cannot be negative")
	}
	switch c.Backoff {
	case "", "constant", "exponential", "fibonacci":
	default:
		return fmt.Errorf("unknown backoff %q", c.Backoff)
	}
	if c.MaxDelay != 0 && c.MaxDelay < c.Delay {
		return errors.New("max_delay must be >= delay")
	}
	if c.AttemptTimeout < 0 {
		return errors.New("attempt_timeout cannot be negative")
	}
	return nil
}

func (c *MessagingConfig) Validate() error {
	if c.Enabled && c.URL == "" {
		return errors.New("url is required when messaging is enabled")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Payment  PaymentConfig  `yaml:"payment"`
	Storage  StorageConfig  `yaml:"storage"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Auth     AuthConfig     `yaml:"auth"`
	Booking  BookingConfig  `yaml:"booking"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address string `yaml:"address"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
}

// PaymentConfig points at a Razorpay compatible orders API.
type PaymentConfig struct {
	BaseURL          string `yaml:"base_url"`
	KeyID            string `yaml:"key_id"`
	KeySecret        string `yaml:"key_secret"`
	BreakerThreshold int64  `yaml:"breaker_threshold"`
}

type StorageConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Region        string `yaml:"region"`
	Bucket        string `yaml:"bucket"`
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	UseSSL        bool   `yaml:"use_ssl"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type BookingConfig struct {
	Currency              string `yaml:"currency"`
	VerifyLockTTLSeconds  int    `yaml:"verify_lock_ttl_seconds"`
	ViewCacheTTLSeconds   int    `yaml:"view_cache_ttl_seconds"`
	GatewayTimeoutSeconds int    `yaml:"gateway_timeout_seconds"`
	StorageTimeoutSeconds int    `yaml:"storage_timeout_seconds"`
	EmailTimeoutSeconds   int    `yaml:"email_timeout_seconds"`
}

func (b BookingConfig) VerifyLockTTL() time.Duration {
	return seconds(b.VerifyLockTTLSeconds, 30)
}

func (b BookingConfig) ViewCacheTTL() time.Duration {
	return seconds(b.ViewCacheTTLSeconds, 60)
}

func (b BookingConfig) GatewayTimeout() time.Duration {
	return seconds(b.GatewayTimeoutSeconds, 10)
}

func (b BookingConfig) StorageTimeout() time.Duration {
	return seconds(b.StorageTimeoutSeconds, 15)
}

func (b BookingConfig) EmailTimeout() time.Duration {
	return seconds(b.EmailTimeoutSeconds, 10)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// secrets are never expected in the YAML file in production; a non-empty
// environment value always wins.
type secrets struct {
	DatabasePassword  string `envconfig:"DATABASE_PASSWORD"`
	RazorpayKeyID     string `envconfig:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret string `envconfig:"RAZORPAY_KEY_SECRET"`
	StorageAccessKey  string `envconfig:"STORAGE_ACCESS_KEY"`
	StorageSecretKey  string `envconfig:"STORAGE_SECRET_KEY"`
	SMTPPassword      string `envconfig:"SMTP_PASSWORD"`
	JWTSecret         string `envconfig:"JWT_SECRET"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	var s secrets
	if err := envconfig.Process("", &s); err != nil {
		return fmt.Errorf("failed to read env: %w", err)
	}
	override(&c.Database.Password, s.DatabasePassword)
	override(&c.Payment.KeyID, s.RazorpayKeyID)
	override(&c.Payment.KeySecret, s.RazorpayKeySecret)
	override(&c.Storage.AccessKey, s.StorageAccessKey)
	override(&c.Storage.SecretKey, s.StorageSecretKey)
	override(&c.SMTP.Password, s.SMTPPassword)
	override(&c.Auth.JWTSecret, s.JWTSecret)
	return nil
}

func (c *Config) setDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.Booking.Currency == "" {
		c.Booking.Currency = "INR"
	}
	if c.Payment.BaseURL == "" {
		c.Payment.BaseURL = "https://api.razorpay.com"
	}
	if c.Payment.BreakerThreshold == 0 {
		c.Payment.BreakerThreshold = 5
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate reports settings the booking pipeline cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Payment.KeySecret == "" {
		errs = append(errs, errors.New("payment.key_secret is required"))
	}
	if c.Storage.Bucket == "" {
		errs = append(errs, errors.New("storage.bucket is required"))
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("auth.jwt_secret is required"))
	}
	return errors.Join(errs...)
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func seconds(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

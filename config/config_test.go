package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
http:
  address: ":9090"
database:
  host: localhost
  port: 5432
  user: visit
  password: from-file
  name: visits
  ssl_mode: disable
payment:
  key_id: rzp_test
  key_secret: file-secret
storage:
  region: ap-south-1
  bucket: receipts
auth:
  jwt_secret: jwt-file
booking:
  gateway_timeout_seconds: 3
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, "host=localhost port=5432 user=visit password=from-file dbname=visits sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "INR", cfg.Booking.Currency)
	assert.Equal(t, "https://api.razorpay.com", cfg.Payment.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.Booking.GatewayTimeout())
	assert.Equal(t, 15*time.Second, cfg.Booking.StorageTimeout())
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("RAZORPAY_KEY_SECRET", "env-secret")
	t.Setenv("DATABASE_PASSWORD", "env-db")

	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "env-secret", cfg.Payment.KeySecret)
	assert.Equal(t, "env-db", cfg.Database.Password)
	assert.Equal(t, "jwt-file", cfg.Auth.JWTSecret)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment.key_secret")
	assert.Contains(t, err.Error(), "storage.bucket")
	assert.Contains(t, err.Error(), "auth.jwt_secret")
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Domenick1991/visitbooking/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, "auth:\n  jwt_secret: cli-secret\n")

	out, err := run(t, "token", "--config", path, "--sub", "u-1", "--role", "admin", "--email", "ops@example.com")
	require.NoError(t, err)

	claims, err := auth.NewIssuer("cli-secret").ParseValidate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Sub)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, "ops@example.com", claims.Email)
	assert.True(t, claims.IsAdmin())

	_, err = auth.NewIssuer("other-secret").ParseValidate(strings.TrimSpace(out))
	assert.Error(t, err)
}

func TestTokenCmd_DefaultsToVisitor(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	path := writeConfig(t, "auth:\n  jwt_secret: cli-secret\n")

	out, err := run(t, "token", "-c", path, "--sub", "u-2")
	require.NoError(t, err)

	claims, err := auth.NewIssuer("cli-secret").ParseValidate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, auth.RoleVisitor, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestTokenCmd_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	withSecret := writeConfig(t, "auth:\n  jwt_secret: cli-secret\n")
	noSecret := writeConfig(t, "http:\n  address: \":9090\"\n")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing sub", []string{"token", "--config", withSecret}, `"sub"`},
		{"missing secret", []string{"token", "--config", noSecret, "--sub", "u-1"}, "auth.jwt_secret is required"},
		{"missing config", []string{"token", "--config", filepath.Join(t.TempDir(), "absent.yaml"), "--sub", "u-1"}, "failed to read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestListCmd_RequiresVisitor(t *testing.T) {
	_, err := run(t, "list", "--config", writeConfig(t, "auth:\n  jwt_secret: x\n"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), `"visitor"`)
}

func TestCancelCmd_RequiresBookingID(t *testing.T) {
	_, err := run(t, "cancel", "--config", writeConfig(t, "auth:\n  jwt_secret: x\n"))

	assert.Error(t, err)
}

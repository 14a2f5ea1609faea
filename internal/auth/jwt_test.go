package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer := NewIssuer("secret")

	token, err := issuer.CreateAccessToken(Claims{Sub: "u-1", Email: "asha@example.com", Name: "Asha Rao"}, time.Hour)
	require.NoError(t, err)

	claims, err := issuer.ParseValidate(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Sub)
	assert.Equal(t, RoleVisitor, claims.Role)
	assert.Equal(t, "Asha Rao", claims.Name)
	assert.False(t, claims.IsAdmin())
}

func TestIssuer_WrongSecret(t *testing.T) {
	token, err := NewIssuer("secret").CreateAccessToken(Claims{Sub: "u-1"}, time.Hour)
	require.NoError(t, err)

	_, err = NewIssuer("other").ParseValidate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_Expired(t *testing.T) {
	issuer := NewIssuer("secret")
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := issuer.CreateAccessToken(Claims{Sub: "u-1", Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)

	_, err = issuer.ParseValidate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_MissingSubject(t *testing.T) {
	_, err := NewIssuer("secret").CreateAccessToken(Claims{}, time.Hour)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

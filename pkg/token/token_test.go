package token

import (
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PolicyWizard/pkg/errors"
)

func signWith(t *testing.T, key string, claims jwtv5.MapClaims) string {
	t.Helper()
	signed, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return signed
}

func TestGenerateAndDecodeRole(t *testing.T) {
	require.NoError(t, InitWithSecret("test-secret", time.Hour))

	signed, expiresAt, err := Generate("u-1", "alice@example.com", "agent")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	role, err := DecodeRole(signed)
	require.NoError(t, err)
	assert.Equal(t, "agent", role)
}

func TestDecodeRole_RejectsForeignSignature(t *testing.T) {
	require.NoError(t, InitWithSecret("test-secret", time.Hour))

	forged := signWith(t, "other-secret", jwtv5.MapClaims{
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	_, err := DecodeRole(forged)
	assert.Error(t, err)
}

func TestDecodeRole_UnverifiedWithoutSecret(t *testing.T) {
	require.NoError(t, InitWithSecret("test-secret", time.Hour))
	saved := signingKey
	signingKey = nil
	t.Cleanup(func() { signingKey = saved })

	upstream := signWith(t, "upstream-secret", jwtv5.MapClaims{
		"_doc": map[string]interface{}{"role": "customer", "email": "bob@example.com"},
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	role, err := DecodeRole(upstream)
	require.NoError(t, err)
	assert.Equal(t, "customer", role)
}

func TestDecodeRole_MissingRole(t *testing.T) {
	require.NoError(t, InitWithSecret("test-secret", time.Hour))

	noRole := signWith(t, "test-secret", jwtv5.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	_, err := DecodeRole(noRole)
	assert.ErrorIs(t, err, errors.ErrRoleNotFound)
}

func TestRoleFromClaims(t *testing.T) {
	tests := []struct {
		name   string
		claims map[string]interface{}
		want   string
		ok     bool
	}{
		{name: "doc_role", claims: map[string]interface{}{"_doc": map[string]interface{}{"role": "agent"}}, want: "agent", ok: true},
		{name: "top_level_role", claims: map[string]interface{}{"role": "admin"}, want: "admin", ok: true},
		{name: "doc_wins", claims: map[string]interface{}{"_doc": map[string]interface{}{"role": "agent"}, "role": "admin"}, want: "agent", ok: true},
		{name: "empty", claims: map[string]interface{}{}, want: "", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RoleFromClaims(tt.claims)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

// Package services provides external service integrations and technical concerns like payments, notifications and tokens
package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestTokenService creates a token service for testing with symmetric key
func createTestTokenService(ttl time.Duration) (TokenService, error) {
	return NewTokenService(
		ttl,
		"test-issuer",
		"test-audience",
		false, // useRSAKeys
		"",    // privateKeyPEM
		"",    // publicKeyPEM
		"test-secret-key-for-jwt-signing-32-chars", // secretKey
	)
}

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name        string
		useRSAKeys  bool
		secretKey   string
		expectError bool
	}{
		{
			name:        "valid symmetric key configuration",
			secretKey:   "test-secret-key-for-jwt-signing-32-chars",
			expectError: false,
		},
		{
			name:        "missing secret key",
			secretKey:   "",
			expectError: true,
		},
		{
			name:        "rsa without keys",
			useRSAKeys:  true,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service, err := NewTokenService(time.Hour, "issuer", "audience", tt.useRSAKeys, "", "", tt.secretKey)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, service)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, service)
		})
	}
}

func TestAdminTokenRoundTrip(t *testing.T) {
	service, err := createTestTokenService(time.Hour)
	require.NoError(t, err)

	token, err := service.GenerateAdminToken("ops@healthiphi.com")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAdminToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@healthiphi.com", claims.Subject)
	assert.Equal(t, adminTokenType, claims.TokenType)
	assert.NotEmpty(t, claims.TokenID)
	assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
}

func TestGenerateAdminTokenRequiresSubject(t *testing.T) {
	service, err := createTestTokenService(time.Hour)
	require.NoError(t, err)

	_, err = service.GenerateAdminToken("")
	assert.Error(t, err)
}

func TestValidateAdminToken(t *testing.T) {
	service, err := createTestTokenService(time.Hour)
	require.NoError(t, err)

	other, err := NewTokenService(time.Hour, "test-issuer", "test-audience", false, "", "", "another-secret-key-for-jwt-signing-32")
	require.NoError(t, err)
	foreignToken, err := other.GenerateAdminToken("intruder")
	require.NoError(t, err)

	otherAudience, err := NewTokenService(time.Hour, "test-issuer", "someone-else", false, "", "", "test-secret-key-for-jwt-signing-32-chars")
	require.NoError(t, err)
	wrongAudienceToken, err := otherAudience.GenerateAdminToken("ops")
	require.NoError(t, err)

	wrongType := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "ops",
		"token_type": "refresh",
		"jti":        "abc",
		"iat":        time.Now().Unix(),
		"exp":        time.Now().Add(time.Hour).Unix(),
		"iss":        "test-issuer",
		"aud":        "test-audience",
	})
	wrongTypeToken, err := wrongType.SignedString([]byte("test-secret-key-for-jwt-signing-32-chars"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "garbage", token: "not-a-jwt", wantErr: ErrTokenInvalid},
		{name: "empty", token: "", wantErr: ErrTokenInvalid},
		{name: "signed with another key", token: foreignToken, wantErr: ErrTokenInvalid},
		{name: "wrong audience", token: wrongAudienceToken, wantErr: ErrTokenInvalid},
		{name: "wrong token type", token: wrongTypeToken, wantErr: ErrTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.ValidateAdminToken(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, claims)
		})
	}
}

func TestAdminTokenExpiration(t *testing.T) {
	service, err := createTestTokenService(-time.Minute)
	require.NoError(t, err)

	token, err := service.GenerateAdminToken("ops")
	require.NoError(t, err)

	claims, err := service.ValidateAdminToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.Nil(t, claims)
}

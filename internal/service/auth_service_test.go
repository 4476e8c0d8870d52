package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/discussion-api/internal/models"
	appErrors "github.com/noah-isme/discussion-api/pkg/errors"
)

func TestAuthServiceIssueAndValidate(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "discussion-api"})

	token, expiresAt, err := svc.IssueToken(models.Actor{ID: "teacher-1", Capability: models.CapabilityModerator}, "Teacher")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.CapabilityModerator, claims.Capability)
	assert.Equal(t, "discussion-api", claims.Issuer)
	assert.True(t, claims.Actor().IsModerator())
}

func TestAuthServiceRejectsBadTokens(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	other := NewAuthService(nil, AuthConfig{AccessTokenSecret: "different"})

	token, _, err := other.IssueToken(models.Actor{ID: "u1", Capability: models.CapabilityStudent}, "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	requireAppErrorCode(t, err, appErrors.ErrUnauthorized.Code)

	_, err = svc.ValidateToken("not-a-token")
	requireAppErrorCode(t, err, appErrors.ErrUnauthorized.Code)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	requireAppErrorCode(t, err, appErrors.ErrUnauthorized.Code)

	_, _, err = svc.IssueToken(models.Actor{}, "")
	requireAppErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestAuthServiceNormalisesUnknownCapability(t *testing.T) {
	svc := NewAuthService(nil, AuthConfig{AccessTokenSecret: "secret"})
	token, _, err := svc.IssueToken(models.Actor{ID: "u1", Capability: models.Capability("admin")}, "")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.CapabilityOther, claims.Capability)
}

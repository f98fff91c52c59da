package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:                 "test-access-secret",
		RefreshSecret:          "test-refresh-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "praxis-test",
	})
}

func TestJWTService_GenerateAndValidate(t *testing.T) {
	svc := newTestJWTService()
	practiceID := uuid.New()
	userID := uuid.New()

	pair, err := svc.GenerateTokenPair(GenerateTokenInput{
		PracticeID: practiceID,
		UserID:     userID,
		Email:      "mediator@example.com",
		Role:       identity.UserRoleMediator,
	})
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.Equal(t, "Bearer", pair.TokenType)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, practiceID.String(), claims.PracticeID)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "mediator@example.com", claims.Email)
	assert.Equal(t, identity.UserRoleMediator, claims.GetRole())

	gotPractice, err := claims.GetPracticeUUID()
	require.NoError(t, err)
	assert.Equal(t, practiceID, gotPractice)
}

func TestJWTService_RejectsWrongTokenType(t *testing.T) {
	svc := newTestJWTService()

	pair, err := svc.GenerateTokenPair(GenerateTokenInput{
		PracticeID: uuid.New(),
		UserID:     uuid.New(),
		Role:       identity.UserRoleOwner,
	})
	require.NoError(t, err)

	// Refresh token signed with a different secret is rejected as access token
	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.Error(t, err)

	// Access token presented as refresh token fails signature check
	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	assert.Error(t, err)
}

func TestJWTService_SharedSecretEnforcesTokenType(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                 "shared-secret",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "praxis-test",
	})

	pair, err := svc.GenerateTokenPair(GenerateTokenInput{
		PracticeID: uuid.New(),
		UserID:     uuid.New(),
		Role:       identity.UserRoleStaff,
	})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidTokenType)
}

func TestJWTService_RejectsTamperedToken(t *testing.T) {
	svc := newTestJWTService()

	pair, err := svc.GenerateTokenPair(GenerateTokenInput{
		PracticeID: uuid.New(),
		UserID:     uuid.New(),
		Role:       identity.UserRoleStaff,
	})
	require.NoError(t, err)

	tampered := pair.AccessToken[:len(pair.AccessToken)-2] + "xx"
	_, err = svc.ValidateAccessToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	svc := NewJWTService(config.JWTConfig{
		Secret:                 "test-secret",
		AccessTokenExpiration:  -time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "praxis-test",
	})

	pair, err := svc.GenerateTokenPair(GenerateTokenInput{
		PracticeID: uuid.New(),
		UserID:     uuid.New(),
		Role:       identity.UserRoleOwner,
	})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

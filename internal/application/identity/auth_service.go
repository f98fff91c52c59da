package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// AuthService handles authentication for practice users
type AuthService struct {
	userRepo     identity.UserRepository
	practiceRepo identity.PracticeRepository
	jwtService   *auth.JWTService
	logger       *zap.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	userRepo identity.UserRepository,
	practiceRepo identity.PracticeRepository,
	jwtService *auth.JWTService,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		practiceRepo: practiceRepo,
		jwtService:   jwtService,
		logger:       logger,
	}
}

// LoginInput contains login request data
type LoginInput struct {
	PracticeCode string `json:"practice_code" binding:"required"`
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required"`
	IP           string `json:"-"`
}

// UserInfo is the user shape embedded in auth responses
type UserInfo struct {
	ID          uuid.UUID `json:"id"`
	PracticeID  uuid.UUID `json:"practice_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	Status      string    `json:"status"`
}

// PracticeInfo is the practice shape embedded in auth responses
type PracticeInfo struct {
	ID     uuid.UUID `json:"id"`
	Code   string    `json:"code"`
	Name   string    `json:"name"`
	Status string    `json:"status"`
}

// LoginResult contains tokens and the authenticated user
type LoginResult struct {
	AccessToken           string       `json:"access_token"`
	RefreshToken          string       `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time    `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time    `json:"refresh_token_expires_at"`
	TokenType             string       `json:"token_type"`
	User                  UserInfo     `json:"user"`
	Practice              PracticeInfo `json:"practice"`
}

// RefreshTokenInput contains a refresh request
type RefreshTokenInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// RefreshTokenResult contains the new token pair
type RefreshTokenResult struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// ChangePasswordInput contains a password change request
type ChangePasswordInput struct {
	UserID      uuid.UUID `json:"-"`
	PracticeID  uuid.UUID `json:"-"`
	OldPassword string    `json:"old_password" binding:"required"`
	NewPassword string    `json:"new_password" binding:"required,min=8"`
}

// Login authenticates a user against their practice and returns tokens.
// A suspended practice still accepts owner logins so billing can be fixed;
// an inactive practice rejects everyone.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	practice, err := s.practiceRepo.FindByCode(ctx, input.PracticeCode)
	if err != nil {
		s.logger.Warn("Login attempt for unknown practice", zap.String("practice_code", input.PracticeCode))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid credentials")
	}
	if practice.Status == identity.PracticeStatusInactive {
		return nil, shared.NewDomainError("PRACTICE_INACTIVE", "Practice is no longer active")
	}

	user, err := s.userRepo.FindByEmail(ctx, practice.ID, input.Email)
	if err != nil {
		s.logger.Warn("Login attempt for unknown user",
			zap.String("practice_code", input.PracticeCode))
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid credentials")
	}

	if practice.Status == identity.PracticeStatusSuspended && !user.Role.CanManageBilling() {
		return nil, shared.NewDomainError("PRACTICE_SUSPENDED", "Practice is suspended; contact the practice owner")
	}

	if user.IsLocked() {
		s.logger.Warn("Login attempt for locked account", zap.String("user_id", user.ID.String()))
		return nil, shared.NewDomainError("ACCOUNT_LOCKED", "Account is locked; try again later")
	}
	if !user.CanLogin() {
		switch user.Status {
		case identity.UserStatusPending:
			return nil, shared.NewDomainError("ACCOUNT_PENDING", "Account is pending activation")
		case identity.UserStatusDeactivated:
			return nil, shared.NewDomainError("ACCOUNT_DEACTIVATED", "Account has been deactivated")
		}
		return nil, shared.NewDomainError("ACCOUNT_INACTIVE", "Account is not active")
	}

	if !user.VerifyPassword(input.Password) {
		user.RecordFailedLogin()
		if err := s.userRepo.Save(ctx, user); err != nil {
			s.logger.Error("Failed to save user after login failure", zap.Error(err))
		}
		if user.IsLocked() {
			s.logger.Warn("Account locked after repeated failures",
				zap.String("user_id", user.ID.String()),
				zap.Int("failed_attempts", user.FailedAttempts))
			return nil, shared.NewDomainError("ACCOUNT_LOCKED", "Too many failed attempts; account has been locked")
		}
		return nil, shared.NewDomainError("INVALID_CREDENTIALS", "Invalid credentials")
	}

	tokenPair, err := s.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		PracticeID: practice.ID,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
	})
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to generate authentication tokens")
	}

	user.RecordLogin(input.IP)
	if err := s.userRepo.Save(ctx, user); err != nil {
		// Tokens are already issued; failing the login here would only
		// punish the user for a bookkeeping write
		s.logger.Error("Failed to record login", zap.Error(err))
	}

	s.logger.Info("User logged in",
		zap.String("practice_id", practice.ID.String()),
		zap.String("user_id", user.ID.String()))

	return &LoginResult{
		AccessToken:           tokenPair.AccessToken,
		RefreshToken:          tokenPair.RefreshToken,
		AccessTokenExpiresAt:  tokenPair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokenPair.RefreshTokenExpiresAt,
		TokenType:             tokenPair.TokenType,
		User:                  toUserInfo(user),
		Practice: PracticeInfo{
			ID:     practice.ID,
			Code:   practice.Code,
			Name:   practice.Name,
			Status: string(practice.Status),
		},
	}, nil
}

// RefreshToken exchanges a valid refresh token for a new token pair.
// The role is re-read from the user record so role changes take effect
// at the next refresh.
func (s *AuthService) RefreshToken(ctx context.Context, input RefreshTokenInput) (*RefreshTokenResult, error) {
	claims, err := s.jwtService.ValidateRefreshToken(input.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrExpiredToken):
			return nil, shared.NewDomainError("TOKEN_EXPIRED", "Refresh token has expired")
		default:
			return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid refresh token")
		}
	}

	userID, err := claims.GetUserUUID()
	if err != nil {
		return nil, shared.NewDomainError("TOKEN_INVALID", "Invalid user ID in token")
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("Token refresh for unknown user", zap.String("user_id", userID.String()))
		return nil, shared.NewDomainError("USER_NOT_FOUND", "User not found")
	}
	if !user.CanLogin() {
		return nil, shared.NewDomainError("ACCOUNT_INACTIVE", "Account is no longer active")
	}

	tokenPair, err := s.jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		PracticeID: user.PracticeID,
		UserID:     user.ID,
		Email:      user.Email,
		Role:       user.Role,
	})
	if err != nil {
		s.logger.Error("Failed to generate token pair on refresh", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to refresh tokens")
	}

	return &RefreshTokenResult{
		AccessToken:           tokenPair.AccessToken,
		RefreshToken:          tokenPair.RefreshToken,
		AccessTokenExpiresAt:  tokenPair.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: tokenPair.RefreshTokenExpiresAt,
		TokenType:             tokenPair.TokenType,
	}, nil
}

// GetCurrentUser returns the authenticated user's profile
func (s *AuthService) GetCurrentUser(ctx context.Context, practiceID, userID uuid.UUID) (*UserInfo, error) {
	user, err := s.userRepo.FindByIDForPractice(ctx, practiceID, userID)
	if err != nil {
		return nil, shared.NewDomainError("USER_NOT_FOUND", "User not found")
	}

	info := toUserInfo(user)
	return &info, nil
}

// ChangePassword changes the authenticated user's own password
func (s *AuthService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	user, err := s.userRepo.FindByIDForPractice(ctx, input.PracticeID, input.UserID)
	if err != nil {
		return shared.NewDomainError("USER_NOT_FOUND", "User not found")
	}

	if err := user.ChangePassword(input.OldPassword, input.NewPassword); err != nil {
		return err
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		s.logger.Error("Failed to save user after password change", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to update password")
	}

	s.logger.Info("Password changed", zap.String("user_id", user.ID.String()))
	return nil
}

func toUserInfo(user *identity.User) UserInfo {
	return UserInfo{
		ID:          user.ID,
		PracticeID:  user.PracticeID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		Status:      string(user.Status),
	}
}

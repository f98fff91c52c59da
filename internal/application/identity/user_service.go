package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// UserService manages the staff accounts of a practice
type UserService struct {
	userRepo     identity.UserRepository
	practiceRepo identity.PracticeRepository
	eventBus     shared.EventBus
	logger       *zap.Logger
}

// NewUserService creates a new UserService
func NewUserService(
	userRepo identity.UserRepository,
	practiceRepo identity.PracticeRepository,
	eventBus shared.EventBus,
	logger *zap.Logger,
) *UserService {
	return &UserService{
		userRepo:     userRepo,
		practiceRepo: practiceRepo,
		eventBus:     eventBus,
		logger:       logger,
	}
}

// CreateUserInput contains the fields for adding a staff member
type CreateUserInput struct {
	Email       string            `json:"email" binding:"required,email"`
	Password    string            `json:"password" binding:"required,min=8"`
	DisplayName string            `json:"display_name"`
	Role        identity.UserRole `json:"role" binding:"required"`
}

// UpdateUserInput contains the editable user fields
type UpdateUserInput struct {
	DisplayName string            `json:"display_name"`
	Role        identity.UserRole `json:"role" binding:"required"`
}

// CreateUser adds a staff member to the practice, enforcing the practice's
// user limit
func (s *UserService) CreateUser(ctx context.Context, practiceID uuid.UUID, input CreateUserInput) (*UserInfo, error) {
	practice, err := s.practiceRepo.FindByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Practice not found")
		}
		return nil, err
	}

	count, err := s.userRepo.CountForPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	if count >= int64(practice.Settings.MaxUsers) {
		return nil, shared.NewDomainError("USER_LIMIT_REACHED",
			fmt.Sprintf("Practice has reached its limit of %d users", practice.Settings.MaxUsers))
	}

	if _, err := s.userRepo.FindByEmail(ctx, practiceID, input.Email); err == nil {
		return nil, shared.NewDomainError("EMAIL_TAKEN", "A user with this email already exists")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	user, err := identity.NewActiveUser(practiceID, input.Email, input.Password, input.Role)
	if err != nil {
		return nil, err
	}
	if input.DisplayName != "" {
		if err := user.SetDisplayName(input.DisplayName); err != nil {
			return nil, err
		}
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}
	s.flushEvents(ctx, user)

	s.logger.Info("User created",
		zap.String("practice_id", practiceID.String()),
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(input.Role)))

	info := toUserInfo(user)
	return &info, nil
}

// GetUser returns a user within the practice
func (s *UserService) GetUser(ctx context.Context, practiceID, userID uuid.UUID) (*UserInfo, error) {
	user, err := s.loadUser(ctx, practiceID, userID)
	if err != nil {
		return nil, err
	}
	info := toUserInfo(user)
	return &info, nil
}

// ListUsers returns the practice's users
func (s *UserService) ListUsers(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]UserInfo, int64, error) {
	users, err := s.userRepo.FindAllForPractice(ctx, practiceID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.userRepo.CountForPractice(ctx, practiceID)
	if err != nil {
		return nil, 0, err
	}

	infos := make([]UserInfo, 0, len(users))
	for i := range users {
		infos = append(infos, toUserInfo(&users[i]))
	}
	return infos, total, nil
}

// UpdateUser updates a user's display name and role. The practice's last
// owner cannot be demoted.
func (s *UserService) UpdateUser(ctx context.Context, practiceID, userID uuid.UUID, input UpdateUserInput) (*UserInfo, error) {
	user, err := s.loadUser(ctx, practiceID, userID)
	if err != nil {
		return nil, err
	}

	if user.Role == identity.UserRoleOwner && input.Role != identity.UserRoleOwner {
		if err := s.ensureAnotherOwner(ctx, practiceID, userID); err != nil {
			return nil, err
		}
	}

	if err := user.SetDisplayName(input.DisplayName); err != nil {
		return nil, err
	}
	if err := user.ChangeRole(input.Role); err != nil {
		return nil, err
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	info := toUserInfo(user)
	return &info, nil
}

// DeactivateUser deactivates a staff member. The last owner cannot be
// deactivated.
func (s *UserService) DeactivateUser(ctx context.Context, practiceID, userID uuid.UUID) error {
	user, err := s.loadUser(ctx, practiceID, userID)
	if err != nil {
		return err
	}

	if user.Role == identity.UserRoleOwner {
		if err := s.ensureAnotherOwner(ctx, practiceID, userID); err != nil {
			return err
		}
	}

	if err := user.Deactivate(); err != nil {
		return err
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.Info("User deactivated",
		zap.String("practice_id", practiceID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// ActivateUser reactivates a pending or deactivated user
func (s *UserService) ActivateUser(ctx context.Context, practiceID, userID uuid.UUID) error {
	user, err := s.loadUser(ctx, practiceID, userID)
	if err != nil {
		return err
	}

	if err := user.Activate(); err != nil {
		return err
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// ResetPassword sets a new password for a user without the old one.
// Reserved for practice owners resetting staff accounts.
func (s *UserService) ResetPassword(ctx context.Context, practiceID, userID uuid.UUID, newPassword string) error {
	user, err := s.loadUser(ctx, practiceID, userID)
	if err != nil {
		return err
	}

	if err := user.SetPassword(newPassword); err != nil {
		return err
	}
	user.MustChangePassword = true

	if err := s.userRepo.Save(ctx, user); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.Info("Password reset",
		zap.String("practice_id", practiceID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

func (s *UserService) loadUser(ctx context.Context, practiceID, userID uuid.UUID) (*identity.User, error) {
	user, err := s.userRepo.FindByIDForPractice(ctx, practiceID, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "User not found")
		}
		return nil, err
	}
	return user, nil
}

// ensureAnotherOwner verifies the practice keeps at least one other active
// owner besides the given user
func (s *UserService) ensureAnotherOwner(ctx context.Context, practiceID, excludeUserID uuid.UUID) error {
	users, err := s.userRepo.FindAllForPractice(ctx, practiceID, shared.Filter{})
	if err != nil {
		return err
	}
	for i := range users {
		u := &users[i]
		if u.ID != excludeUserID && u.Role == identity.UserRoleOwner && u.Status == identity.UserStatusActive {
			return nil
		}
	}
	return shared.NewDomainError("LAST_OWNER", "Practice must keep at least one active owner")
}

func (s *UserService) flushEvents(ctx context.Context, root shared.AggregateRoot) {
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	root.ClearDomainEvents()
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish events", zap.Error(err))
	}
}

package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainbilling "github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// PracticeService manages practice registration and settings
type PracticeService struct {
	practiceRepo     identity.PracticeRepository
	userRepo         identity.UserRepository
	subscriptionRepo domainbilling.SubscriptionRepository
	eventBus         shared.EventBus
	trialDays        int
	logger           *zap.Logger
}

// PracticeServiceConfig contains the dependencies for PracticeService
type PracticeServiceConfig struct {
	PracticeRepo     identity.PracticeRepository
	UserRepo         identity.UserRepository
	SubscriptionRepo domainbilling.SubscriptionRepository
	EventBus         shared.EventBus
	TrialDays        int
	Logger           *zap.Logger
}

// NewPracticeService creates a new PracticeService
func NewPracticeService(cfg PracticeServiceConfig) *PracticeService {
	trialDays := cfg.TrialDays
	if trialDays <= 0 {
		trialDays = 14
	}
	return &PracticeService{
		practiceRepo:     cfg.PracticeRepo,
		userRepo:         cfg.UserRepo,
		subscriptionRepo: cfg.SubscriptionRepo,
		eventBus:         cfg.EventBus,
		trialDays:        trialDays,
		logger:           cfg.Logger,
	}
}

// RegisterPracticeInput contains the fields for practice sign-up
type RegisterPracticeInput struct {
	Code          string `json:"code" binding:"required"`
	Name          string `json:"name" binding:"required"`
	OwnerEmail    string `json:"owner_email" binding:"required,email"`
	OwnerPassword string `json:"owner_password" binding:"required,min=8"`
	OwnerName     string `json:"owner_name"`
	ContactPhone  string `json:"contact_phone"`
}

// UpdatePracticeInput contains the editable practice fields
type UpdatePracticeInput struct {
	Name         string `json:"name" binding:"required"`
	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
}

// PracticeResponse represents a practice in API responses
type PracticeResponse struct {
	ID               uuid.UUID                 `json:"id"`
	Code             string                    `json:"code"`
	Name             string                    `json:"name"`
	Status           string                    `json:"status"`
	ContactName      string                    `json:"contact_name,omitempty"`
	ContactPhone     string                    `json:"contact_phone,omitempty"`
	ContactEmail     string                    `json:"contact_email,omitempty"`
	StripeAccountID  string                    `json:"stripe_account_id,omitempty"`
	ChargesEnabled   bool                      `json:"charges_enabled"`
	PayoutsEnabled   bool                      `json:"payouts_enabled"`
	DetailsSubmitted bool                      `json:"details_submitted"`
	TrialEndsAt      *time.Time                `json:"trial_ends_at,omitempty"`
	Settings         identity.PracticeSettings `json:"settings"`
	CreatedAt        time.Time                 `json:"created_at"`
}

// RegisterPracticeResult contains the registered practice and its owner
type RegisterPracticeResult struct {
	Practice PracticeResponse `json:"practice"`
	Owner    UserInfo         `json:"owner"`
}

// RegisterPractice signs up a new practice: the practice record in trial
// status, its owner account, and the default free subscription record.
func (s *PracticeService) RegisterPractice(ctx context.Context, input RegisterPracticeInput) (*RegisterPracticeResult, error) {
	_, err := s.practiceRepo.FindByCode(ctx, input.Code)
	if err == nil {
		return nil, shared.NewDomainError("CODE_TAKEN", "Practice code is already taken")
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	practice, err := identity.NewTrialPractice(input.Code, input.Name, s.trialDays)
	if err != nil {
		return nil, err
	}
	if err := practice.SetContact(input.OwnerName, input.ContactPhone, input.OwnerEmail); err != nil {
		return nil, err
	}
	if err := s.practiceRepo.Save(ctx, practice); err != nil {
		return nil, fmt.Errorf("failed to save practice: %w", err)
	}
	s.flushEvents(ctx, practice)

	owner, err := identity.NewActiveUser(practice.ID, input.OwnerEmail, input.OwnerPassword, identity.UserRoleOwner)
	if err != nil {
		return nil, err
	}
	if input.OwnerName != "" {
		if err := owner.SetDisplayName(input.OwnerName); err != nil {
			return nil, err
		}
	}
	if err := s.userRepo.Save(ctx, owner); err != nil {
		return nil, fmt.Errorf("failed to save owner: %w", err)
	}
	s.flushEvents(ctx, owner)

	sub, err := domainbilling.NewSubscription(practice.ID, domainbilling.SubscriptionPlanFree)
	if err != nil {
		return nil, err
	}
	if err := s.subscriptionRepo.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to save subscription: %w", err)
	}
	s.flushEvents(ctx, sub)

	s.logger.Info("Practice registered",
		zap.String("practice_id", practice.ID.String()),
		zap.String("code", practice.Code))

	return &RegisterPracticeResult{
		Practice: toPracticeResponse(practice),
		Owner:    toUserInfo(owner),
	}, nil
}

// GetPractice returns a practice by ID
func (s *PracticeService) GetPractice(ctx context.Context, practiceID uuid.UUID) (*PracticeResponse, error) {
	practice, err := s.loadPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}
	resp := toPracticeResponse(practice)
	return &resp, nil
}

// UpdatePractice updates the practice's basic and contact information
func (s *PracticeService) UpdatePractice(ctx context.Context, practiceID uuid.UUID, input UpdatePracticeInput) (*PracticeResponse, error) {
	practice, err := s.loadPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	if err := practice.Update(input.Name); err != nil {
		return nil, err
	}
	if err := practice.SetContact(input.ContactName, input.ContactPhone, input.ContactEmail); err != nil {
		return nil, err
	}

	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return nil, fmt.Errorf("failed to save practice: %w", err)
	}

	resp := toPracticeResponse(practice)
	return &resp, nil
}

// UpdateSettings replaces the practice settings
func (s *PracticeService) UpdateSettings(ctx context.Context, practiceID uuid.UUID, settings identity.PracticeSettings) (*PracticeResponse, error) {
	practice, err := s.loadPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	if err := practice.UpdateSettings(settings); err != nil {
		return nil, err
	}
	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return nil, fmt.Errorf("failed to save practice: %w", err)
	}

	resp := toPracticeResponse(practice)
	return &resp, nil
}

// ConnectStripeAccount links the practice's Stripe Connect account used to
// collect client payments. Capability flags arrive later via account.updated.
func (s *PracticeService) ConnectStripeAccount(ctx context.Context, practiceID uuid.UUID, accountID string) (*PracticeResponse, error) {
	practice, err := s.loadPractice(ctx, practiceID)
	if err != nil {
		return nil, err
	}

	if err := practice.LinkStripeAccount(accountID); err != nil {
		return nil, err
	}
	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return nil, fmt.Errorf("failed to save practice: %w", err)
	}

	s.logger.Info("Stripe account connected",
		zap.String("practice_id", practiceID.String()),
		zap.String("stripe_account_id", accountID))

	resp := toPracticeResponse(practice)
	return &resp, nil
}

// DeactivatePractice closes the practice
func (s *PracticeService) DeactivatePractice(ctx context.Context, practiceID uuid.UUID) error {
	practice, err := s.loadPractice(ctx, practiceID)
	if err != nil {
		return err
	}

	if err := practice.Deactivate(); err != nil {
		return err
	}
	if err := s.practiceRepo.SaveWithLock(ctx, practice); err != nil {
		return fmt.Errorf("failed to save practice: %w", err)
	}
	s.flushEvents(ctx, practice)

	s.logger.Info("Practice deactivated", zap.String("practice_id", practiceID.String()))
	return nil
}

func (s *PracticeService) loadPractice(ctx context.Context, practiceID uuid.UUID) (*identity.Practice, error) {
	practice, err := s.practiceRepo.FindByID(ctx, practiceID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Practice not found")
		}
		return nil, err
	}
	return practice, nil
}

func (s *PracticeService) flushEvents(ctx context.Context, root shared.AggregateRoot) {
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

func toPracticeResponse(p *identity.Practice) PracticeResponse {
	return PracticeResponse{
		ID:               p.ID,
		Code:             p.Code,
		Name:             p.Name,
		Status:           string(p.Status),
		ContactName:      p.ContactName,
		ContactPhone:     p.ContactPhone,
		ContactEmail:     p.ContactEmail,
		StripeAccountID:  p.StripeAccountID,
		ChargesEnabled:   p.ChargesEnabled,
		PayoutsEnabled:   p.PayoutsEnabled,
		DetailsSubmitted: p.DetailsSubmitted,
		TrialEndsAt:      p.TrialEndsAt,
		Settings:         p.Settings,
		CreatedAt:        p.CreatedAt,
	}
}

package matter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// MatterService manages mediation matters from intake to resolution
type MatterService struct {
	matterRepo  matter.MatterRepository
	clientRepo  identity.ClientRepository
	userRepo    identity.UserRepository
	invoiceRepo billing.InvoiceRepository
	eventBus    shared.EventBus
	logger      *zap.Logger
}

// MatterServiceConfig contains the dependencies for MatterService
type MatterServiceConfig struct {
	MatterRepo  matter.MatterRepository
	ClientRepo  identity.ClientRepository
	UserRepo    identity.UserRepository
	InvoiceRepo billing.InvoiceRepository
	EventBus    shared.EventBus
	Logger      *zap.Logger
}

// NewMatterService creates a new MatterService
func NewMatterService(cfg MatterServiceConfig) *MatterService {
	return &MatterService{
		matterRepo:  cfg.MatterRepo,
		clientRepo:  cfg.ClientRepo,
		userRepo:    cfg.UserRepo,
		invoiceRepo: cfg.InvoiceRepo,
		eventBus:    cfg.EventBus,
		logger:      cfg.Logger,
	}
}

// CreateMatterInput contains the fields for opening a new matter intake
type CreateMatterInput struct {
	Title         string            `json:"title" binding:"required"`
	Type          matter.MatterType `json:"type" binding:"required"`
	ClientID      uuid.UUID         `json:"client_id" binding:"required"`
	OpposingParty string            `json:"opposing_party"`
	Description   string            `json:"description"`
	MediatorID    *uuid.UUID        `json:"mediator_id"`
}

// ScheduleSessionInput contains the fields for scheduling a session
type ScheduleSessionInput struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	DurationMin int       `json:"duration_min" binding:"required,min=1"`
	Location    string    `json:"location"`
}

// ResolveMatterInput contains the outcome of a mediation
type ResolveMatterInput struct {
	OutcomeNotes string `json:"outcome_notes"`
}

// CloseMatterInput contains an administrative close request
type CloseMatterInput struct {
	Reason string `json:"reason" binding:"required"`
}

// MatterListFilter defines the query parameters for listing matters
type MatterListFilter struct {
	Status     string     `form:"status"`
	Type       string     `form:"type"`
	ClientID   *uuid.UUID `form:"client_id"`
	MediatorID *uuid.UUID `form:"mediator_id"`
	Search     string     `form:"search"`
	Page       int        `form:"page"`
	PageSize   int        `form:"page_size"`
}

// SessionResponse represents a mediation session in API responses
type SessionResponse struct {
	ID          uuid.UUID `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	DurationMin int       `json:"duration_min"`
	Location    string    `json:"location,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Held        bool      `json:"held"`
}

// MatterResponse represents a matter in API responses
type MatterResponse struct {
	ID            uuid.UUID         `json:"id"`
	PracticeID    uuid.UUID         `json:"practice_id"`
	MatterNumber  string            `json:"matter_number"`
	Title         string            `json:"title"`
	Type          string            `json:"type"`
	Status        string            `json:"status"`
	ClientID      uuid.UUID         `json:"client_id"`
	ClientName    string            `json:"client_name"`
	OpposingParty string            `json:"opposing_party,omitempty"`
	MediatorID    *uuid.UUID        `json:"mediator_id,omitempty"`
	Sessions      []SessionResponse `json:"sessions"`
	Description   string            `json:"description,omitempty"`
	OpenedAt      *time.Time        `json:"opened_at,omitempty"`
	ResolvedAt    *time.Time        `json:"resolved_at,omitempty"`
	ClosedAt      *time.Time        `json:"closed_at,omitempty"`
	CloseReason   string            `json:"close_reason,omitempty"`
	OutcomeNotes  string            `json:"outcome_notes,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Version       int               `json:"version"`
}

// CreateMatter opens a new matter intake for a client
func (s *MatterService) CreateMatter(ctx context.Context, practiceID uuid.UUID, input CreateMatterInput) (*MatterResponse, error) {
	client, err := s.clientRepo.FindByIDForPractice(ctx, practiceID, input.ClientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Client not found")
		}
		return nil, err
	}
	if client.Archived {
		return nil, shared.NewDomainError("CLIENT_ARCHIVED", "Cannot open a matter for an archived client")
	}

	number, err := s.matterRepo.NextMatterNumber(ctx, practiceID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to generate matter number: %w", err)
	}

	m, err := matter.NewMatter(practiceID, number, input.Title, input.Type, client.ID, client.Name, input.OpposingParty)
	if err != nil {
		return nil, err
	}
	if input.Description != "" {
		m.SetDescription(input.Description)
	}
	if input.MediatorID != nil {
		if err := s.assignMediator(ctx, practiceID, m, *input.MediatorID); err != nil {
			return nil, err
		}
	}

	if err := s.matterRepo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}
	s.flushEvents(ctx, m)

	s.logger.Info("Matter created",
		zap.String("practice_id", practiceID.String()),
		zap.String("matter_number", number),
		zap.String("type", string(input.Type)))

	return toMatterResponse(m), nil
}

// GetMatter returns a matter within the practice
func (s *MatterService) GetMatter(ctx context.Context, practiceID, matterID uuid.UUID) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}
	return toMatterResponse(m), nil
}

// ListMatters returns the practice's matters with filtering
func (s *MatterService) ListMatters(ctx context.Context, practiceID uuid.UUID, filter MatterListFilter) ([]MatterResponse, int64, error) {
	domainFilter := matter.MatterFilter{
		Filter: shared.Filter{
			Page:     filter.Page,
			PageSize: filter.PageSize,
			Search:   filter.Search,
		},
		ClientID:   filter.ClientID,
		MediatorID: filter.MediatorID,
	}
	if filter.Status != "" {
		status := matter.MatterStatus(filter.Status)
		if !status.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_STATUS", "Matter status is not valid")
		}
		domainFilter.Status = &status
	}
	if filter.Type != "" {
		matterType := matter.MatterType(filter.Type)
		if !matterType.IsValid() {
			return nil, 0, shared.NewDomainError("INVALID_TYPE", "Matter type is not valid")
		}
		domainFilter.Type = &matterType
	}

	matters, err := s.matterRepo.FindAllForPractice(ctx, practiceID, domainFilter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.matterRepo.CountForPractice(ctx, practiceID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]MatterResponse, 0, len(matters))
	for i := range matters {
		responses = append(responses, *toMatterResponse(&matters[i]))
	}
	return responses, total, nil
}

// AssignMediator assigns a mediator to the matter
func (s *MatterService) AssignMediator(ctx context.Context, practiceID, matterID, mediatorID uuid.UUID) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	if err := s.assignMediator(ctx, practiceID, m, mediatorID); err != nil {
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}

	return toMatterResponse(m), nil
}

// OpenMatter moves the matter from intake to active mediation
func (s *MatterService) OpenMatter(ctx context.Context, practiceID, matterID uuid.UUID) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	if err := m.Open(); err != nil {
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}
	s.flushEvents(ctx, m)

	return toMatterResponse(m), nil
}

// ScheduleSession adds a planned session to an active matter
func (s *MatterService) ScheduleSession(ctx context.Context, practiceID, matterID uuid.UUID, input ScheduleSessionInput) (*SessionResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	session, err := m.ScheduleSession(input.ScheduledAt, input.DurationMin, input.Location)
	if err != nil {
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}
	s.flushEvents(ctx, m)

	resp := toSessionResponse(session)
	return &resp, nil
}

// RecordSessionHeld marks a session as held with its summary
func (s *MatterService) RecordSessionHeld(ctx context.Context, practiceID, matterID, sessionID uuid.UUID, summary string) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	if err := m.RecordSessionHeld(sessionID, summary); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Session not found")
		}
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}

	return toMatterResponse(m), nil
}

// SettleMatter resolves the matter with an agreement
func (s *MatterService) SettleMatter(ctx context.Context, practiceID, matterID uuid.UUID, input ResolveMatterInput) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	if err := m.Settle(input.OutcomeNotes); err != nil {
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}
	s.flushEvents(ctx, m)

	s.logger.Info("Matter settled",
		zap.String("practice_id", practiceID.String()),
		zap.String("matter_id", matterID.String()))

	return toMatterResponse(m), nil
}

// DeclareImpasse resolves the matter without an agreement
func (s *MatterService) DeclareImpasse(ctx context.Context, practiceID, matterID uuid.UUID, input ResolveMatterInput) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	if err := m.DeclareImpasse(input.OutcomeNotes); err != nil {
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}
	s.flushEvents(ctx, m)

	return toMatterResponse(m), nil
}

// CloseMatter administratively closes the matter
func (s *MatterService) CloseMatter(ctx context.Context, practiceID, matterID uuid.UUID, input CloseMatterInput) (*MatterResponse, error) {
	m, err := s.loadMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, err
	}

	invoices, err := s.invoiceRepo.FindByMatter(ctx, practiceID, matterID)
	if err != nil {
		return nil, fmt.Errorf("failed to check matter invoices: %w", err)
	}
	for _, inv := range invoices {
		if inv.Status.CanApplyPayment() {
			return nil, shared.NewDomainError("MATTER_HAS_UNPAID_INVOICES",
				fmt.Sprintf("Matter has unpaid invoice %s", inv.InvoiceNumber))
		}
	}

	if err := m.Close(input.Reason); err != nil {
		return nil, err
	}
	if err := s.matterRepo.SaveWithLock(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save matter: %w", err)
	}
	s.flushEvents(ctx, m)

	return toMatterResponse(m), nil
}

// assignMediator verifies the mediator belongs to the practice and may
// handle matters before assigning
func (s *MatterService) assignMediator(ctx context.Context, practiceID uuid.UUID, m *matter.Matter, mediatorID uuid.UUID) error {
	mediator, err := s.userRepo.FindByIDForPractice(ctx, practiceID, mediatorID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewDomainError("NOT_FOUND", "Mediator not found")
		}
		return err
	}
	if mediator.Role == identity.UserRoleStaff {
		return shared.NewDomainError("INVALID_MEDIATOR", "Staff accounts cannot be assigned as mediators")
	}
	if mediator.Status != identity.UserStatusActive {
		return shared.NewDomainError("INVALID_MEDIATOR", "Mediator account is not active")
	}

	return m.AssignMediator(mediatorID)
}

func (s *MatterService) loadMatter(ctx context.Context, practiceID, matterID uuid.UUID) (*matter.Matter, error) {
	m, err := s.matterRepo.FindByIDForPractice(ctx, practiceID, matterID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Matter not found")
		}
		return nil, err
	}
	return m, nil
}

func (s *MatterService) flushEvents(ctx context.Context, root shared.AggregateRoot) {
	events := root.GetDomainEvents()
	if len(events) == 0 {
		return
	}
	root.ClearDomainEvents()
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Error("Failed to publish matter events", zap.Error(err))
	}
}

func toSessionResponse(session *matter.SessionRecord) SessionResponse {
	return SessionResponse{
		ID:          session.ID,
		ScheduledAt: session.ScheduledAt,
		DurationMin: session.DurationMin,
		Location:    session.Location,
		Summary:     session.Summary,
		Held:        session.Held,
	}
}

func toMatterResponse(m *matter.Matter) *MatterResponse {
	sessions := make([]SessionResponse, 0, len(m.Sessions))
	for i := range m.Sessions {
		sessions = append(sessions, toSessionResponse(&m.Sessions[i]))
	}

	return &MatterResponse{
		ID:            m.ID,
		PracticeID:    m.PracticeID,
		MatterNumber:  m.MatterNumber,
		Title:         m.Title,
		Type:          string(m.Type),
		Status:        string(m.Status),
		ClientID:      m.ClientID,
		ClientName:    m.ClientName,
		OpposingParty: m.OpposingParty,
		MediatorID:    m.MediatorID,
		Sessions:      sessions,
		Description:   m.Description,
		OpenedAt:      m.OpenedAt,
		ResolvedAt:    m.ResolvedAt,
		ClosedAt:      m.ClosedAt,
		CloseReason:   m.CloseReason,
		OutcomeNotes:  m.OutcomeNotes,
		CreatedAt:     m.CreatedAt,
		Version:       m.Version,
	}
}

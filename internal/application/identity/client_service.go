package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/shared"
	infrabilling "github.com/praxis/backend/internal/infrastructure/billing"
	"go.uber.org/zap"
)

// ClientService manages the parties a practice mediates for and bills
type ClientService struct {
	clientRepo   identity.ClientRepository
	practiceRepo identity.PracticeRepository
	processor    infrabilling.Processor
	logger       *zap.Logger
}

// NewClientService creates a new ClientService
func NewClientService(
	clientRepo identity.ClientRepository,
	practiceRepo identity.PracticeRepository,
	processor infrabilling.Processor,
	logger *zap.Logger,
) *ClientService {
	return &ClientService{
		clientRepo:   clientRepo,
		practiceRepo: practiceRepo,
		processor:    processor,
		logger:       logger,
	}
}

// ClientInput contains the editable client fields
type ClientInput struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// ClientResponse represents a client in API responses
type ClientResponse struct {
	ID               uuid.UUID `json:"id"`
	PracticeID       uuid.UUID `json:"practice_id"`
	Name             string    `json:"name"`
	Email            string    `json:"email,omitempty"`
	Phone            string    `json:"phone,omitempty"`
	Address          string    `json:"address,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	StripeCustomerID string    `json:"stripe_customer_id,omitempty"`
	Archived         bool      `json:"archived"`
}

// CreateClient adds a client to the practice
func (s *ClientService) CreateClient(ctx context.Context, practiceID uuid.UUID, input ClientInput) (*ClientResponse, error) {
	client, err := identity.NewClient(practiceID, input.Name, input.Email)
	if err != nil {
		return nil, err
	}
	client.Phone = input.Phone
	client.Address = input.Address
	if input.Notes != "" {
		client.SetNotes(input.Notes)
	}

	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Info("Client created",
		zap.String("practice_id", practiceID.String()),
		zap.String("client_id", client.ID.String()))

	resp := toClientResponse(client)
	return &resp, nil
}

// GetClient returns a client within the practice
func (s *ClientService) GetClient(ctx context.Context, practiceID, clientID uuid.UUID) (*ClientResponse, error) {
	client, err := s.loadClient(ctx, practiceID, clientID)
	if err != nil {
		return nil, err
	}
	resp := toClientResponse(client)
	return &resp, nil
}

// ListClients returns the practice's clients
func (s *ClientService) ListClients(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]ClientResponse, int64, error) {
	clients, err := s.clientRepo.FindAllForPractice(ctx, practiceID, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.clientRepo.CountForPractice(ctx, practiceID)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ClientResponse, 0, len(clients))
	for i := range clients {
		responses = append(responses, toClientResponse(&clients[i]))
	}
	return responses, total, nil
}

// UpdateClient updates a client's contact information
func (s *ClientService) UpdateClient(ctx context.Context, practiceID, clientID uuid.UUID, input ClientInput) (*ClientResponse, error) {
	client, err := s.loadClient(ctx, practiceID, clientID)
	if err != nil {
		return nil, err
	}

	if err := client.Update(input.Name, input.Email, input.Phone, input.Address); err != nil {
		return nil, err
	}
	client.SetNotes(input.Notes)

	if err := s.clientRepo.Save(ctx, client); err != nil {
		return nil, fmt.Errorf("failed to save client: %w", err)
	}

	resp := toClientResponse(client)
	return &resp, nil
}

// ArchiveClient hides the client from active lists
func (s *ClientService) ArchiveClient(ctx context.Context, practiceID, clientID uuid.UUID) error {
	client, err := s.loadClient(ctx, practiceID, clientID)
	if err != nil {
		return err
	}

	if err := client.Archive(); err != nil {
		return err
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

// UnarchiveClient restores an archived client
func (s *ClientService) UnarchiveClient(ctx context.Context, practiceID, clientID uuid.UUID) error {
	client, err := s.loadClient(ctx, practiceID, clientID)
	if err != nil {
		return err
	}

	if err := client.Unarchive(); err != nil {
		return err
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	return nil
}

// EnsureStripeCustomer creates the Stripe customer for a client on first
// use, so invoices can be charged to a saved payment method. Idempotent:
// returns the existing customer ID when already linked.
func (s *ClientService) EnsureStripeCustomer(ctx context.Context, practiceID, clientID uuid.UUID) (string, error) {
	client, err := s.loadClient(ctx, practiceID, clientID)
	if err != nil {
		return "", err
	}
	if client.StripeCustomerID != "" {
		return client.StripeCustomerID, nil
	}
	if s.processor == nil {
		return "", shared.NewDomainError("BILLING_UNAVAILABLE", "Payment processing is not configured")
	}

	customer, err := s.processor.CreateCustomer(ctx, infrabilling.CreateCustomerInput{
		PracticeID: practiceID,
		ClientID:   &clientID,
		Email:      client.Email,
		Name:       client.Name,
		Phone:      client.Phone,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create Stripe customer: %w", err)
	}

	if err := client.LinkStripeCustomer(customer.CustomerID); err != nil {
		return "", err
	}
	if err := s.clientRepo.Save(ctx, client); err != nil {
		return "", fmt.Errorf("failed to save client: %w", err)
	}

	s.logger.Info("Stripe customer created for client",
		zap.String("client_id", clientID.String()),
		zap.String("stripe_customer_id", customer.CustomerID))

	return customer.CustomerID, nil
}

func (s *ClientService) loadClient(ctx context.Context, practiceID, clientID uuid.UUID) (*identity.Client, error) {
	client, err := s.clientRepo.FindByIDForPractice(ctx, practiceID, clientID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Client not found")
		}
		return nil, err
	}
	return client, nil
}

func toClientResponse(c *identity.Client) ClientResponse {
	return ClientResponse{
		ID:               c.ID,
		PracticeID:       c.PracticeID,
		Name:             c.Name,
		Email:            c.Email,
		Phone:            c.Phone,
		Address:          c.Address,
		Notes:            c.Notes,
		StripeCustomerID: c.StripeCustomerID,
		Archived:         c.Archived,
	}
}

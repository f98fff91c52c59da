package identity

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// Client represents a party the practice mediates for and bills.
// Clients are practice-scoped; the same person working with two practices
// is two distinct Client records.
type Client struct {
	shared.PracticeAggregateRoot
	Name    string
	Email   string
	Phone   string
	Address string
	Notes   string

	// StripeCustomerID is the customer created on the practice's connected
	// account, used when charging the client's invoices.
	StripeCustomerID string

	Archived   bool
	ArchivedAt *time.Time
}

// NewClient creates a new client for a practice
func NewClient(practiceID uuid.UUID, name, email string) (*Client, error) {
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_CLIENT_NAME", "Client name cannot be empty")
	}
	if len(name) > 200 {
		return nil, shared.NewDomainError("INVALID_CLIENT_NAME", "Client name cannot exceed 200 characters")
	}
	if email != "" {
		if err := validateUserEmail(email); err != nil {
			return nil, err
		}
	}

	client := &Client{
		PracticeAggregateRoot: shared.NewPracticeAggregateRoot(practiceID),
		Name:                  strings.TrimSpace(name),
		Email:                 strings.ToLower(strings.TrimSpace(email)),
	}

	return client, nil
}

// Update updates the client's contact information
func (c *Client) Update(name, email, phone, address string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_CLIENT_NAME", "Client name cannot be empty")
	}
	if email != "" {
		if err := validateUserEmail(email); err != nil {
			return err
		}
	}
	if len(phone) > 50 {
		return shared.NewDomainError("INVALID_PHONE", "Phone cannot exceed 50 characters")
	}

	c.Name = strings.TrimSpace(name)
	c.Email = strings.ToLower(strings.TrimSpace(email))
	c.Phone = phone
	c.Address = address
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// LinkStripeCustomer records the Stripe customer created for this client
func (c *Client) LinkStripeCustomer(customerID string) error {
	if customerID == "" {
		return shared.NewDomainError("INVALID_STRIPE_REF", "Stripe customer ID cannot be empty")
	}

	c.StripeCustomerID = customerID
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// Archive hides the client from active lists. Invoices already issued
// are unaffected.
func (c *Client) Archive() error {
	if c.Archived {
		return shared.NewDomainError("ALREADY_ARCHIVED", "Client is already archived")
	}

	now := time.Now()
	c.Archived = true
	c.ArchivedAt = &now
	c.UpdatedAt = now
	c.IncrementVersion()

	return nil
}

// Unarchive restores an archived client
func (c *Client) Unarchive() error {
	if !c.Archived {
		return shared.NewDomainError("NOT_ARCHIVED", "Client is not archived")
	}

	c.Archived = false
	c.ArchivedAt = nil
	c.UpdatedAt = time.Now()
	c.IncrementVersion()

	return nil
}

// SetNotes sets the client notes
func (c *Client) SetNotes(notes string) {
	c.Notes = notes
	c.UpdatedAt = time.Now()
	c.IncrementVersion()
}

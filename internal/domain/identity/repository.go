package identity

import (
	"context"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// PracticeRepository defines the interface for practice persistence
type PracticeRepository interface {
	// FindByID finds a practice by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Practice, error)

	// FindByCode finds a practice by its unique code
	FindByCode(ctx context.Context, code string) (*Practice, error)

	// FindByDomain finds a practice by its custom subdomain
	FindByDomain(ctx context.Context, domain string) (*Practice, error)

	// FindByStripeCustomerID finds the practice linked to a Stripe customer.
	// Used by subscription webhook reconciliation.
	FindByStripeCustomerID(ctx context.Context, customerID string) (*Practice, error)

	// FindByStripeAccountID finds the practice owning a connected Stripe account
	FindByStripeAccountID(ctx context.Context, accountID string) (*Practice, error)

	// FindAll finds all practices with filtering
	FindAll(ctx context.Context, filter shared.Filter) ([]Practice, error)

	// Save creates or updates a practice
	Save(ctx context.Context, practice *Practice) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, practice *Practice) error

	// Delete soft deletes a practice
	Delete(ctx context.Context, id uuid.UUID) error

	// Count counts practices
	Count(ctx context.Context, filter shared.Filter) (int64, error)
}

// UserRepository defines the interface for user persistence
type UserRepository interface {
	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)

	// FindByIDForPractice finds a user by ID within a practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*User, error)

	// FindByEmail finds a user by email within a practice
	FindByEmail(ctx context.Context, practiceID uuid.UUID, email string) (*User, error)

	// FindAllForPractice finds all users of a practice
	FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]User, error)

	// Save creates or updates a user
	Save(ctx context.Context, user *User) error

	// Delete soft deletes a user
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForPractice counts users of a practice
	CountForPractice(ctx context.Context, practiceID uuid.UUID) (int64, error)
}

// ClientRepository defines the interface for client persistence
type ClientRepository interface {
	// FindByID finds a client by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Client, error)

	// FindByIDForPractice finds a client by ID within a practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*Client, error)

	// FindByStripeCustomerID finds the client linked to a Stripe customer
	FindByStripeCustomerID(ctx context.Context, customerID string) (*Client, error)

	// FindAllForPractice finds all clients of a practice
	FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter shared.Filter) ([]Client, error)

	// Save creates or updates a client
	Save(ctx context.Context, client *Client) error

	// Delete soft deletes a client
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForPractice counts clients of a practice
	CountForPractice(ctx context.Context, practiceID uuid.UUID) (int64, error)
}

package matter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared"
)

// MatterFilter defines filtering options for matter queries
type MatterFilter struct {
	shared.Filter
	ClientID   *uuid.UUID    // Filter by client
	MediatorID *uuid.UUID    // Filter by assigned mediator
	Status     *MatterStatus // Filter by status
	Type       *MatterType   // Filter by matter type
	FromDate   *time.Time    // Filter by creation date range start
	ToDate     *time.Time    // Filter by creation date range end
}

// MatterRepository defines the interface for matter persistence
type MatterRepository interface {
	// FindByID finds a matter by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Matter, error)

	// FindByIDForPractice finds a matter by ID within a practice
	FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*Matter, error)

	// FindByMatterNumber finds by matter number within a practice
	FindByMatterNumber(ctx context.Context, practiceID uuid.UUID, matterNumber string) (*Matter, error)

	// FindAllForPractice finds all matters of a practice with filtering
	FindAllForPractice(ctx context.Context, practiceID uuid.UUID, filter MatterFilter) ([]Matter, error)

	// FindByClient finds matters for a client
	FindByClient(ctx context.Context, practiceID, clientID uuid.UUID, filter MatterFilter) ([]Matter, error)

	// FindByMediator finds matters assigned to a mediator
	FindByMediator(ctx context.Context, practiceID, mediatorID uuid.UUID, filter MatterFilter) ([]Matter, error)

	// Save creates or updates a matter
	Save(ctx context.Context, matter *Matter) error

	// SaveWithLock saves with optimistic locking (version check)
	SaveWithLock(ctx context.Context, matter *Matter) error

	// Delete soft deletes a matter
	Delete(ctx context.Context, id uuid.UUID) error

	// CountForPractice counts matters of a practice with optional filters
	CountForPractice(ctx context.Context, practiceID uuid.UUID, filter MatterFilter) (int64, error)

	// CountByStatus counts matters by status for a practice
	CountByStatus(ctx context.Context, practiceID uuid.UUID, status MatterStatus) (int64, error)

	// NextMatterNumber generates the next sequential matter number for a
	// practice on the given date (format MAT-YYYYMMDD-NNNNN)
	NextMatterNumber(ctx context.Context, practiceID uuid.UUID, date time.Time) (string, error)
}

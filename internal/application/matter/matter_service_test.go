package matter

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/identity"
	"github.com/praxis/backend/internal/domain/matter"
	"github.com/praxis/backend/internal/domain/shared"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type svcMatterRepo struct {
	matter.MatterRepository

	mu       sync.Mutex
	byID     map[uuid.UUID]*matter.Matter
	sequence int
}

func newSvcMatterRepo() *svcMatterRepo {
	return &svcMatterRepo{byID: make(map[uuid.UUID]*matter.Matter)}
}

func (f *svcMatterRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*matter.Matter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[id]
	if !ok || m.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return m, nil
}

func (f *svcMatterRepo) Save(ctx context.Context, m *matter.Matter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byID[m.ID] = m
	return nil
}

func (f *svcMatterRepo) SaveWithLock(ctx context.Context, m *matter.Matter) error {
	return f.Save(ctx, m)
}

func (f *svcMatterRepo) NextMatterNumber(ctx context.Context, practiceID uuid.UUID, date time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return fmt.Sprintf("MAT-%s-%05d", date.Format("20060102"), f.sequence), nil
}

type svcClientRepo struct {
	identity.ClientRepository

	clients map[uuid.UUID]*identity.Client
}

func (f *svcClientRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*identity.Client, error) {
	c, ok := f.clients[id]
	if !ok || c.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return c, nil
}

type svcUserRepo struct {
	identity.UserRepository

	users map[uuid.UUID]*identity.User
}

func (f *svcUserRepo) FindByIDForPractice(ctx context.Context, practiceID, id uuid.UUID) (*identity.User, error) {
	u, ok := f.users[id]
	if !ok || u.PracticeID != practiceID {
		return nil, shared.ErrNotFound
	}
	return u, nil
}

type svcInvoiceRepo struct {
	billing.InvoiceRepository

	invoices []billing.Invoice
}

func (f *svcInvoiceRepo) FindByMatter(ctx context.Context, practiceID, matterID uuid.UUID) ([]billing.Invoice, error) {
	var matched []billing.Invoice
	for _, inv := range f.invoices {
		if inv.PracticeID == practiceID && inv.MatterID != nil && *inv.MatterID == matterID {
			matched = append(matched, inv)
		}
	}
	return matched, nil
}

type recordingEventBus struct {
	shared.EventBus

	mu     sync.Mutex
	events []shared.DomainEvent
}

func (b *recordingEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, events...)
	return nil
}

func (b *recordingEventBus) eventTypes() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	types := make([]string, 0, len(b.events))
	for _, e := range b.events {
		types = append(types, e.EventType())
	}
	return types
}

type matterFixture struct {
	service    *MatterService
	matters    *svcMatterRepo
	invoices   *svcInvoiceRepo
	bus        *recordingEventBus
	practiceID uuid.UUID
	client     *identity.Client
	mediator   *identity.User
}

func newMatterFixture(t *testing.T) *matterFixture {
	t.Helper()

	practiceID := uuid.New()

	client, err := identity.NewClient(practiceID, "Jordan Reyes", "jordan@example.com")
	require.NoError(t, err)

	mediator, err := identity.NewActiveUser(practiceID, "mediator@example.com", "password-123", identity.UserRoleMediator)
	require.NoError(t, err)
	mediator.ClearDomainEvents()

	matters := newSvcMatterRepo()
	invoices := &svcInvoiceRepo{}
	bus := &recordingEventBus{}

	service := NewMatterService(MatterServiceConfig{
		MatterRepo:  matters,
		ClientRepo:  &svcClientRepo{clients: map[uuid.UUID]*identity.Client{client.ID: client}},
		UserRepo:    &svcUserRepo{users: map[uuid.UUID]*identity.User{mediator.ID: mediator}},
		InvoiceRepo: invoices,
		EventBus:    bus,
		Logger:      zap.NewNop(),
	})

	return &matterFixture{
		service:    service,
		matters:    matters,
		invoices:   invoices,
		bus:        bus,
		practiceID: practiceID,
		client:     client,
		mediator:   mediator,
	}
}

func (f *matterFixture) activeMatter(t *testing.T) *MatterResponse {
	t.Helper()

	created, err := f.service.CreateMatter(context.Background(), f.practiceID, CreateMatterInput{
		Title:         "Partnership dissolution",
		Type:          matter.MatterTypeCommercial,
		ClientID:      f.client.ID,
		OpposingParty: "Hale & Co",
		MediatorID:    &f.mediator.ID,
	})
	require.NoError(t, err)

	opened, err := f.service.OpenMatter(context.Background(), f.practiceID, created.ID)
	require.NoError(t, err)
	return opened
}

func TestMatterService_CreateMatter(t *testing.T) {
	f := newMatterFixture(t)

	resp, err := f.service.CreateMatter(context.Background(), f.practiceID, CreateMatterInput{
		Title:         "Workplace grievance",
		Type:          matter.MatterTypeWorkplace,
		ClientID:      f.client.ID,
		OpposingParty: "Former employer",
		Description:   "Initial intake notes",
	})
	require.NoError(t, err)

	assert.Equal(t, string(matter.MatterStatusIntake), resp.Status)
	assert.Equal(t, "Jordan Reyes", resp.ClientName)
	assert.Contains(t, resp.MatterNumber, "MAT-")
	assert.Contains(t, f.bus.eventTypes(), "MatterCreated")
}

func TestMatterService_CreateMatter_UnknownClient(t *testing.T) {
	f := newMatterFixture(t)

	_, err := f.service.CreateMatter(context.Background(), f.practiceID, CreateMatterInput{
		Title:    "Workplace grievance",
		Type:     matter.MatterTypeWorkplace,
		ClientID: uuid.New(),
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestMatterService_CreateMatter_ArchivedClient(t *testing.T) {
	f := newMatterFixture(t)
	require.NoError(t, f.client.Archive())

	_, err := f.service.CreateMatter(context.Background(), f.practiceID, CreateMatterInput{
		Title:    "Workplace grievance",
		Type:     matter.MatterTypeWorkplace,
		ClientID: f.client.ID,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CLIENT_ARCHIVED", domainErr.Code)
}

func TestMatterService_OpenMatter_RequiresMediator(t *testing.T) {
	f := newMatterFixture(t)

	created, err := f.service.CreateMatter(context.Background(), f.practiceID, CreateMatterInput{
		Title:    "Neighborhood noise dispute",
		Type:     matter.MatterTypeCommunity,
		ClientID: f.client.ID,
	})
	require.NoError(t, err)

	_, err = f.service.OpenMatter(context.Background(), f.practiceID, created.ID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NO_MEDIATOR", domainErr.Code)

	_, err = f.service.AssignMediator(context.Background(), f.practiceID, created.ID, f.mediator.ID)
	require.NoError(t, err)

	opened, err := f.service.OpenMatter(context.Background(), f.practiceID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, string(matter.MatterStatusActive), opened.Status)
	assert.NotNil(t, opened.OpenedAt)
	assert.Contains(t, f.bus.eventTypes(), "MatterOpened")
}

func TestMatterService_AssignMediator_RejectsStaff(t *testing.T) {
	f := newMatterFixture(t)

	staff, err := identity.NewActiveUser(f.practiceID, "staff@example.com", "password-123", identity.UserRoleStaff)
	require.NoError(t, err)
	userRepo := f.service.userRepo.(*svcUserRepo)
	userRepo.users[staff.ID] = staff

	created, err := f.service.CreateMatter(context.Background(), f.practiceID, CreateMatterInput{
		Title:    "Lease dispute",
		Type:     matter.MatterTypeCommercial,
		ClientID: f.client.ID,
	})
	require.NoError(t, err)

	_, err = f.service.AssignMediator(context.Background(), f.practiceID, created.ID, staff.ID)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_MEDIATOR", domainErr.Code)
}

func TestMatterService_SessionLifecycle(t *testing.T) {
	f := newMatterFixture(t)
	m := f.activeMatter(t)

	session, err := f.service.ScheduleSession(context.Background(), f.practiceID, m.ID, ScheduleSessionInput{
		ScheduledAt: time.Now().Add(48 * time.Hour),
		DurationMin: 90,
		Location:    "Conference room B",
	})
	require.NoError(t, err)
	assert.False(t, session.Held)

	updated, err := f.service.RecordSessionHeld(context.Background(), f.practiceID, m.ID, session.ID, "Both parties presented positions")
	require.NoError(t, err)
	require.Len(t, updated.Sessions, 1)
	assert.True(t, updated.Sessions[0].Held)
	assert.Equal(t, "Both parties presented positions", updated.Sessions[0].Summary)
}

func TestMatterService_ScheduleSession_PastTime(t *testing.T) {
	f := newMatterFixture(t)
	m := f.activeMatter(t)

	_, err := f.service.ScheduleSession(context.Background(), f.practiceID, m.ID, ScheduleSessionInput{
		ScheduledAt: time.Now().Add(-time.Hour),
		DurationMin: 60,
	})

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_SESSION_TIME", domainErr.Code)
}

func TestMatterService_SettleMatter(t *testing.T) {
	f := newMatterFixture(t)
	m := f.activeMatter(t)

	resolved, err := f.service.SettleMatter(context.Background(), f.practiceID, m.ID, ResolveMatterInput{
		OutcomeNotes: "Settlement agreement signed by both parties",
	})
	require.NoError(t, err)

	assert.Equal(t, string(matter.MatterStatusSettled), resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)
	assert.Contains(t, f.bus.eventTypes(), "MatterResolved")

	// Terminal matters cannot be settled twice
	_, err = f.service.SettleMatter(context.Background(), f.practiceID, m.ID, ResolveMatterInput{})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
}

func TestMatterService_CloseMatter_RequiresReason(t *testing.T) {
	f := newMatterFixture(t)
	m := f.activeMatter(t)

	_, err := f.service.CloseMatter(context.Background(), f.practiceID, m.ID, CloseMatterInput{})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_REASON", domainErr.Code)

	closed, err := f.service.CloseMatter(context.Background(), f.practiceID, m.ID, CloseMatterInput{
		Reason: "Client withdrew from mediation",
	})
	require.NoError(t, err)
	assert.Equal(t, string(matter.MatterStatusClosed), closed.Status)
	assert.Equal(t, "Client withdrew from mediation", closed.CloseReason)
}

func TestMatterService_CloseMatter_UnpaidInvoices(t *testing.T) {
	f := newMatterFixture(t)
	m := f.activeMatter(t)

	inv, err := billing.NewInvoice(f.practiceID, "INV-20260820-00001", billing.InvoiceKindMatter,
		&f.client.ID, f.client.Name, billing.DefaultFeePolicy(), valueobject.USD)
	require.NoError(t, err)
	require.NoError(t, inv.AttachMatter(m.ID, m.MatterNumber))
	require.NoError(t, inv.AddLineItem("Mediation session", decimal.NewFromInt(2), decimal.NewFromInt(250)))
	require.NoError(t, inv.Finalize(time.Now().Add(14*24*time.Hour)))
	f.invoices.invoices = append(f.invoices.invoices, *inv)

	_, err = f.service.CloseMatter(context.Background(), f.practiceID, m.ID, CloseMatterInput{
		Reason: "Client withdrew from mediation",
	})
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "MATTER_HAS_UNPAID_INVOICES", domainErr.Code)

	// Paid and voided invoices do not block closing
	f.invoices.invoices[0].Status = billing.InvoiceStatusPaid
	closed, err := f.service.CloseMatter(context.Background(), f.practiceID, m.ID, CloseMatterInput{
		Reason: "Client withdrew from mediation",
	})
	require.NoError(t, err)
	assert.Equal(t, string(matter.MatterStatusClosed), closed.Status)
}

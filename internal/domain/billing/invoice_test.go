package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helpers

func createTestInvoice(t *testing.T) *Invoice {
	practiceID := uuid.New()
	clientID := uuid.New()

	inv, err := NewInvoice(
		practiceID,
		"INV-20260815-00001",
		InvoiceKindMatter,
		&clientID,
		"Acme Mediation Client",
		FeePolicy{FeePercent: decimal.NewFromFloat(2.5), TaxPercent: decimal.Zero},
		valueobject.USD,
	)
	require.NoError(t, err)
	return inv
}

func createOpenInvoice(t *testing.T, daysUntilDue int) *Invoice {
	inv := createTestInvoice(t)
	require.NoError(t, inv.AddLineItem("Mediation session", decimal.NewFromInt(4), decimal.NewFromInt(250)))
	require.NoError(t, inv.Finalize(time.Now().AddDate(0, 0, daysUntilDue)))
	return inv
}

// ============================================
// InvoiceStatus Tests
// ============================================

func TestInvoiceStatus_IsValid(t *testing.T) {
	tests := []struct {
		status  InvoiceStatus
		isValid bool
	}{
		{InvoiceStatusDraft, true},
		{InvoiceStatusOpen, true},
		{InvoiceStatusPaid, true},
		{InvoiceStatusOverdue, true},
		{InvoiceStatusVoid, true},
		{InvoiceStatusUncollectible, true},
		{InvoiceStatus("INVALID"), false},
		{InvoiceStatus(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.isValid, tt.status.IsValid())
		})
	}
}

func TestInvoiceStatus_IsTerminal(t *testing.T) {
	assert.True(t, InvoiceStatusPaid.IsTerminal())
	assert.True(t, InvoiceStatusVoid.IsTerminal())
	assert.True(t, InvoiceStatusUncollectible.IsTerminal())
	assert.False(t, InvoiceStatusDraft.IsTerminal())
	assert.False(t, InvoiceStatusOpen.IsTerminal())
	assert.False(t, InvoiceStatusOverdue.IsTerminal())
}

func TestInvoiceStatus_CanApplyPayment(t *testing.T) {
	assert.True(t, InvoiceStatusOpen.CanApplyPayment())
	assert.True(t, InvoiceStatusOverdue.CanApplyPayment())
	assert.False(t, InvoiceStatusDraft.CanApplyPayment())
	assert.False(t, InvoiceStatusPaid.CanApplyPayment())
	assert.False(t, InvoiceStatusVoid.CanApplyPayment())
}

// ============================================
// Invoice Creation Tests
// ============================================

func TestNewInvoice(t *testing.T) {
	inv := createTestInvoice(t)

	assert.Equal(t, InvoiceStatusDraft, inv.Status)
	assert.True(t, inv.TotalAmount.IsZero())
	assert.True(t, inv.OutstandingAmount.IsZero())
	assert.Equal(t, valueobject.USD, inv.Currency)
	assert.Len(t, inv.GetDomainEvents(), 1)
	assert.Equal(t, "InvoiceCreated", inv.GetDomainEvents()[0].EventType())
}

func TestNewInvoice_Validation(t *testing.T) {
	practiceID := uuid.New()
	clientID := uuid.New()
	policy := DefaultFeePolicy()

	_, err := NewInvoice(practiceID, "", InvoiceKindMatter, &clientID, "Client", policy, valueobject.USD)
	assert.Error(t, err)

	_, err = NewInvoice(practiceID, "INV-1", InvoiceKind("BOGUS"), &clientID, "Client", policy, valueobject.USD)
	assert.Error(t, err)

	// client is required for matter invoices
	_, err = NewInvoice(practiceID, "INV-1", InvoiceKindMatter, nil, "", policy, valueobject.USD)
	assert.Error(t, err)

	// but not for subscription invoices
	_, err = NewInvoice(practiceID, "INV-1", InvoiceKindSubscription, nil, "", policy, valueobject.USD)
	assert.NoError(t, err)
}

// ============================================
// Line Item and Amount Derivation Tests
// ============================================

func TestInvoice_AddLineItem_DerivesAmounts(t *testing.T) {
	inv := createTestInvoice(t)

	require.NoError(t, inv.AddLineItem("Mediation session", decimal.NewFromInt(4), decimal.NewFromInt(250)))
	require.NoError(t, inv.AddLineItem("Document preparation", decimal.NewFromInt(1), decimal.NewFromInt(200)))

	assert.Equal(t, "1200.00", inv.Subtotal.StringFixed(2))
	// 2.5% platform fee on 1200.00
	assert.Equal(t, "30.00", inv.FeeAmount.StringFixed(2))
	assert.Equal(t, "0.00", inv.TaxAmount.StringFixed(2))
	assert.Equal(t, "1230.00", inv.TotalAmount.StringFixed(2))
	assert.Equal(t, "1230.00", inv.OutstandingAmount.StringFixed(2))
}

func TestInvoice_AddLineItem_Validation(t *testing.T) {
	inv := createTestInvoice(t)

	assert.Error(t, inv.AddLineItem("", decimal.NewFromInt(1), decimal.NewFromInt(10)))
	assert.Error(t, inv.AddLineItem("x", decimal.Zero, decimal.NewFromInt(10)))
	assert.Error(t, inv.AddLineItem("x", decimal.NewFromInt(1), decimal.NewFromInt(-1)))
}

func TestInvoice_RemoveLineItem(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.AddLineItem("Session", decimal.NewFromInt(2), decimal.NewFromInt(100)))
	itemID := inv.LineItems[0].ID

	require.NoError(t, inv.RemoveLineItem(itemID))
	assert.Empty(t, inv.LineItems)
	assert.True(t, inv.TotalAmount.IsZero())

	assert.Error(t, inv.RemoveLineItem(uuid.New()))
}

func TestInvoice_LineItemsFrozenAfterFinalize(t *testing.T) {
	inv := createOpenInvoice(t, 30)

	err := inv.AddLineItem("Late addition", decimal.NewFromInt(1), decimal.NewFromInt(50))
	assert.Error(t, err)
}

// ============================================
// Finalize Tests
// ============================================

func TestInvoice_Finalize(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.AddLineItem("Session", decimal.NewFromInt(2), decimal.NewFromInt(500)))

	due := time.Now().AddDate(0, 0, 30)
	require.NoError(t, inv.Finalize(due))

	assert.Equal(t, InvoiceStatusOpen, inv.Status)
	assert.NotNil(t, inv.IssuedAt)
	require.NotNil(t, inv.DueDate)
	assert.WithinDuration(t, due, *inv.DueDate, time.Second)
}

func TestInvoice_Finalize_RequiresLineItems(t *testing.T) {
	inv := createTestInvoice(t)
	err := inv.Finalize(time.Now().AddDate(0, 0, 30))
	assert.Error(t, err)
	assert.Equal(t, InvoiceStatusDraft, inv.Status)
}

func TestInvoice_Finalize_RejectsPastDueDate(t *testing.T) {
	inv := createTestInvoice(t)
	require.NoError(t, inv.AddLineItem("Session", decimal.NewFromInt(1), decimal.NewFromInt(100)))
	err := inv.Finalize(time.Now().AddDate(0, 0, -1))
	assert.Error(t, err)
}

func TestInvoice_Finalize_OnlyFromDraft(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	err := inv.Finalize(time.Now().AddDate(0, 0, 60))
	assert.Error(t, err)
}

// ============================================
// Payment Tests
// ============================================

func TestInvoice_ApplyPayment_FullPayment(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	total := inv.GetTotalAmountMoney()

	require.NoError(t, inv.ApplyPayment(total, PaymentSourceStripe, "pi_123", ""))

	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.OutstandingAmount.IsZero())
	assert.NotNil(t, inv.PaidAt)
	assert.Equal(t, 1, inv.PaymentCount())
}

func TestInvoice_ApplyPayment_PartialKeepsStatus(t *testing.T) {
	inv := createOpenInvoice(t, 30)

	half := valueobject.NewMoneyUSD(inv.TotalAmount.Div(decimal.NewFromInt(2)))
	require.NoError(t, inv.ApplyPayment(half, PaymentSourceStripe, "pi_partial_1", ""))

	// invoice stays OPEN until the balance reaches zero
	assert.Equal(t, InvoiceStatusOpen, inv.Status)
	assert.Equal(t, half.Amount().StringFixed(2), inv.OutstandingAmount.StringFixed(2))

	require.NoError(t, inv.ApplyPayment(half, PaymentSourceStripe, "pi_partial_2", ""))
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
}

func TestInvoice_ApplyPayment_DuplicateReferenceIsNoop(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	half := valueobject.NewMoneyUSD(inv.TotalAmount.Div(decimal.NewFromInt(2)))

	require.NoError(t, inv.ApplyPayment(half, PaymentSourceStripe, "pi_dup", ""))
	paidBefore := inv.PaidAmount

	// a redelivered webhook replays the same payment intent
	require.NoError(t, inv.ApplyPayment(half, PaymentSourceStripe, "pi_dup", ""))

	assert.Equal(t, 1, inv.PaymentCount())
	assert.True(t, inv.PaidAmount.Equal(paidBefore))
}

func TestInvoice_ApplyPayment_ExceedsOutstanding(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	over := valueobject.NewMoneyUSD(inv.TotalAmount.Add(decimal.NewFromInt(1)))

	err := inv.ApplyPayment(over, PaymentSourceStripe, "pi_over", "")
	assert.Error(t, err)
	assert.Equal(t, InvoiceStatusOpen, inv.Status)
}

func TestInvoice_ApplyPayment_InvalidStates(t *testing.T) {
	draft := createTestInvoice(t)
	amount := valueobject.NewMoneyUSDFromFloat(10)
	assert.Error(t, draft.ApplyPayment(amount, PaymentSourceManual, "chk-1", ""))

	paid := createOpenInvoice(t, 30)
	require.NoError(t, paid.ApplyPayment(paid.GetTotalAmountMoney(), PaymentSourceStripe, "pi_full", ""))
	assert.Error(t, paid.ApplyPayment(amount, PaymentSourceManual, "chk-2", ""))
}

func TestInvoice_ApplyPayment_AcceptedWhileOverdue(t *testing.T) {
	inv := createOpenInvoice(t, 1)
	due := time.Now().AddDate(0, 0, -1)
	inv.DueDate = &due
	require.True(t, inv.MarkOverdue(time.Now()))

	require.NoError(t, inv.ApplyPayment(inv.GetTotalAmountMoney(), PaymentSourceStripe, "pi_late", ""))
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
}

// ============================================
// Overdue Tests
// ============================================

func TestInvoice_MarkOverdue(t *testing.T) {
	inv := createOpenInvoice(t, 1)
	due := time.Now().AddDate(0, 0, -2)
	inv.DueDate = &due

	assert.True(t, inv.MarkOverdue(time.Now()))
	assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	assert.NotNil(t, inv.MarkedOverdueAt)

	// second sweep is a no-op
	assert.False(t, inv.MarkOverdue(time.Now()))
}

func TestInvoice_MarkOverdue_NotYetDue(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	assert.False(t, inv.MarkOverdue(time.Now()))
	assert.Equal(t, InvoiceStatusOpen, inv.Status)
}

func TestInvoice_MarkOverdue_OnlyOpen(t *testing.T) {
	inv := createTestInvoice(t)
	assert.False(t, inv.MarkOverdue(time.Now()))
}

// ============================================
// Void Tests
// ============================================

func TestInvoice_Void(t *testing.T) {
	draft := createTestInvoice(t)
	require.NoError(t, draft.Void("duplicate entry"))
	assert.Equal(t, InvoiceStatusVoid, draft.Status)
	assert.True(t, draft.OutstandingAmount.IsZero())

	open := createOpenInvoice(t, 30)
	require.NoError(t, open.Void("issued in error"))
	assert.Equal(t, InvoiceStatusVoid, open.Status)
}

func TestInvoice_Void_RejectedWithPayments(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	half := valueobject.NewMoneyUSD(inv.TotalAmount.Div(decimal.NewFromInt(2)))
	require.NoError(t, inv.ApplyPayment(half, PaymentSourceStripe, "pi_x", ""))

	err := inv.Void("too late")
	assert.Error(t, err)
}

func TestInvoice_Void_RequiresReason(t *testing.T) {
	inv := createTestInvoice(t)
	assert.Error(t, inv.Void(""))
}

// ============================================
// Write-off Tests
// ============================================

func TestInvoice_MarkUncollectible(t *testing.T) {
	inv := createOpenInvoice(t, 1)
	due := time.Now().AddDate(0, 0, -90)
	inv.DueDate = &due
	require.True(t, inv.MarkOverdue(time.Now()))

	require.NoError(t, inv.MarkUncollectible("client unreachable"))
	assert.Equal(t, InvoiceStatusUncollectible, inv.Status)
	assert.True(t, inv.OutstandingAmount.IsZero())
	assert.NotNil(t, inv.WrittenOffAt)
}

func TestInvoice_MarkUncollectible_InvalidStates(t *testing.T) {
	draft := createTestInvoice(t)
	assert.Error(t, draft.MarkUncollectible("reason"))

	paid := createOpenInvoice(t, 30)
	require.NoError(t, paid.ApplyPayment(paid.GetTotalAmountMoney(), PaymentSourceStripe, "pi_y", ""))
	assert.Error(t, paid.MarkUncollectible("reason"))
}

// ============================================
// Helper Tests
// ============================================

func TestInvoice_IsPastDue(t *testing.T) {
	inv := createOpenInvoice(t, 1)
	assert.False(t, inv.IsPastDue())

	due := time.Now().AddDate(0, 0, -3)
	inv.DueDate = &due
	assert.True(t, inv.IsPastDue())
	assert.Equal(t, 3, inv.DaysOverdue())
}

func TestInvoice_PaidPercentage(t *testing.T) {
	inv := createOpenInvoice(t, 30)
	assert.True(t, inv.PaidPercentage().IsZero())

	half := valueobject.NewMoneyUSD(inv.TotalAmount.Div(decimal.NewFromInt(2)))
	require.NoError(t, inv.ApplyPayment(half, PaymentSourceStripe, "pi_h", ""))
	assert.Equal(t, "50.00", inv.PaidPercentage().StringFixed(2))
}

// ============================================
// Subscription Tests
// ============================================

func TestNewSubscription(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), SubscriptionPlanSolo)
	require.NoError(t, err)
	assert.Equal(t, SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.IsActive())

	_, err = NewSubscription(uuid.Nil, SubscriptionPlanSolo)
	assert.Error(t, err)

	_, err = NewSubscription(uuid.New(), SubscriptionPlan("gold"))
	assert.Error(t, err)
}

func TestSubscription_SyncFromStripe(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), SubscriptionPlanFirm)
	require.NoError(t, err)
	require.NoError(t, sub.LinkStripe("cus_123", "sub_123", "price_firm"))
	sub.ClearDomainEvents()

	periodEnd := time.Now().AddDate(0, 1, 0)
	changed, err := sub.SyncFromStripe(SyncSnapshot{
		Status:           SubscriptionStatusPastDue,
		PriceID:          "price_firm",
		CurrentPeriodEnd: &periodEnd,
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, SubscriptionStatusPastDue, sub.Status)
	assert.True(t, sub.Status.IsDelinquent())
	// past_due still grants access; unpaid does not
	assert.True(t, sub.IsActive())

	events := sub.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "SubscriptionStatusChanged", events[0].EventType())
}

func TestSubscription_SyncFromStripe_NoChange(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), SubscriptionPlanSolo)
	require.NoError(t, err)
	sub.ClearDomainEvents()

	changed, err := sub.SyncFromStripe(SyncSnapshot{Status: SubscriptionStatusActive})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Empty(t, sub.GetDomainEvents())
}

func TestSubscription_SyncFromStripe_InvalidStatus(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), SubscriptionPlanSolo)
	require.NoError(t, err)

	_, err = sub.SyncFromStripe(SyncSnapshot{Status: SubscriptionStatus("mystery")})
	assert.Error(t, err)
}

func TestSubscription_MarkCanceled(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), SubscriptionPlanSolo)
	require.NoError(t, err)
	sub.ClearDomainEvents()

	sub.MarkCanceled()
	assert.Equal(t, SubscriptionStatusCanceled, sub.Status)
	assert.NotNil(t, sub.CanceledAt)
	assert.False(t, sub.IsActive())
	assert.Len(t, sub.GetDomainEvents(), 1)

	// idempotent
	sub.ClearDomainEvents()
	sub.MarkCanceled()
	assert.Empty(t, sub.GetDomainEvents())
}

func TestSubscription_ChangePlan(t *testing.T) {
	sub, err := NewSubscription(uuid.New(), SubscriptionPlanSolo)
	require.NoError(t, err)

	require.NoError(t, sub.ChangePlan(SubscriptionPlanFirm, "price_firm"))
	assert.Equal(t, SubscriptionPlanFirm, sub.Plan)

	sub.MarkCanceled()
	assert.Error(t, sub.ChangePlan(SubscriptionPlanSolo, "price_solo"))
}

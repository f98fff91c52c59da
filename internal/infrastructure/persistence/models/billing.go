package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/praxis/backend/internal/domain/billing"
	"github.com/praxis/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
type InvoiceModel struct {
	PracticeAggregateModel
	InvoiceNumber         string                 `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoice_practice_number,priority:2"`
	Kind                  billing.InvoiceKind    `gorm:"type:varchar(20);not null;index"`
	ClientID              *uuid.UUID             `gorm:"type:uuid;index"`
	ClientName            string                 `gorm:"type:varchar(200)"`
	MatterID              *uuid.UUID             `gorm:"type:uuid;index"`
	MatterNumber          string                 `gorm:"type:varchar(50)"`
	LineItems             billing.LineItems      `gorm:"type:jsonb;default:'[]'"`
	Subtotal              decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	FeePercent            decimal.Decimal        `gorm:"type:decimal(8,4);not null"`
	FeeAmount             decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	TaxPercent            decimal.Decimal        `gorm:"type:decimal(8,4);not null"`
	TaxAmount             decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	TotalAmount           decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	PaidAmount            decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	OutstandingAmount     decimal.Decimal        `gorm:"type:decimal(18,4);not null;index"`
	Currency              valueobject.Currency   `gorm:"type:varchar(3);not null;default:'USD'"`
	Status                billing.InvoiceStatus  `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	DueDate               *time.Time             `gorm:"index"`
	PaymentRecords        billing.PaymentRecords `gorm:"type:jsonb;default:'[]'"`
	Memo                  string                 `gorm:"type:text"`
	StripePaymentIntentID string                 `gorm:"type:varchar(255);index"`
	StripeInvoiceID       string                 `gorm:"type:varchar(255);index"`
	IssuedAt              *time.Time
	PaidAt                *time.Time
	VoidedAt              *time.Time
	VoidReason            string `gorm:"type:varchar(500)"`
	MarkedOverdueAt       *time.Time
	WrittenOffAt          *time.Time
	WriteOffReason        string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice entity.
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	return &billing.Invoice{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		InvoiceNumber:         m.InvoiceNumber,
		Kind:                  m.Kind,
		ClientID:              m.ClientID,
		ClientName:            m.ClientName,
		MatterID:              m.MatterID,
		MatterNumber:          m.MatterNumber,
		LineItems:             m.LineItems,
		Subtotal:              m.Subtotal,
		FeePercent:            m.FeePercent,
		FeeAmount:             m.FeeAmount,
		TaxPercent:            m.TaxPercent,
		TaxAmount:             m.TaxAmount,
		TotalAmount:           m.TotalAmount,
		PaidAmount:            m.PaidAmount,
		OutstandingAmount:     m.OutstandingAmount,
		Currency:              m.Currency,
		Status:                m.Status,
		DueDate:               m.DueDate,
		PaymentRecords:        m.PaymentRecords,
		Memo:                  m.Memo,
		StripePaymentIntentID: m.StripePaymentIntentID,
		StripeInvoiceID:       m.StripeInvoiceID,
		IssuedAt:              m.IssuedAt,
		PaidAt:                m.PaidAt,
		VoidedAt:              m.VoidedAt,
		VoidReason:            m.VoidReason,
		MarkedOverdueAt:       m.MarkedOverdueAt,
		WrittenOffAt:          m.WrittenOffAt,
		WriteOffReason:        m.WriteOffReason,
	}
}

// FromDomain populates the persistence model from a domain Invoice entity.
func (m *InvoiceModel) FromDomain(inv *billing.Invoice) {
	m.FromDomainPracticeAggregateRoot(inv.PracticeAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.Kind = inv.Kind
	m.ClientID = inv.ClientID
	m.ClientName = inv.ClientName
	m.MatterID = inv.MatterID
	m.MatterNumber = inv.MatterNumber
	m.LineItems = inv.LineItems
	m.Subtotal = inv.Subtotal
	m.FeePercent = inv.FeePercent
	m.FeeAmount = inv.FeeAmount
	m.TaxPercent = inv.TaxPercent
	m.TaxAmount = inv.TaxAmount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.OutstandingAmount = inv.OutstandingAmount
	m.Currency = inv.Currency
	m.Status = inv.Status
	m.DueDate = inv.DueDate
	m.PaymentRecords = inv.PaymentRecords
	m.Memo = inv.Memo
	m.StripePaymentIntentID = inv.StripePaymentIntentID
	m.StripeInvoiceID = inv.StripeInvoiceID
	m.IssuedAt = inv.IssuedAt
	m.PaidAt = inv.PaidAt
	m.VoidedAt = inv.VoidedAt
	m.VoidReason = inv.VoidReason
	m.MarkedOverdueAt = inv.MarkedOverdueAt
	m.WrittenOffAt = inv.WrittenOffAt
	m.WriteOffReason = inv.WriteOffReason
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice.
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// SubscriptionModel is the persistence model for the Subscription aggregate root.
type SubscriptionModel struct {
	PracticeAggregateModel
	Plan                 billing.SubscriptionPlan   `gorm:"type:varchar(20);not null;default:'free'"`
	Status               billing.SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index"`
	StripeCustomerID     string                     `gorm:"type:varchar(255);index"`
	StripeSubscriptionID string                     `gorm:"type:varchar(255);index"`
	StripePriceID        string                     `gorm:"type:varchar(255)"`
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	CancelAtPeriodEnd    bool `gorm:"not null;default:false"`
	TrialEndsAt          *time.Time
	CanceledAt           *time.Time
	LastSyncedAt         *time.Time
}

// TableName returns the table name for GORM
func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

// ToDomain converts the persistence model to a domain Subscription entity.
func (m *SubscriptionModel) ToDomain() *billing.Subscription {
	return &billing.Subscription{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		Plan:                  m.Plan,
		Status:                m.Status,
		StripeCustomerID:      m.StripeCustomerID,
		StripeSubscriptionID:  m.StripeSubscriptionID,
		StripePriceID:         m.StripePriceID,
		CurrentPeriodStart:    m.CurrentPeriodStart,
		CurrentPeriodEnd:      m.CurrentPeriodEnd,
		CancelAtPeriodEnd:     m.CancelAtPeriodEnd,
		TrialEndsAt:           m.TrialEndsAt,
		CanceledAt:            m.CanceledAt,
		LastSyncedAt:          m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain Subscription entity.
func (m *SubscriptionModel) FromDomain(s *billing.Subscription) {
	m.FromDomainPracticeAggregateRoot(s.PracticeAggregateRoot)
	m.Plan = s.Plan
	m.Status = s.Status
	m.StripeCustomerID = s.StripeCustomerID
	m.StripeSubscriptionID = s.StripeSubscriptionID
	m.StripePriceID = s.StripePriceID
	m.CurrentPeriodStart = s.CurrentPeriodStart
	m.CurrentPeriodEnd = s.CurrentPeriodEnd
	m.CancelAtPeriodEnd = s.CancelAtPeriodEnd
	m.TrialEndsAt = s.TrialEndsAt
	m.CanceledAt = s.CanceledAt
	m.LastSyncedAt = s.LastSyncedAt
}

// SubscriptionModelFromDomain creates a new persistence model from a domain Subscription.
func SubscriptionModelFromDomain(s *billing.Subscription) *SubscriptionModel {
	m := &SubscriptionModel{}
	m.FromDomain(s)
	return m
}

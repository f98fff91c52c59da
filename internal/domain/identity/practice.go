package identity

import (
	"regexp"
	"strings"
	"time"

	"github.com/praxis/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PracticeStatus represents the status of a practice
type PracticeStatus string

const (
	PracticeStatusActive    PracticeStatus = "active"
	PracticeStatusTrial     PracticeStatus = "trial"     // Trial period
	PracticeStatusSuspended PracticeStatus = "suspended" // Suspended due to billing issues
	PracticeStatusInactive  PracticeStatus = "inactive"  // Closed / offboarded
)

// PracticeSettings holds configurable settings for a practice
type PracticeSettings struct {
	MaxUsers        int             `json:"max_users"`
	MaxOpenMatters  int             `json:"max_open_matters"`
	DefaultCurrency string          `json:"default_currency"`
	Timezone        string          `json:"timezone"`
	InvoiceDueDays  int             `json:"invoice_due_days"`                     // Default payment terms for new invoices
	FeePercent      decimal.Decimal `json:"fee_percent" gorm:"type:numeric(8,4)"` // Platform fee applied to invoice subtotals
	TaxPercent      decimal.Decimal `json:"tax_percent" gorm:"type:numeric(8,4)"` // Tax rate applied to invoice subtotals
}

// DefaultPracticeSettings returns the default configuration for a new practice
func DefaultPracticeSettings() PracticeSettings {
	return PracticeSettings{
		MaxUsers:        5,
		MaxOpenMatters:  100,
		DefaultCurrency: "USD",
		Timezone:        "America/New_York",
		InvoiceDueDays:  30,
		FeePercent:      decimal.NewFromFloat(2.5),
		TaxPercent:      decimal.Zero,
	}
}

// Practice represents a mediation practice, the tenant of the system.
// It is the aggregate root for practice-level operations including the
// practice's Stripe linkage.
type Practice struct {
	shared.BaseAggregateRoot
	Code         string         `gorm:"type:varchar(50);not null;uniqueIndex"`
	Name         string         `gorm:"type:varchar(200);not null"`
	Status       PracticeStatus `gorm:"type:varchar(20);not null;default:'active'"`
	ContactName  string         `gorm:"type:varchar(100)"`
	ContactPhone string         `gorm:"type:varchar(50)"`
	ContactEmail string         `gorm:"type:varchar(200)"`
	Address      string         `gorm:"type:text"`
	Domain       string         `gorm:"type:varchar(200);uniqueIndex"` // Custom subdomain

	// Stripe billing linkage. The customer ID ties the practice to its
	// platform subscription; the connected account fields mirror the
	// practice's Stripe Connect account used to collect client payments.
	StripeCustomerID string `gorm:"type:varchar(255);index"`
	StripeAccountID  string `gorm:"type:varchar(255);index"`
	ChargesEnabled   bool   `gorm:"not null;default:false"`
	PayoutsEnabled   bool   `gorm:"not null;default:false"`
	DetailsSubmitted bool   `gorm:"not null;default:false"`

	TrialEndsAt *time.Time
	SuspendedAt *time.Time
	Settings    PracticeSettings `gorm:"embedded;embeddedPrefix:settings_"`
	Notes       string           `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (Practice) TableName() string {
	return "practices"
}

// NewPractice creates a new practice with required fields
func NewPractice(code, name string) (*Practice, error) {
	if err := validatePracticeCode(code); err != nil {
		return nil, err
	}
	if err := validatePracticeName(name); err != nil {
		return nil, err
	}

	practice := &Practice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              strings.ToUpper(code),
		Name:              name,
		Status:            PracticeStatusActive,
		Settings:          DefaultPracticeSettings(),
	}

	practice.AddDomainEvent(NewPracticeCreatedEvent(practice))

	return practice, nil
}

// NewTrialPractice creates a new practice in trial status
func NewTrialPractice(code, name string, trialDays int) (*Practice, error) {
	if trialDays <= 0 {
		return nil, shared.NewDomainError("INVALID_TRIAL_DAYS", "Trial days must be positive")
	}

	practice, err := NewPractice(code, name)
	if err != nil {
		return nil, err
	}

	practice.Status = PracticeStatusTrial
	trialEnds := time.Now().AddDate(0, 0, trialDays)
	practice.TrialEndsAt = &trialEnds

	return practice, nil
}

// Update updates the practice's basic information
func (p *Practice) Update(name string) error {
	if err := validatePracticeName(name); err != nil {
		return err
	}

	p.Name = name
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// SetContact updates contact information
func (p *Practice) SetContact(name, phone, email string) error {
	if email != "" && !emailPattern.MatchString(email) {
		return shared.NewDomainError("INVALID_EMAIL", "Contact email is not valid")
	}
	if len(phone) > 50 {
		return shared.NewDomainError("INVALID_PHONE", "Contact phone cannot exceed 50 characters")
	}

	p.ContactName = name
	p.ContactPhone = phone
	p.ContactEmail = strings.ToLower(strings.TrimSpace(email))
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// Activate activates the practice
func (p *Practice) Activate() error {
	if p.Status == PracticeStatusActive {
		return shared.NewDomainError("ALREADY_ACTIVE", "Practice is already active")
	}

	p.Status = PracticeStatusActive
	p.SuspendedAt = nil
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	p.AddDomainEvent(NewPracticeStatusChangedEvent(p))

	return nil
}

// Suspend suspends the practice, typically after its subscription
// becomes unpaid
func (p *Practice) Suspend(reason string) error {
	if p.Status == PracticeStatusSuspended {
		return nil
	}
	if p.Status == PracticeStatusInactive {
		return shared.NewDomainError("INVALID_STATE", "Cannot suspend an inactive practice")
	}

	now := time.Now()
	p.Status = PracticeStatusSuspended
	p.SuspendedAt = &now
	if reason != "" {
		p.Notes = reason
	}
	p.UpdatedAt = now
	p.IncrementVersion()

	p.AddDomainEvent(NewPracticeStatusChangedEvent(p))

	return nil
}

// Deactivate closes the practice
func (p *Practice) Deactivate() error {
	if p.Status == PracticeStatusInactive {
		return shared.NewDomainError("ALREADY_INACTIVE", "Practice is already inactive")
	}

	p.Status = PracticeStatusInactive
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	p.AddDomainEvent(NewPracticeStatusChangedEvent(p))

	return nil
}

// LinkStripeCustomer records the Stripe customer created for this practice
func (p *Practice) LinkStripeCustomer(customerID string) error {
	if customerID == "" {
		return shared.NewDomainError("INVALID_STRIPE_REF", "Stripe customer ID cannot be empty")
	}

	p.StripeCustomerID = customerID
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// LinkStripeAccount records the connected Stripe account used to collect
// client payments
func (p *Practice) LinkStripeAccount(accountID string) error {
	if accountID == "" {
		return shared.NewDomainError("INVALID_STRIPE_REF", "Stripe account ID cannot be empty")
	}

	p.StripeAccountID = accountID
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// SyncStripeAccountCapabilities reconciles the connected account capability
// flags from an account.updated event. Returns true if anything changed.
func (p *Practice) SyncStripeAccountCapabilities(chargesEnabled, payoutsEnabled, detailsSubmitted bool) bool {
	if p.ChargesEnabled == chargesEnabled && p.PayoutsEnabled == payoutsEnabled && p.DetailsSubmitted == detailsSubmitted {
		return false
	}

	p.ChargesEnabled = chargesEnabled
	p.PayoutsEnabled = payoutsEnabled
	p.DetailsSubmitted = detailsSubmitted
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	p.AddDomainEvent(NewPracticeStripeAccountSyncedEvent(p))

	return true
}

// CanCollectPayments returns true if the practice's connected account can
// accept client charges
func (p *Practice) CanCollectPayments() bool {
	return p.StripeAccountID != "" && p.ChargesEnabled
}

// IsActive returns true if the practice is active or in trial
func (p *Practice) IsActive() bool {
	return p.Status == PracticeStatusActive || p.Status == PracticeStatusTrial
}

// IsTrialExpired returns true if the trial period has ended
func (p *Practice) IsTrialExpired() bool {
	if p.Status != PracticeStatusTrial || p.TrialEndsAt == nil {
		return false
	}
	return time.Now().After(*p.TrialEndsAt)
}

// UpdateSettings replaces the practice settings
func (p *Practice) UpdateSettings(settings PracticeSettings) error {
	if settings.MaxUsers <= 0 {
		return shared.NewDomainError("INVALID_SETTINGS", "Max users must be positive")
	}
	if settings.InvoiceDueDays <= 0 {
		return shared.NewDomainError("INVALID_SETTINGS", "Invoice due days must be positive")
	}
	if settings.FeePercent.IsNegative() || settings.FeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_SETTINGS", "Fee percent must be between 0 and 100")
	}
	if settings.TaxPercent.IsNegative() || settings.TaxPercent.GreaterThan(decimal.NewFromInt(100)) {
		return shared.NewDomainError("INVALID_SETTINGS", "Tax percent must be between 0 and 100")
	}

	p.Settings = settings
	p.UpdatedAt = time.Now()
	p.IncrementVersion()

	return nil
}

// Validation

var (
	practiceCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,49}$`)
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

func validatePracticeCode(code string) error {
	if code == "" {
		return shared.NewDomainError("INVALID_PRACTICE_CODE", "Practice code cannot be empty")
	}
	if !practiceCodePattern.MatchString(code) {
		return shared.NewDomainError("INVALID_PRACTICE_CODE", "Practice code must be 2-50 alphanumeric characters, dashes or underscores")
	}
	return nil
}

func validatePracticeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return shared.NewDomainError("INVALID_PRACTICE_NAME", "Practice name cannot be empty")
	}
	if len(name) > 200 {
		return shared.NewDomainError("INVALID_PRACTICE_NAME", "Practice name cannot exceed 200 characters")
	}
	return nil
}

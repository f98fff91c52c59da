package models

import (
	"time"

	"github.com/praxis/backend/internal/domain/identity"
)

// UserModel is the persistence model for the User aggregate root.
type UserModel struct {
	PracticeAggregateModel
	Email              string              `gorm:"type:varchar(200);not null;uniqueIndex:idx_user_practice_email,priority:2"`
	PasswordHash       string              `gorm:"type:varchar(200);not null"`
	DisplayName        string              `gorm:"type:varchar(200)"`
	Role               identity.UserRole   `gorm:"type:varchar(20);not null;index"`
	Status             identity.UserStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	LastLoginAt        *time.Time
	LastLoginIP        string `gorm:"type:varchar(50)"`
	FailedAttempts     int    `gorm:"not null;default:0"`
	LockedUntil        *time.Time
	PasswordChangedAt  *time.Time
	MustChangePassword bool `gorm:"not null;default:false"`
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// ToDomain converts the persistence model to a domain User entity.
func (m *UserModel) ToDomain() *identity.User {
	return &identity.User{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		Email:                 m.Email,
		PasswordHash:          m.PasswordHash,
		DisplayName:           m.DisplayName,
		Role:                  m.Role,
		Status:                m.Status,
		LastLoginAt:           m.LastLoginAt,
		LastLoginIP:           m.LastLoginIP,
		FailedAttempts:        m.FailedAttempts,
		LockedUntil:           m.LockedUntil,
		PasswordChangedAt:     m.PasswordChangedAt,
		MustChangePassword:    m.MustChangePassword,
	}
}

// FromDomain populates the persistence model from a domain User entity.
func (m *UserModel) FromDomain(u *identity.User) {
	m.FromDomainPracticeAggregateRoot(u.PracticeAggregateRoot)
	m.Email = u.Email
	m.PasswordHash = u.PasswordHash
	m.DisplayName = u.DisplayName
	m.Role = u.Role
	m.Status = u.Status
	m.LastLoginAt = u.LastLoginAt
	m.LastLoginIP = u.LastLoginIP
	m.FailedAttempts = u.FailedAttempts
	m.LockedUntil = u.LockedUntil
	m.PasswordChangedAt = u.PasswordChangedAt
	m.MustChangePassword = u.MustChangePassword
}

// UserModelFromDomain creates a new persistence model from a domain User.
func UserModelFromDomain(u *identity.User) *UserModel {
	m := &UserModel{}
	m.FromDomain(u)
	return m
}

// ClientModel is the persistence model for the Client aggregate root.
type ClientModel struct {
	PracticeAggregateModel
	Name             string `gorm:"type:varchar(200);not null;index"`
	Email            string `gorm:"type:varchar(200);index"`
	Phone            string `gorm:"type:varchar(50)"`
	Address          string `gorm:"type:text"`
	Notes            string `gorm:"type:text"`
	StripeCustomerID string `gorm:"type:varchar(255);index"`
	Archived         bool   `gorm:"not null;default:false;index"`
	ArchivedAt       *time.Time
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}

// ToDomain converts the persistence model to a domain Client entity.
func (m *ClientModel) ToDomain() *identity.Client {
	return &identity.Client{
		PracticeAggregateRoot: m.practiceAggregateRoot(),
		Name:                  m.Name,
		Email:                 m.Email,
		Phone:                 m.Phone,
		Address:               m.Address,
		Notes:                 m.Notes,
		StripeCustomerID:      m.StripeCustomerID,
		Archived:              m.Archived,
		ArchivedAt:            m.ArchivedAt,
	}
}

// FromDomain populates the persistence model from a domain Client entity.
func (m *ClientModel) FromDomain(c *identity.Client) {
	m.FromDomainPracticeAggregateRoot(c.PracticeAggregateRoot)
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Address = c.Address
	m.Notes = c.Notes
	m.StripeCustomerID = c.StripeCustomerID
	m.Archived = c.Archived
	m.ArchivedAt = c.ArchivedAt
}

// ClientModelFromDomain creates a new persistence model from a domain Client.
func ClientModelFromDomain(c *identity.Client) *ClientModel {
	m := &ClientModel{}
	m.FromDomain(c)
	return m
}

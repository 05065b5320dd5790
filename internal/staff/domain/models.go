// Package domain defines clinic staff accounts and the seat allowance that
// limits how many may be active at once.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleDoctor    Role = "DOCTOR"
	RoleReception Role = "RECEPTION"
)

func (r Role) Valid() bool {
	return r == RoleDoctor || r == RoleReception
}

type StaffAccount struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	ClinicID     snowflake.ID `gorm:"not null;index" json:"clinic_id"`
	FullName     string       `gorm:"type:text;not null" json:"full_name"`
	Email        string       `gorm:"type:text;not null" json:"email"`
	Role         Role         `gorm:"type:text;not null" json:"role"`
	PasswordHash string       `gorm:"type:text;not null" json:"-"`
	IsActive     bool         `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (StaffAccount) TableName() string { return "staff_accounts" }

// Allowance describes a clinic's seat usage under its current ACTIVE subscription.
// Allowed is zero when the clinic has no ACTIVE subscription.
type Allowance struct {
	ClinicID       snowflake.ID  `json:"clinic_id"`
	SubscriptionID *snowflake.ID `json:"subscription_id,omitempty"`
	PlanAccounts   int           `json:"plan_accounts"`
	ExtraAccounts  int           `json:"extra_accounts"`
	Allowed        int           `json:"allowed"`
	Used           int           `json:"used"`
}

func (a Allowance) Remaining() int {
	return max(a.Allowed-a.Used, 0)
}

// CanAdd reports whether one more active account fits.
func (a Allowance) CanAdd() bool {
	return a.Used < a.Allowed
}

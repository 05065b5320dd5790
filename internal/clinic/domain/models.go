package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ClinicStatus is the stored aggregate access status of a clinic.
type ClinicStatus string

const (
	ClinicStatusInactive  ClinicStatus = "INACTIVE"
	ClinicStatusUpcoming  ClinicStatus = "UPCOMING"
	ClinicStatusActive    ClinicStatus = "ACTIVE"
	ClinicStatusSuspended ClinicStatus = "SUSPENDED"
	ClinicStatusEnded     ClinicStatus = "ENDED"
)

func (s ClinicStatus) Valid() bool {
	switch s {
	case ClinicStatusInactive, ClinicStatusUpcoming, ClinicStatusActive, ClinicStatusSuspended, ClinicStatusEnded:
		return true
	default:
		return false
	}
}

// Clinic is a tenant whose platform access is gated by its subscription records.
// Status is maintained by the subscription lifecycle and never written directly by clinic code.
type Clinic struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Status    ClinicStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Clinic) TableName() string { return "clinics" }

// Package domain contains the subscription record ledger and its lifecycle rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vetsub/internal/clock"
)

// SubscriptionStatus represents lifecycle states for a subscription record.
type SubscriptionStatus string

const (
	SubscriptionStatusUpcoming  SubscriptionStatus = "UPCOMING"
	SubscriptionStatusActive    SubscriptionStatus = "ACTIVE"
	SubscriptionStatusEnded     SubscriptionStatus = "ENDED"
	SubscriptionStatusSuspended SubscriptionStatus = "SUSPENDED"
	SubscriptionStatusRefunded  SubscriptionStatus = "REFUNDED"
)

// IsTerminal reports whether no further transition may leave this status.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusEnded || s == SubscriptionStatusRefunded
}

func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusUpcoming,
		SubscriptionStatusActive,
		SubscriptionStatusEnded,
		SubscriptionStatusSuspended,
		SubscriptionStatusRefunded:
		return true
	default:
		return false
	}
}

// NonTerminalStatuses are the statuses that still occupy calendar days.
var NonTerminalStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusUpcoming,
	SubscriptionStatusSuspended,
}

// SubscriptionRecord is one ledger entry. Closed entries are never edited,
// except the in-place move to REFUNDED.
type SubscriptionRecord struct {
	ID                  snowflake.ID       `gorm:"primaryKey" json:"id"`
	ClinicID            snowflake.ID       `gorm:"not null;index" json:"clinic_id"`
	PlanID              snowflake.ID       `gorm:"not null" json:"plan_id"`
	PaymentMethodID     snowflake.ID       `gorm:"not null" json:"payment_method_id"`
	SubscriptionGroup   string             `gorm:"type:text;not null" json:"subscription_group"`
	RefNumber           string             `gorm:"type:text;not null" json:"ref_number"`
	AmountPaid          int64              `gorm:"not null" json:"amount_paid"`
	ExtraAccountsNumber int                `gorm:"not null" json:"extra_accounts_number"`
	StartDate           time.Time          `gorm:"type:date;not null" json:"start_date"`
	EndDate             *time.Time         `gorm:"type:date" json:"end_date"`
	Status              SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	ActivationDate      *time.Time         `json:"activation_date,omitempty"`
	RemainingDays       *int               `json:"remaining_days,omitempty"`
	CreatedBy           string             `gorm:"type:text;not null" json:"created_by"`
	Comment             string             `gorm:"type:text;not null" json:"comment"`
	CreatedAt           time.Time          `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (SubscriptionRecord) TableName() string { return "subscription_records" }

// Interval returns the calendar days the record occupies. A record without
// an end date, such as a suspension, is open-ended.
func (r SubscriptionRecord) Interval() Interval {
	return Interval{Start: r.StartDate, End: r.EndDate}
}

// DaysLeft counts remaining days including today for an ACTIVE record.
func (r SubscriptionRecord) DaysLeft(today time.Time) int {
	if r.Status != SubscriptionStatusActive || r.EndDate == nil {
		return 0
	}
	days := clock.DaysBetween(today, *r.EndDate) + 1
	if days < 0 {
		return 0
	}
	return days
}

// Interval is an inclusive range of civil dates. A nil End never closes.
type Interval struct {
	Start time.Time
	End   *time.Time
}

// Overlaps reports whether both intervals share at least one calendar day.
func (i Interval) Overlaps(o Interval) bool {
	if i.End != nil && i.End.Before(o.Start) {
		return false
	}
	if o.End != nil && o.End.Before(i.Start) {
		return false
	}
	return true
}

// RecordView is a record annotated with read-time values.
type RecordView struct {
	SubscriptionRecord
	DaysLeft int `json:"days_left"`
}

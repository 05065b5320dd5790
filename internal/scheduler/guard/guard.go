package guard

import (
	"errors"
	"time"

	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
)

var (
	ErrNotActive      = errors.New("subscription_not_active")
	ErrNotUpcoming    = errors.New("subscription_not_upcoming")
	ErrMissingEndDate = errors.New("subscription_missing_end_date")
	ErrNotLapsed      = errors.New("subscription_not_lapsed")
	ErrNotStarted     = errors.New("subscription_not_started")
)

// EnsureExpirable allows ACTIVE → ENDED once the last paid day is behind today.
func EnsureExpirable(status subscriptiondomain.SubscriptionStatus, endDate *time.Time, today time.Time) error {
	if status != subscriptiondomain.SubscriptionStatusActive {
		return ErrNotActive
	}
	if endDate == nil {
		return ErrMissingEndDate
	}
	if !endDate.Before(today) {
		return ErrNotLapsed
	}
	return nil
}

// EnsureActivatable allows UPCOMING → ACTIVE from the start date on.
func EnsureActivatable(status subscriptiondomain.SubscriptionStatus, startDate time.Time, today time.Time) error {
	if status != subscriptiondomain.SubscriptionStatusUpcoming {
		return ErrNotUpcoming
	}
	if startDate.After(today) {
		return ErrNotStarted
	}
	return nil
}

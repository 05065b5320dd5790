package domain

import (
	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
)

// ResolveClinicStatus derives a clinic's aggregate status from the statuses of
// all of its records, historical ones included.
func ResolveClinicStatus(statuses ...SubscriptionStatus) clinicdomain.ClinicStatus {
	if len(statuses) == 0 {
		return clinicdomain.ClinicStatusInactive
	}

	var suspended, upcoming bool
	for _, status := range statuses {
		switch status {
		case SubscriptionStatusActive:
			return clinicdomain.ClinicStatusActive
		case SubscriptionStatusSuspended:
			suspended = true
		case SubscriptionStatusUpcoming:
			upcoming = true
		}
	}

	switch {
	case suspended:
		return clinicdomain.ClinicStatusSuspended
	case upcoming:
		return clinicdomain.ClinicStatusUpcoming
	default:
		return clinicdomain.ClinicStatusEnded
	}
}

// ResolveRecords is ResolveClinicStatus over full records.
func ResolveRecords(records []SubscriptionRecord) clinicdomain.ClinicStatus {
	statuses := make([]SubscriptionStatus, 0, len(records))
	for _, record := range records {
		statuses = append(statuses, record.Status)
	}
	return ResolveClinicStatus(statuses...)
}

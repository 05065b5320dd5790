package domain

import "errors"

var (
	ErrInvalidClinic           = errors.New("invalid_clinic")
	ErrInvalidSubscription     = errors.New("invalid_subscription")
	ErrInvalidPlan             = errors.New("invalid_plan")
	ErrPlanInactive            = errors.New("plan_inactive")
	ErrInvalidPaymentMethod    = errors.New("invalid_payment_method")
	ErrPaymentMethodInactive   = errors.New("payment_method_inactive")
	ErrInvalidAmount           = errors.New("invalid_amount_paid")
	ErrInvalidExtraAccounts    = errors.New("invalid_extra_accounts_number")
	ErrInvalidStartDate        = errors.New("invalid_start_date")
	ErrInvalidRefNumber        = errors.New("invalid_ref_number")
	ErrCommentRequired         = errors.New("comment_required")
	ErrOverlappingSubscription = errors.New("overlapping_subscription")
	ErrInvalidTransition       = errors.New("invalid_status_transition")
	ErrClinicSuspended         = errors.New("clinic_suspended")
	ErrSubscriptionNotFound    = errors.New("subscription_not_found")
	ErrPersistence             = errors.New("persistence_failure")
)

// IsValidationError reports errors caused by malformed or missing input.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidClinic,
		ErrInvalidSubscription,
		ErrInvalidPlan,
		ErrPlanInactive,
		ErrInvalidPaymentMethod,
		ErrPaymentMethodInactive,
		ErrInvalidAmount,
		ErrInvalidExtraAccounts,
		ErrInvalidStartDate,
		ErrInvalidRefNumber,
		ErrCommentRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

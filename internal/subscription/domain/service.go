package domain

import (
	"context"

	clinicdomain "github.com/smallbiznis/vetsub/internal/clinic/domain"
)

type CreateSubscriptionRequest struct {
	ClinicID            string `json:"-"`
	PlanID              string `json:"plan_id" binding:"required"`
	PaymentMethodID     string `json:"payment_method_id" binding:"required"`
	AmountPaid          int64  `json:"amount_paid"`
	StartDate           string `json:"start_date" binding:"required"`
	ExtraAccountsNumber int    `json:"extra_accounts_number"`
	RefNumber           string `json:"ref_number"`
	Comment             string `json:"comment"`
}

type TransitionRequest struct {
	SubscriptionID string `json:"-"`
	Comment        string `json:"comment"`
}

// TransitionResult is the outcome of one lifecycle mutation.
type TransitionResult struct {
	Record       SubscriptionRecord        `json:"record"`
	Closed       *SubscriptionRecord       `json:"closed,omitempty"`
	ClinicStatus clinicdomain.ClinicStatus `json:"clinic_status"`
}

type Service interface {
	Create(context.Context, CreateSubscriptionRequest) (TransitionResult, error)
	Suspend(context.Context, TransitionRequest) (TransitionResult, error)
	Reactivate(context.Context, TransitionRequest) (TransitionResult, error)
	Refund(context.Context, TransitionRequest) (TransitionResult, error)
	GetByID(context.Context, string) (RecordView, error)
	ListByClinic(context.Context, string) ([]RecordView, error)
}

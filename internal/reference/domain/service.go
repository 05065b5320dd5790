package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/vetsub/internal/config"
)

type SeedResult struct {
	Plans          int `json:"plans"`
	PaymentMethods int `json:"payment_methods"`
}

type Service interface {
	ListPlans(ctx context.Context) ([]SubscriptionPlan, error)
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	Seed(ctx context.Context, ref config.ReferenceConfig) (SeedResult, error)
}

var (
	ErrPlanNotFound          = errors.New("plan_not_found")
	ErrPaymentMethodNotFound = errors.New("payment_method_not_found")
	ErrInvalidSeed           = errors.New("invalid_reference_seed")
)

package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SubscriptionPlan, error)
	FindPaymentMethodByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentMethod, error)
	ListPlans(ctx context.Context, db *gorm.DB, activeOnly bool) ([]SubscriptionPlan, error)
	ListPaymentMethods(ctx context.Context, db *gorm.DB, activeOnly bool) ([]PaymentMethod, error)
	UpsertPlan(ctx context.Context, db *gorm.DB, plan *SubscriptionPlan) error
	UpsertPaymentMethod(ctx context.Context, db *gorm.DB, method *PaymentMethod) error
}

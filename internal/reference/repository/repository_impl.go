package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() referencedomain.Repository {
	return &repo{}
}

func (r *repo) FindPlanByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*referencedomain.SubscriptionPlan, error) {
	var plan referencedomain.SubscriptionPlan
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, price, duration_days, allowed_accounts, is_active, created_at, updated_at
		 FROM subscription_plans WHERE id = ?`,
		id,
	).Scan(&plan).Error
	if err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}

func (r *repo) FindPaymentMethodByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*referencedomain.PaymentMethod, error) {
	var method referencedomain.PaymentMethod
	err := db.WithContext(ctx).Raw(
		`SELECT id, code, name, is_active, created_at, updated_at
		 FROM payment_methods WHERE id = ?`,
		id,
	).Scan(&method).Error
	if err != nil {
		return nil, err
	}
	if method.ID == 0 {
		return nil, nil
	}
	return &method, nil
}

func (r *repo) ListPlans(ctx context.Context, db *gorm.DB, activeOnly bool) ([]referencedomain.SubscriptionPlan, error) {
	query := `SELECT id, code, name, price, duration_days, allowed_accounts, is_active, created_at, updated_at
		 FROM subscription_plans`
	if activeOnly {
		query += ` WHERE is_active = ?`
	}
	query += ` ORDER BY duration_days ASC, price ASC, id ASC`

	var plans []referencedomain.SubscriptionPlan
	tx := db.WithContext(ctx)
	if activeOnly {
		tx = tx.Raw(query, true)
	} else {
		tx = tx.Raw(query)
	}
	if err := tx.Scan(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

func (r *repo) ListPaymentMethods(ctx context.Context, db *gorm.DB, activeOnly bool) ([]referencedomain.PaymentMethod, error) {
	query := `SELECT id, code, name, is_active, created_at, updated_at FROM payment_methods`
	if activeOnly {
		query += ` WHERE is_active = ?`
	}
	query += ` ORDER BY name ASC`

	var methods []referencedomain.PaymentMethod
	tx := db.WithContext(ctx)
	if activeOnly {
		tx = tx.Raw(query, true)
	} else {
		tx = tx.Raw(query)
	}
	if err := tx.Scan(&methods).Error; err != nil {
		return nil, err
	}
	return methods, nil
}

// UpsertPlan inserts a plan or refreshes the mutable columns of the plan with the same code.
func (r *repo) UpsertPlan(ctx context.Context, db *gorm.DB, plan *referencedomain.SubscriptionPlan) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "price", "duration_days", "allowed_accounts", "is_active", "updated_at"}),
	}).Create(plan).Error
}

func (r *repo) UpsertPaymentMethod(ctx context.Context, db *gorm.DB, method *referencedomain.PaymentMethod) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "code"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "is_active", "updated_at"}),
	}).Create(method).Error
}

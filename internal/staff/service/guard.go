package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	staffdomain "github.com/smallbiznis/vetsub/internal/staff/domain"
	subscriptiondomain "github.com/smallbiznis/vetsub/internal/subscription/domain"
	"gorm.io/gorm"
)

// Guard computes a clinic's seat allowance. Callers must hold the clinic row
// lock on tx so the count stays valid until their insert commits.
type Guard struct {
	subscriptions subscriptiondomain.Repository
	references    referencedomain.Repository
	staff         staffdomain.Repository
}

func NewGuard(
	subscriptions subscriptiondomain.Repository,
	references referencedomain.Repository,
	staff staffdomain.Repository,
) *Guard {
	return &Guard{subscriptions: subscriptions, references: references, staff: staff}
}

// Allowance reads the allowance without judging it.
func (g *Guard) Allowance(ctx context.Context, tx *gorm.DB, clinicID snowflake.ID) (staffdomain.Allowance, error) {
	allowance := staffdomain.Allowance{ClinicID: clinicID}

	used, err := g.staff.CountActiveByClinic(ctx, tx, clinicID)
	if err != nil {
		return allowance, fmt.Errorf("count staff: %w", err)
	}
	allowance.Used = int(used)

	active, err := g.subscriptions.FindActiveByClinic(ctx, tx, clinicID)
	if err != nil {
		return allowance, fmt.Errorf("find active subscription: %w", err)
	}
	if active == nil {
		return allowance, nil
	}

	plan, err := g.references.FindPlanByID(ctx, tx, active.PlanID)
	if err != nil {
		return allowance, fmt.Errorf("find plan: %w", err)
	}
	if plan == nil {
		return allowance, nil
	}

	id := active.ID
	allowance.SubscriptionID = &id
	allowance.PlanAccounts = plan.AllowedAccounts
	allowance.ExtraAccounts = active.ExtraAccountsNumber
	allowance.Allowed = plan.AllowedAccounts + active.ExtraAccountsNumber
	return allowance, nil
}

// Check fails with ErrAccountLimitExceeded when the clinic has no free seat.
func (g *Guard) Check(ctx context.Context, tx *gorm.DB, clinicID snowflake.ID) (staffdomain.Allowance, error) {
	allowance, err := g.Allowance(ctx, tx, clinicID)
	if err != nil {
		return allowance, err
	}
	if !allowance.CanAdd() {
		return allowance, staffdomain.ErrAccountLimitExceeded
	}
	return allowance, nil
}

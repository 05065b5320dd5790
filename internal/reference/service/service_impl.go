package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/vetsub/internal/clock"
	"github.com/smallbiznis/vetsub/internal/config"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  referencedomain.Repository
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  referencedomain.Repository
}

func NewService(p ServiceParam) referencedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("reference.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) ListPlans(ctx context.Context) ([]referencedomain.SubscriptionPlan, error) {
	return s.repo.ListPlans(ctx, s.db, true)
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]referencedomain.PaymentMethod, error) {
	return s.repo.ListPaymentMethods(ctx, s.db, true)
}

// Seed upserts the configured plans and payment methods keyed by the slug of their name.
func (s *Service) Seed(ctx context.Context, ref config.ReferenceConfig) (referencedomain.SeedResult, error) {
	for _, plan := range ref.Plans {
		if strings.TrimSpace(plan.Name) == "" || plan.DurationDays <= 0 || plan.AllowedAccounts < 0 || plan.Price < 0 {
			return referencedomain.SeedResult{}, referencedomain.ErrInvalidSeed
		}
	}
	for _, method := range ref.PaymentMethods {
		if strings.TrimSpace(method.Name) == "" {
			return referencedomain.SeedResult{}, referencedomain.ErrInvalidSeed
		}
	}

	now := s.clock.Now()
	var result referencedomain.SeedResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, seed := range ref.Plans {
			plan := referencedomain.SubscriptionPlan{
				ID:              s.genID.Generate(),
				Code:            slug.Make(seed.Name),
				Name:            strings.TrimSpace(seed.Name),
				Price:           seed.Price,
				DurationDays:    seed.DurationDays,
				AllowedAccounts: seed.AllowedAccounts,
				IsActive:        true,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.repo.UpsertPlan(ctx, tx, &plan); err != nil {
				return err
			}
			result.Plans++
		}
		for _, seed := range ref.PaymentMethods {
			method := referencedomain.PaymentMethod{
				ID:        s.genID.Generate(),
				Code:      slug.Make(seed.Name),
				Name:      strings.TrimSpace(seed.Name),
				IsActive:  true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := s.repo.UpsertPaymentMethod(ctx, tx, &method); err != nil {
				return err
			}
			result.PaymentMethods++
		}
		return nil
	})
	if err != nil {
		return referencedomain.SeedResult{}, err
	}

	s.log.Info("reference data seeded",
		zap.Int("plans", result.Plans),
		zap.Int("payment_methods", result.PaymentMethods),
	)
	return result, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/smallbiznis/vetsub/internal/config"
	"github.com/smallbiznis/vetsub/internal/reference"
	referencedomain "github.com/smallbiznis/vetsub/internal/reference/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Upsert the default subscription plans and payment methods",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				svc    referencedomain.Service
				holder *config.LifecycleConfigHolder
				log    *zap.Logger
			)
			app := fx.New(
				infrastructure(),
				reference.Module,
				fx.Populate(&svc, &holder, &log),
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}
			if err := app.Start(cmd.Context()); err != nil {
				return fmt.Errorf("start: %w", err)
			}
			defer func() {
				_ = app.Stop(context.Background())
			}()

			result, err := svc.Seed(cmd.Context(), holder.Reference())
			if err != nil {
				return err
			}
			log.Info("reference data seeded",
				zap.Int("plans", result.Plans),
				zap.Int("payment_methods", result.PaymentMethods),
			)
			return nil
		},
	}
}

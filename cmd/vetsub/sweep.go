package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/smallbiznis/vetsub/internal/audit"
	"github.com/smallbiznis/vetsub/internal/clinic"
	"github.com/smallbiznis/vetsub/internal/distlock"
	"github.com/smallbiznis/vetsub/internal/reference"
	"github.com/smallbiznis/vetsub/internal/scheduler"
	"github.com/smallbiznis/vetsub/internal/subscription"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func newSweepCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply today's expire and activate transitions once",
		Long: `Run one sweep and print its summary as JSON. Clinics that fail are listed
in the summary; the command exits non-zero only when the sweep could not start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			app := fx.New(
				infrastructure(),
				audit.Module,
				reference.Module,
				clinic.Module,
				subscription.Module,
				distlock.Module,
				scheduler.JobModule,
				fx.Populate(&sched),
				fx.NopLogger,
			)
			if err := app.Err(); err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			if err := app.Start(ctx); err != nil {
				return err
			}
			defer func() {
				_ = app.Stop(context.Background())
			}()

			summary, err := sched.RunOnce(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", time.Hour, "Upper bound for the whole run")
	return cmd
}

package scheduler

import (
	"context"

	"github.com/smallbiznis/vetsub/internal/config"
	"go.uber.org/fx"
)

// JobModule provides the sweeper without starting its daily loop.
var JobModule = fx.Module("scheduler.job",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

var Module = fx.Module("scheduler",
	JobModule,
	fx.Invoke(NewScheduler),
)

func NewScheduler(lc fx.Lifecycle, cfg config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}

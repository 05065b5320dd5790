package subscription

import (
	"github.com/smallbiznis/vetsub/internal/subscription/repository"
	"github.com/smallbiznis/vetsub/internal/subscription/service"
	"go.uber.org/fx"
)

var Module = fx.Module("subscription.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewStatusSync),
	fx.Provide(service.NewService),
)

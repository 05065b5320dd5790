package staff

import (
	"github.com/smallbiznis/vetsub/internal/staff/repository"
	"github.com/smallbiznis/vetsub/internal/staff/service"
	"go.uber.org/fx"
)

var Module = fx.Module("staff.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewGuard),
	fx.Provide(service.NewService),
)

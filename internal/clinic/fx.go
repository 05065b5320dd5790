package clinic

import (
	"github.com/smallbiznis/vetsub/internal/clinic/repository"
	"github.com/smallbiznis/vetsub/internal/clinic/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clinic.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

package medication

import (
	"github.com/doseline/doseline/internal/medication/repository"
	"github.com/doseline/doseline/internal/medication/service"
	"go.uber.org/fx"
)

var Module = fx.Module("medication.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

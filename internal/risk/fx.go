package risk

import (
	"github.com/doseline/doseline/internal/risk/repository"
	"github.com/doseline/doseline/internal/risk/service"
	"go.uber.org/fx"
)

var Module = fx.Module("risk.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

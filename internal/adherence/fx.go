package adherence

import (
	"github.com/doseline/doseline/internal/adherence/repository"
	"github.com/doseline/doseline/internal/adherence/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adherence.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
	fx.Provide(service.NewPlanner),
)

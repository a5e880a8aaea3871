package indicatorvalue

import (
	"github.com/smallbiznis/energyscope/internal/indicatorvalue/service"
	"go.uber.org/fx"
)

var Module = fx.Module("indicatorvalue.service",
	fx.Provide(service.NewService),
)

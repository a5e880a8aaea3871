package access

import (
	"github.com/smallbiznis/energyscope/internal/access/service"
	"go.uber.org/fx"
)

var Module = fx.Module("access.service",
	fx.Provide(service.NewEnforcer),
	fx.Provide(service.NewService),
)

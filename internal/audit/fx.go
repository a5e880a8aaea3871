package audit

import (
	"github.com/smallbiznis/energyscope/internal/audit/repository"
	"github.com/smallbiznis/energyscope/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

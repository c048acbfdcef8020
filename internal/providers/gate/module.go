package gate

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
)

const moduleName = "gate"

var Module = fx.Module(moduleName,
	fx.Provide(
		fx.Annotate(
			func(cfg *config.Config, logger *zap.Logger) domain.Factory {
				return domain.Factory{
					Name: moduleName,
					New: func() domain.Provider {
						return NewProvider(cfg.Gate, logger)
					},
				}
			},
			fx.ResultTags(`group:"providers"`),
		),
	),
)

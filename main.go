package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/pkg/logger"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/providers/bybit"
	"github.com/igefined/orderbook-sampler/internal/providers/gate"
	"github.com/igefined/orderbook-sampler/internal/providers/synthetic"
	"github.com/igefined/orderbook-sampler/internal/sampler"
	"github.com/igefined/orderbook-sampler/internal/sink"
)

func main() {
	fx.New(
		config.Module,
		logger.Module,
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		// Provider modules
		gate.Module,
		bybit.Module,
		synthetic.Module,
		// Storage
		sink.Module,
		// Business logic modules
		sampler.Module,
	).Run()
}

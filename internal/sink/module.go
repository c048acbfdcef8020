package sink

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
)

var Module = fx.Module("sink",
	fx.Provide(func(lc fx.Lifecycle, cfg *config.Config, logger *zap.Logger) (Sink, error) {
		s, err := Open(context.Background(), cfg.Sinks, logger)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return s.Close()
			},
		})
		return s, nil
	}),
)

// Open returns the enabled backends behind one Sink, or Null when none is
// enabled.
func Open(ctx context.Context, cfg config.SinksConfig, logger *zap.Logger) (Sink, error) {
	m, err := New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if m.Len() == 0 {
		logger.Info("No sinks enabled, results are only printed")
		return Null{}, nil
	}
	return m, nil
}

// New opens every enabled backend. On error the backends opened so far
// are closed.
func New(ctx context.Context, cfg config.SinksConfig, logger *zap.Logger) (*Multi, error) {
	var sinks []Sink
	fail := func(err error) (*Multi, error) {
		for _, s := range sinks {
			s.Close()
		}
		return nil, err
	}

	for _, name := range cfg.Enabled {
		var (
			s   Sink
			err error
		)
		switch name {
		case config.SinkFile:
			s, err = NewFile(cfg.File.OutputDir)
		case config.SinkSQLite:
			s, err = OpenSQLite(ctx, cfg.SQLite.Path)
		case config.SinkRedis:
			s, err = NewRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		case config.SinkKafka:
			s, err = NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		default:
			err = fmt.Errorf("unknown sink %q", name)
		}
		if err != nil {
			return fail(fmt.Errorf("opening %s sink: %w", name, err))
		}
		sinks = append(sinks, s)
	}

	return NewMulti(logger, sinks...), nil
}

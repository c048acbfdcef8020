package sampler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
	"github.com/igefined/orderbook-sampler/internal/sink"
)

// Service runs one sampling job when the application starts and shuts the
// application down once the result is written.
type Service struct {
	cfg        *config.Config
	factories  []domain.Factory
	sink       sink.Sink
	logger     *zap.Logger
	out        io.Writer
	shutdowner fx.Shutdowner

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Params struct {
	fx.In

	Config     *config.Config
	Factories  []domain.Factory `group:"providers"`
	Sink       sink.Sink
	Logger     *zap.Logger
	Shutdowner fx.Shutdowner
}

func NewService(params Params) *Service {
	return &Service{
		cfg:        params.Config,
		factories:  params.Factories,
		sink:       params.Sink,
		logger:     params.Logger.Named("sampler"),
		out:        os.Stdout,
		shutdowner: params.Shutdowner,
	}
}

func (s *Service) Start() error {
	if err := s.cfg.Validate(); err != nil {
		s.logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		code := 0
		if err := s.Run(ctx); err != nil {
			s.logger.Error("Sampling run failed", zap.Error(err))
			code = 1
		}
		if err := s.shutdowner.Shutdown(fx.ExitCode(code)); err != nil {
			s.logger.Error("Failed to request shutdown", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops a run in progress; pollers finish their current request and
// the partial result is still written.
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping sampler service")

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes the configured job and writes its output.
func (s *Service) Run(ctx context.Context) error {
	sc := s.cfg.Sampling

	criteria, err := CriteriaFromConfig(sc.Stop)
	if err != nil {
		return err
	}

	opts := Options{
		MinInterval:  sc.MinInterval,
		FetchTimeout: sc.FetchTimeout,
		Retry: RetryPolicy{
			InitialBackoff: sc.Retry.InitialBackoff,
			MaxBackoff:     sc.Retry.MaxBackoff,
			BackoffFactor:  sc.Retry.BackoffFactor,
		},
		Verbosity: sc.Verbose,
		Output:    s.out,
	}

	switch sc.DataType {
	case config.DataTypePublicTrades:
		return runJob(ctx, s, NewSupervisor(s.factories, PublicTrades, opts, s.logger), criteria)
	case config.DataTypeOrderBooks:
		return runJob(ctx, s, NewSupervisor(s.factories, OrderBooks, opts, s.logger), criteria)
	default:
		return &domain.InvalidConfigurationError{Reason: fmt.Sprintf("unknown data type %q", sc.DataType)}
	}
}

func runJob[R Record](ctx context.Context, s *Service, sup *Supervisor[R], criteria StopCriteria) error {
	sc := s.cfg.Sampling

	result, err := sup.Run(ctx, sc.Symbol, sc.Exchanges, criteria)
	if err != nil {
		return err
	}

	for _, name := range result.Store.Exchanges() {
		stats := result.Stats[name]
		fields := []zap.Field{
			zap.String("exchange", name),
			zap.String("state", stats.State),
			zap.Int("records", result.Store.Series(name).Len()),
			zap.Int("successes", stats.Successes),
			zap.Int("failures", stats.Failures),
		}
		if last, ok := result.Store.Series(name).Last(); ok {
			fields = append(fields, zap.String("last", last.Summary()))
		}
		if reason, ok := result.Failures[name]; ok {
			fields = append(fields, zap.NamedError("reason", reason))
		}
		s.logger.Info("Exchange summary", fields...)
	}

	var output any
	if sc.OutputFormat == config.OutputNumeric {
		output = Numeric(result.Store)
	} else {
		output = Raw(result.Store)
	}

	var errs []error
	if err := writeOutput(s.out, result, output); err != nil {
		errs = append(errs, fmt.Errorf("writing output: %w", err))
	}

	// The run context may already be cancelled by a shutdown; persisting
	// the partial result still has to happen.
	if err := s.sink.Write(context.WithoutCancel(ctx), ToBatch(result, sc.DataType)); err != nil {
		s.logger.Error("Failed to persist result", zap.Error(err))
	}

	return errors.Join(errs...)
}

type outputDocument struct {
	RunID     string                 `json:"run_id"`
	Symbol    string                 `json:"symbol"`
	Criteria  string                 `json:"stop_criteria"`
	StartedAt string                 `json:"started_at"`
	Finished  string                 `json:"finished_at"`
	Stats     map[string]PollerStats `json:"pollers"`
	Data      any                    `json:"data"`
}

func writeOutput[R Record](w io.Writer, result *Result[R], data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(outputDocument{
		RunID:     result.RunID.String(),
		Symbol:    result.Symbol,
		Criteria:  result.Criteria.String(),
		StartedAt: result.StartedAt.UTC().Format(TimestampLayout),
		Finished:  result.FinishedAt.UTC().Format(TimestampLayout),
		Stats:     result.Stats,
		Data:      data,
	})
}

// ToBatch flattens a result for the sinks.
func ToBatch[R Record](result *Result[R], dataType string) *sink.Batch {
	batch := &sink.Batch{
		RunID:     result.RunID.String(),
		Symbol:    result.Symbol,
		DataType:  dataType,
		Exchanges: result.Store.Exchanges(),
	}
	for _, name := range batch.Exchanges {
		for _, r := range result.Store.Series(name).Records() {
			batch.Records = append(batch.Records, sink.Record{
				Exchange:  name,
				Timestamp: r.Time(),
				Values:    r.Vector(),
				Payload:   r,
			})
		}
	}
	return batch
}

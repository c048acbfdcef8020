package sampler

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/igefined/orderbook-sampler/internal/domain"
)

const (
	defaultFetchTimeout   = 10 * time.Second
	defaultInitialBackoff = 250 * time.Millisecond
)

// Options tune every poller spawned by a Supervisor.
type Options struct {
	// MinInterval is the minimum gap between two requests of one poller.
	// Zero polls as fast as the exchange answers.
	MinInterval  time.Duration
	FetchTimeout time.Duration
	Retry        RetryPolicy
	// Verbosity 1 writes one line per successful fetch to Output, 2 also
	// writes failures.
	Verbosity int
	Output    io.Writer
}

// Result is the frozen outcome of one Supervisor.Run.
type Result[R Record] struct {
	RunID      uuid.UUID
	Symbol     string
	Criteria   StopCriteria
	StartedAt  time.Time
	FinishedAt time.Time
	Store      *Store[R]
	Stats      map[string]PollerStats
	// Failures holds the reason of every exchange whose poller failed;
	// exchanges absent from it simply produced what their series holds.
	Failures map[string]error
}

// Supervisor fans one poller out per exchange for a symbol and stops them
// together once the StopCriteria holds.
type Supervisor[R Record] struct {
	factories map[string]domain.Factory
	fetch     Fetcher[R]
	opts      Options
	logger    *zap.Logger
	now       func() time.Time
}

func NewSupervisor[R Record](factories []domain.Factory, fetch Fetcher[R], opts Options, logger *zap.Logger) *Supervisor[R] {
	if opts.FetchTimeout == 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = defaultInitialBackoff
	}

	byName := make(map[string]domain.Factory, len(factories))
	for _, f := range factories {
		byName[strings.ToLower(f.Name)] = f
	}

	return &Supervisor[R]{
		factories: byName,
		fetch:     fetch,
		opts:      opts,
		logger:    logger.Named("supervisor"),
		now:       time.Now,
	}
}

// Run polls symbol on every exchange until criteria holds or ctx is done,
// then waits for all pollers to disconnect. Only configuration problems are
// returned as errors; per-exchange failures are reported in the Result.
func (s *Supervisor[R]) Run(ctx context.Context, symbol string, exchanges []string, criteria StopCriteria) (*Result[R], error) {
	symbol = domain.NormalizeSymbol(symbol)
	names, err := s.validate(symbol, exchanges, criteria)
	if err != nil {
		return nil, err
	}

	result := &Result[R]{
		RunID:     uuid.New(),
		Symbol:    symbol,
		Criteria:  criteria,
		StartedAt: s.now(),
		Store:     NewStore[R](names),
		Stats:     make(map[string]PollerStats, len(names)),
		Failures:  make(map[string]error),
	}
	logger := s.logger.With(zap.String("run_id", result.RunID.String()), zap.String("symbol", symbol))

	handles := make(map[string]*PollerHandle, len(names))
	for _, name := range names {
		handles[name] = newHandle(name, result.StartedAt)
	}

	stop := make(chan struct{})
	var stopOnce sync.Once
	signalStop := func() {
		stopOnce.Do(func() {
			logger.Info("Stop criteria reached, stopping pollers", zap.Stringer("criteria", criteria))
			close(stop)
		})
	}

	evaluate := func() {
		sizes := make(map[string]int, len(names))
		for _, name := range names {
			if handles[name].State() == StateFailed {
				continue
			}
			sizes[name] = result.Store.Series(name).Len()
		}
		now := s.now()
		if criteria.ShouldStop(now.Sub(result.StartedAt), sizes, now) {
			signalStop()
		}
	}

	logger.Info("Starting pollers",
		zap.Strings("exchanges", names),
		zap.Stringer("criteria", criteria))

	evaluate()

	report := newReporter(s.opts.Output, s.opts.Verbosity)

	var wg sync.WaitGroup
	for _, name := range names {
		p := &poller[R]{
			exchange:     name,
			symbol:       symbol,
			provider:     s.factories[name].New(),
			fetch:        s.fetch,
			series:       result.Store.Series(name),
			handle:       handles[name],
			stop:         stop,
			observe:      evaluate,
			report:       report,
			now:          s.now,
			backoff:      backoff{policy: s.opts.Retry},
			fetchTimeout: s.opts.FetchTimeout,
			logger:       logger.Named("poller").With(zap.String("exchange", name)),
		}
		if s.opts.MinInterval > 0 {
			p.limiter = rate.NewLimiter(rate.Every(s.opts.MinInterval), 1)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			p.run(ctx)
		}()
	}

	wg.Wait()
	signalStop()

	result.FinishedAt = s.now()
	for _, name := range names {
		h := handles[name]
		result.Stats[name] = h.Stats()
		if err := h.Err(); err != nil {
			result.Failures[name] = err
		}
	}

	logger.Info("All pollers stopped",
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
		zap.Int("records", result.Store.Total()),
		zap.Int("failed", len(result.Failures)))

	return result, nil
}

func (s *Supervisor[R]) validate(symbol string, exchanges []string, criteria StopCriteria) ([]string, error) {
	if symbol == "" {
		return nil, &domain.InvalidConfigurationError{Reason: "symbol is required"}
	}
	if len(exchanges) == 0 {
		return nil, &domain.InvalidConfigurationError{Reason: "exchange list is empty"}
	}
	if s.fetch == nil {
		return nil, &domain.InvalidConfigurationError{Reason: "no fetcher configured"}
	}
	if err := criteria.Validate(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(exchanges))
	seen := make(map[string]bool, len(exchanges))
	for _, raw := range exchanges {
		name := strings.ToLower(strings.TrimSpace(raw))
		if seen[name] {
			return nil, &domain.InvalidConfigurationError{Reason: fmt.Sprintf("exchange %q listed twice", name)}
		}
		if _, ok := s.factories[name]; !ok {
			return nil, &domain.InvalidConfigurationError{Reason: fmt.Sprintf("%v: %q", domain.ErrUnknownExchange, name)}
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

package sampler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/igefined/orderbook-sampler/internal/domain"
)

// Fetcher turns one request against a provider into zero or more records.
type Fetcher[R Record] func(ctx context.Context, p domain.Provider, symbol string) ([]R, error)

// RetryPolicy is the bounded backoff applied after a failed connect or fetch.
type RetryPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
}

type backoff struct {
	policy RetryPolicy
	next   time.Duration
}

func (b *backoff) Next() time.Duration {
	if b.next == 0 {
		b.next = b.policy.InitialBackoff
	}
	d := b.next

	factor := b.policy.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	b.next = time.Duration(float64(b.next) * factor)
	if b.policy.MaxBackoff > 0 && b.next > b.policy.MaxBackoff {
		b.next = b.policy.MaxBackoff
	}
	return d
}

func (b *backoff) Reset() {
	b.next = 0
}

// poller drives one provider for one exchange. It is run by the Supervisor
// and reports through its handle, its series and observe.
type poller[R Record] struct {
	exchange string
	symbol   string
	provider domain.Provider
	fetch    Fetcher[R]
	series   *Series[R]
	handle   *PollerHandle

	stop    <-chan struct{}
	observe func()
	report  *reporter
	now     func() time.Time

	limiter      *rate.Limiter
	backoff      backoff
	fetchTimeout time.Duration

	logger *zap.Logger
}

func (p *poller[R]) run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Panic in poller", zap.Any("error", r))
			p.handle.fail(fmt.Errorf("poller panic: %v", r), p.now())
		}
		p.handle.finish(p.now())
		p.observe()
	}()

	if !p.connect(ctx) {
		return
	}
	defer func() {
		if err := p.provider.Disconnect(); err != nil {
			p.logger.Warn("Failed to disconnect", zap.Error(err))
		}
	}()

	ok, err := p.validateSymbol(ctx)
	if err != nil {
		p.handle.fail(err, p.now())
		p.logger.Error("Symbol not supported, poller failed", zap.Error(err))
		return
	}
	if !ok {
		return
	}

	p.handle.setState(StateRunning)
	p.logger.Info("Poller running")

	for !p.stopped(ctx) {
		if !p.waitForToken(ctx) {
			break
		}

		records, err := p.fetchOnce(ctx)

		if err != nil {
			fetchErr := &domain.FetchError{Exchange: p.exchange, Symbol: p.symbol, Err: err}
			p.handle.recordFailure(fetchErr)
			p.logger.Warn("Fetch failed", zap.Error(err))
			p.report.failure(p.now(), p.exchange, p.symbol, err)
			p.observe()
			if !p.wait(ctx, p.backoff.Next()) {
				break
			}
			continue
		}

		p.backoff.Reset()
		for _, r := range records {
			p.series.Put(r)
		}
		p.handle.recordSuccess()
		if len(records) > 0 {
			last := records[len(records)-1]
			p.report.fetch(last.Time(), p.exchange, p.symbol, last.Summary())
		}
		p.observe()
	}

	p.handle.setState(StateStopping)
	p.logger.Info("Poller stopping", zap.Int("records", p.series.Len()))
}

func (p *poller[R]) fetchOnce(ctx context.Context) ([]R, error) {
	if p.fetchTimeout <= 0 {
		return p.fetch(ctx, p.provider, p.symbol)
	}
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()
	return p.fetch(fetchCtx, p.provider, p.symbol)
}

// connect retries Connect until it succeeds or the run is stopped.
func (p *poller[R]) connect(ctx context.Context) bool {
	for !p.stopped(ctx) {
		err := p.provider.Connect(ctx)
		if err == nil {
			p.backoff.Reset()
			return true
		}

		connErr := &domain.ConnectionError{Exchange: p.exchange, Err: err}
		p.handle.recordFailure(connErr)
		p.logger.Warn("Connect failed, retrying", zap.Error(err))
		p.report.failure(p.now(), p.exchange, p.symbol, connErr)
		p.observe()

		if !p.wait(ctx, p.backoff.Next()) {
			return false
		}
	}
	return false
}

// validateSymbol loads the market catalog, retrying on transport errors.
// It returns a SymbolUnsupportedError when the catalog lacks the symbol, and
// false with no error when the run was stopped first.
func (p *poller[R]) validateSymbol(ctx context.Context) (bool, error) {
	for !p.stopped(ctx) {
		symbols, err := p.provider.GetSupportedSymbols(ctx)
		if err != nil {
			connErr := &domain.ConnectionError{Exchange: p.exchange, Err: fmt.Errorf("load markets: %w", err)}
			p.handle.recordFailure(connErr)
			p.logger.Warn("Loading markets failed, retrying", zap.Error(err))
			p.observe()
			if !p.wait(ctx, p.backoff.Next()) {
				return false, nil
			}
			continue
		}

		p.backoff.Reset()
		for _, s := range symbols {
			if domain.NormalizeSymbol(s) == p.symbol {
				return true, nil
			}
		}
		return false, &domain.SymbolUnsupportedError{Exchange: p.exchange, Symbol: p.symbol}
	}
	return false, nil
}

func (p *poller[R]) stopped(ctx context.Context) bool {
	select {
	case <-p.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// wait sleeps for d unless the run is stopped first.
func (p *poller[R]) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !p.stopped(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-p.stop:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (p *poller[R]) waitForToken(ctx context.Context) bool {
	if p.limiter == nil {
		return true
	}
	reservation := p.limiter.Reserve()
	if !p.wait(ctx, reservation.Delay()) {
		reservation.Cancel()
		return false
	}
	return true
}

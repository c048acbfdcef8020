package synthetic

import (
	"context"
	"math/rand"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/igefined/orderbook-sampler/internal/config"
	"github.com/igefined/orderbook-sampler/internal/domain"
)

var mockPrices = map[string]float64{
	"BTC_USDT":  68250.5,
	"ETH_USDT":  3512.25,
	"SOL_USDT":  148.37,
	"BTC_EUR":   63120.0,
	"BONK_USDT": 0.00002451,
	"JUP_USDT":  0.9876,
}

const defaultMidPrice = 100.0

// Provider is an offline market maker. Every fetch moves the mid price by
// a small random step and quotes a symmetric ladder around it.
type Provider struct {
	config config.SyntheticConfig
	logger *zap.Logger

	mu        sync.Mutex
	connected bool
	rng       *rand.Rand
	mids      map[string]float64
	tradeSeq  int64

	// Market maker simulation parameters
	spreadPercent float64
	depthLevels   int
}

func NewProvider(cfg config.SyntheticConfig, logger *zap.Logger) *Provider {
	return &Provider{
		config:        cfg,
		logger:        logger.Named(moduleName),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		mids:          make(map[string]float64),
		spreadPercent: 0.001, // 0.1% spread for synthetic order book
		depthLevels:   10,    // 10 levels of market depth
	}
}

func (p *Provider) Name() string {
	return moduleName
}

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = true
	p.logger.Debug("Synthetic market connected", zap.Strings("symbols", p.config.Symbols))
	return nil
}

func (p *Provider) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = false
	return nil
}

func (p *Provider) GetSupportedSymbols(ctx context.Context) ([]string, error) {
	symbols := make([]string, 0, len(p.config.Symbols))
	for _, s := range p.config.Symbols {
		symbols = append(symbols, domain.NormalizeSymbol(s))
	}
	return symbols, nil
}

func (p *Provider) FetchOrderBook(ctx context.Context, symbol string) (*domain.OrderBook, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, domain.ErrNotConnected
	}
	return p.createSyntheticOrderBook(symbol, p.step(symbol)), nil
}

func (p *Provider) FetchTrades(ctx context.Context, symbol string) ([]domain.Trade, error) {
	if err := p.simulateLatency(ctx); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.connected {
		return nil, domain.ErrNotConnected
	}

	now := time.Now().UTC()
	count := 1 + p.rng.Intn(3)
	trades := make([]domain.Trade, 0, count)
	for i := 0; i < count; i++ {
		mid := p.step(symbol)
		side := domain.SideBuy
		price := mid * (1 + p.spreadPercent/2)
		if p.rng.Intn(2) == 0 {
			side = domain.SideSell
			price = mid * (1 - p.spreadPercent/2)
		}
		p.tradeSeq++
		trades = append(trades, domain.Trade{
			ID:        strconv.FormatInt(p.tradeSeq, 10),
			Exchange:  moduleName,
			Symbol:    symbol,
			Timestamp: now.Add(time.Duration(i-count) * time.Millisecond),
			Side:      side,
			Price:     price,
			Amount:    0.01 + p.rng.Float64(),
		})
	}
	return trades, nil
}

func (p *Provider) simulateLatency(ctx context.Context) error {
	if p.config.Latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(p.config.Latency)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// step moves the mid price of symbol by up to 0.1% either way. Callers hold p.mu.
func (p *Provider) step(symbol string) float64 {
	mid, ok := p.mids[symbol]
	if !ok {
		mid, ok = mockPrices[symbol]
		if !ok {
			mid = defaultMidPrice
		}
	}

	variation := (p.rng.Float64()*2 - 1) / 1000
	mid *= 1 + variation
	p.mids[symbol] = mid
	return mid
}

func (p *Provider) createSyntheticOrderBook(symbol string, midPrice float64) *domain.OrderBook {
	orderBook := &domain.OrderBook{
		Exchange:  moduleName,
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		Bids:      make([]domain.Order, 0, p.depthLevels),
		Asks:      make([]domain.Order, 0, p.depthLevels),
	}

	for i := 0; i < p.depthLevels; i++ {
		priceOffset := p.spreadPercent/2 + (float64(i) * p.spreadPercent * 0.1)
		volume := 1000.0 / (1 + float64(i)*0.5) // Decreasing volume with distance

		orderBook.Bids = append(orderBook.Bids, domain.Order{
			Price:  midPrice * (1 - priceOffset),
			Volume: volume,
		})
		orderBook.Asks = append(orderBook.Asks, domain.Order{
			Price:  midPrice * (1 + priceOffset),
			Volume: volume,
		})
	}

	// Sort orders: bids descending (highest first), asks ascending (lowest first)
	sort.Slice(orderBook.Bids, func(i, j int) bool {
		return orderBook.Bids[i].Price > orderBook.Bids[j].Price
	})
	sort.Slice(orderBook.Asks, func(i, j int) bool {
		return orderBook.Asks[i].Price < orderBook.Asks[j].Price
	})

	return orderBook
}
